package model

import (
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// Record is one row read from a vector source: a geometry plus its
// attribute table entries.
type Record struct {
	Geometry   geom.T         `json:"-"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Boundary is a raw administrative boundary polygon before dissolve.
type Boundary = Record

// Has reports whether the record carries the named attribute at all,
// including attributes whose value is null.
func (r Record) Has(key string) bool {
	_, ok := r.Properties[key]
	return ok
}

// String returns the trimmed string form of an attribute. Missing and null
// attributes yield "".
func (r Record) String(key string) string {
	v, ok := r.Properties[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Float returns the numeric value of an attribute. Strings are parsed;
// missing, null, NaN and unparsable values report false.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r.Properties[key]
	if !ok || v == nil {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if f != f {
		return 0, false
	}
	return f, true
}

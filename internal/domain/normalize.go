package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Nullable distinguishes a field that was omitted (Set false) from one that was
// sent as JSON null (Set true, Valid false) and one carrying a value.
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Null reports whether the field was explicitly sent as null.
func (n Nullable[T]) Null() bool { return n.Set && !n.Valid }

// Ptr returns nil for null, or a pointer to a copy of the value.
func (n Nullable[T]) Ptr() *T {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func valueOf[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Valid: true, Value: v} }

func nullOf[T any]() Nullable[T] { return Nullable[T]{Set: true} }

// TargetFields is the normalized form of a create or update request body.
type TargetFields struct {
	Type              Nullable[TargetType]
	Latitude          Nullable[float64]
	Longitude         Nullable[float64]
	Orientation       Nullable[Orientation]
	Shape             Nullable[Shape]
	BackgroundColor   Nullable[Color]
	AlphanumericColor Nullable[Color]
	Alphanumeric      Nullable[string]
	Description       Nullable[string]
}

// Field names accepted in request bodies.
const (
	FieldType              = "type"
	FieldLatitude          = "latitude"
	FieldLongitude         = "longitude"
	FieldOrientation       = "orientation"
	FieldShape             = "shape"
	FieldBackgroundColor   = "background_color"
	FieldAlphanumericColor = "alphanumeric_color"
	FieldAlphanumeric      = "alphanumeric"
	FieldDescription       = "description"
)

// Normalize converts the present fields of a decoded request body to their
// semantic types. Absent keys stay unset, unknown keys are ignored. The first
// invalid field yields a ValidationError naming the accepted range or
// vocabulary. Normalize has no side effects.
func Normalize(raw map[string]json.RawMessage) (*TargetFields, error) {
	f := &TargetFields{}
	var err error

	if v, ok := raw[FieldType]; ok {
		// Type is required whenever present; null is not a clear.
		s, isStr := jsonString(v)
		t, found := ParseTargetType(s)
		if !isStr || !found {
			return nil, Invalid(FieldType, "Unknown target type %q; known types %s", display(v), listing(TargetTypeNames()))
		}
		f.Type = valueOf(t)
	}

	if f.Latitude, err = coordinate(raw, FieldLatitude, "lat", 90); err != nil {
		return nil, err
	}
	if f.Longitude, err = coordinate(raw, FieldLongitude, "lon", 180); err != nil {
		return nil, err
	}

	if f.Orientation, err = enumField(raw, FieldOrientation, "orientation", "orientations", ParseOrientation, OrientationNames); err != nil {
		return nil, err
	}
	if f.Shape, err = enumField(raw, FieldShape, "shape", "shapes", ParseShape, ShapeNames); err != nil {
		return nil, err
	}
	if f.BackgroundColor, err = enumField(raw, FieldBackgroundColor, "color", "colors", ParseColor, ColorNames); err != nil {
		return nil, err
	}
	if f.AlphanumericColor, err = enumField(raw, FieldAlphanumericColor, "color", "colors", ParseColor, ColorNames); err != nil {
		return nil, err
	}

	if f.Alphanumeric, err = textField(raw, FieldAlphanumeric); err != nil {
		return nil, err
	}
	if f.Description, err = textField(raw, FieldDescription); err != nil {
		return nil, err
	}

	return f, nil
}

func coordinate(raw map[string]json.RawMessage, field, abbrev string, limit float64) (Nullable[float64], error) {
	v, ok := raw[field]
	if !ok {
		return Nullable[float64]{}, nil
	}
	if isNull(v) {
		return nullOf[float64](), nil
	}
	n, ok := parseNumber(v)
	if !ok || n < -limit || n > limit {
		return Nullable[float64]{}, Invalid(field, "Invalid %s %q, must be -%g <= %s <= %g", field, display(v), limit, abbrev, limit)
	}
	return valueOf(n), nil
}

func enumField[T any](raw map[string]json.RawMessage, field, noun, plural string, parse func(string) (T, bool), names func() []string) (Nullable[T], error) {
	v, ok := raw[field]
	if !ok {
		return Nullable[T]{}, nil
	}
	if isNull(v) {
		return nullOf[T](), nil
	}
	s, isStr := jsonString(v)
	t, found := parse(s)
	if !isStr || !found {
		return Nullable[T]{}, Invalid(field, "Unknown %s %q; known %s %s", noun, display(v), plural, listing(names()))
	}
	return valueOf(t), nil
}

// textField coerces null to the empty string; text fields are never stored as null.
func textField(raw map[string]json.RawMessage, field string) (Nullable[string], error) {
	v, ok := raw[field]
	if !ok {
		return Nullable[string]{}, nil
	}
	if isNull(v) {
		return valueOf(""), nil
	}
	s, isStr := jsonString(v)
	if !isStr {
		return Nullable[string]{}, Invalid(field, "Invalid %s %s, must be a string", field, display(v))
	}
	return valueOf(s), nil
}

// Given reports whether key is present in raw with a non-null value.
func Given(raw map[string]json.RawMessage, key string) bool {
	v, ok := raw[key]
	return ok && !isNull(v)
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func jsonString(v json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// parseNumber accepts a JSON number or a string holding one. NaN and the
// infinities are rejected.
func parseNumber(v json.RawMessage) (float64, bool) {
	text := strings.TrimSpace(string(v))
	if s, ok := jsonString(v); ok {
		text = strings.TrimSpace(s)
	} else if text == "" || text[0] == '{' || text[0] == '[' || text == "true" || text == "false" {
		return 0, false
	}
	// ParseFloat also accepts hex floats; coordinates are decimal only.
	if digits := strings.TrimLeft(text, "+-"); strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return 0, false
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// display renders a raw value for error messages: strings unquoted, anything
// else as its JSON text.
func display(v json.RawMessage) string {
	if s, ok := jsonString(v); ok {
		return s
	}
	return strings.TrimSpace(string(v))
}

func listing(names []string) string {
	return "[" + strings.Join(names, ", ") + "]"
}

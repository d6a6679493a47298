package domain

import (
	"encoding/json"
	"strings"
)

// vocabulary is a closed set of tags. Index 0 is reserved so the zero value
// of every enum type is invalid.
type vocabulary[T ~int] struct {
	names []string
	index map[string]T
}

func newVocabulary[T ~int](names ...string) vocabulary[T] {
	v := vocabulary[T]{
		names: append([]string{""}, names...),
		index: make(map[string]T, len(names)),
	}
	for i, n := range names {
		v.index[strings.ToLower(n)] = T(i + 1)
	}
	return v
}

func (v vocabulary[T]) parse(s string) (T, bool) {
	t, ok := v.index[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

func (v vocabulary[T]) name(t T) string {
	if int(t) <= 0 || int(t) >= len(v.names) {
		return ""
	}
	return v.names[t]
}

func (v vocabulary[T]) list() []string {
	out := make([]string, len(v.names)-1)
	copy(out, v.names[1:])
	return out
}

type TargetType int

const (
	TargetTypeStandard TargetType = iota + 1
	TargetTypeQRC
	TargetTypeOffAxis
	TargetTypeEmergent
)

var targetTypes = newVocabulary[TargetType]("standard", "qrc", "off_axis", "emergent")

func ParseTargetType(s string) (TargetType, bool) { return targetTypes.parse(s) }
func TargetTypeNames() []string                   { return targetTypes.list() }
func (t TargetType) String() string               { return targetTypes.name(t) }
func (t TargetType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

type Orientation int

const (
	OrientationN Orientation = iota + 1
	OrientationNE
	OrientationE
	OrientationSE
	OrientationS
	OrientationSW
	OrientationW
	OrientationNW
)

var orientations = newVocabulary[Orientation]("N", "NE", "E", "SE", "S", "SW", "W", "NW")

func ParseOrientation(s string) (Orientation, bool) { return orientations.parse(s) }
func OrientationNames() []string                    { return orientations.list() }
func (o Orientation) String() string                { return orientations.name(o) }
func (o Orientation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

type Shape int

const (
	ShapeCircle Shape = iota + 1
	ShapeSemicircle
	ShapeQuarterCircle
	ShapeTriangle
	ShapeSquare
	ShapeRectangle
	ShapeTrapezoid
	ShapePentagon
	ShapeHexagon
	ShapeHeptagon
	ShapeOctagon
	ShapeStar
	ShapeCross
)

var shapes = newVocabulary[Shape](
	"circle", "semicircle", "quarter_circle", "triangle", "square",
	"rectangle", "trapezoid", "pentagon", "hexagon", "heptagon",
	"octagon", "star", "cross",
)

func ParseShape(s string) (Shape, bool) { return shapes.parse(s) }
func ShapeNames() []string              { return shapes.list() }
func (s Shape) String() string          { return shapes.name(s) }
func (s Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

type Color int

const (
	ColorWhite Color = iota + 1
	ColorBlack
	ColorGray
	ColorRed
	ColorBlue
	ColorGreen
	ColorYellow
	ColorPurple
	ColorBrown
	ColorOrange
)

var colors = newVocabulary[Color](
	"white", "black", "gray", "red", "blue",
	"green", "yellow", "purple", "brown", "orange",
)

func ParseColor(s string) (Color, bool) { return colors.parse(s) }
func ColorNames() []string              { return colors.list() }
func (c Color) String() string          { return colors.name(c) }
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

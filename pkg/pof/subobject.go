package pof

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/pkg/chunk"
	"github.com/Faultbox/pofconv/pkg/geometry"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// MovementType describes how a subobject can animate.
type MovementType int32

// Movement types.
const (
	MovementNone     MovementType = -1
	MovementPosition MovementType = 0
	MovementRotate   MovementType = 1
)

func (t MovementType) String() string {
	switch t {
	case MovementNone:
		return "none"
	case MovementPosition:
		return "position"
	case MovementRotate:
		return "rotate"
	default:
		return fmt.Sprintf("movement(%d)", int32(t))
	}
}

// MovementAxis is the axis a moving subobject animates around.
type MovementAxis int32

// Movement axes. The numbering follows the source format, where 1 is Z.
const (
	AxisNone  MovementAxis = -1
	AxisX     MovementAxis = 0
	AxisZ     MovementAxis = 1
	AxisY     MovementAxis = 2
	AxisOther MovementAxis = 3
)

func (a MovementAxis) String() string {
	switch a {
	case AxisNone:
		return "none"
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	case AxisOther:
		return "other"
	default:
		return fmt.Sprintf("axis(%d)", int32(a))
	}
}

// SubObject is one OBJ2 record.
type SubObject struct {
	ID         int
	Radius     float32
	Parent     int // NoParent for roots
	Offset     pm.Vec3
	Center     pm.Vec3
	Min, Max   pm.Vec3
	Name       string
	Properties string
	Movement   MovementType
	Axis       MovementAxis
	Reserved   int32
	Shape      Shape
}

// Shape holds a subobject's geometry as either the raw sub-format bytes
// or the decoded Geometry (or both, once decoded). Shape values are
// immutable; Decode returns a new value.
type Shape struct {
	raw  []byte
	geom *geometry.Geometry
}

// RawShape wraps undecoded geometry bytes.
func RawShape(raw []byte) Shape {
	return Shape{raw: raw}
}

// ShapeFromGeometry encodes g and returns a Shape that is already decoded.
func ShapeFromGeometry(g *geometry.Geometry) (Shape, error) {
	raw, err := geometry.Encode(g)
	if err != nil {
		return Shape{}, err
	}
	return Shape{raw: raw, geom: g}, nil
}

// Raw returns the sub-format bytes.
func (s Shape) Raw() []byte {
	return s.raw
}

// Parsed returns the decoded geometry if the shape has been decoded.
func (s Shape) Parsed() (*geometry.Geometry, bool) {
	return s.geom, s.geom != nil
}

// Decode returns the shape with its geometry decoded. A shape that is
// already decoded is returned unchanged.
func (s Shape) Decode(log *zap.Logger) (Shape, error) {
	if s.geom != nil {
		return s, nil
	}
	g, err := geometry.Decode(s.raw, log)
	if err != nil {
		return s, err
	}
	return Shape{raw: s.raw, geom: g}, nil
}

// ResolveGeometry returns a copy of m with every subobject's geometry
// decoded. A subobject whose geometry fails to decode gets an empty
// geometry and a warning; the rest of the model is unaffected.
func (m *Model) ResolveGeometry(log *zap.Logger) *Model {
	if log == nil {
		log = zap.NewNop()
	}
	out := *m
	out.SubObjects = make([]SubObject, len(m.SubObjects))
	for i, so := range m.SubObjects {
		shape, err := so.Shape.Decode(log.With(zap.Int("subobject", so.ID)))
		if err != nil {
			log.Warn("dropping subobject geometry",
				zap.Int("subobject", so.ID),
				zap.String("name", so.Name),
				zap.Error(err))
			shape = Shape{raw: so.Shape.raw, geom: &geometry.Geometry{}}
		}
		so.Shape = shape
		out.SubObjects[i] = so
	}
	return &out
}

func readSubObject(r *chunk.Reader, _ Version) SubObject {
	var so SubObject
	so.ID = int(r.Int32())
	so.Radius = r.Float32()
	so.Parent = int(r.Int32())
	so.Offset = r.Vec3()
	so.Center = r.Vec3()
	so.Min = r.Vec3()
	so.Max = r.Vec3()
	so.Name = r.String()
	so.Properties = r.String()
	so.Movement = MovementType(r.Int32())
	so.Axis = MovementAxis(r.Int32())
	so.Reserved = r.Int32()
	n := r.Count(1)
	so.Shape = RawShape(cloneBytes(r.Bytes(n)))
	return so
}

func writeSubObject(w *chunk.Writer, so *SubObject, _ Version) {
	w.Int(so.ID)
	w.Float32(so.Radius)
	w.Int(so.Parent)
	w.Vec3(so.Offset)
	w.Vec3(so.Center)
	w.Vec3(so.Min)
	w.Vec3(so.Max)
	w.String(so.Name)
	w.String(so.Properties)
	w.Int32(int32(so.Movement))
	w.Int32(int32(so.Axis))
	w.Int32(so.Reserved)
	w.Int(len(so.Shape.raw))
	w.Write(so.Shape.raw)
}

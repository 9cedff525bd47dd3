// Package geometry decodes and encodes the polygon sub-format embedded in
// each subobject record.
package geometry

import (
	"errors"

	pm "github.com/Faultbox/pofconv/pkg/math"
)

// Block ids of the sub-format.
const (
	BlockEOF       int32 = 0
	BlockDefPoints int32 = 1
	BlockFlatPoly  int32 = 2
	BlockTmapPoly  int32 = 3
	BlockSortNorm  int32 = 4
	BlockBoundBox  int32 = 5
)

// NoTexture marks a polygon without a texture-table entry.
const NoTexture = -1

// ErrMalformedBlock is returned when a block's framing cannot be followed.
var ErrMalformedBlock = errors.New("malformed geometry block")

// Vertex is one entry of the vertex table.
type Vertex struct {
	Position pm.Vec3
	Normals  []int // indices into Geometry.Normals
}

// Corner is one polygon vertex.
type Corner struct {
	Vertex      int     // index into Geometry.Vertices
	NormalIndex int     // index into Geometry.Normals as stored in the file
	Normal      pm.Vec3 // resolved normal
	UV          pm.Vec2
}

// Polygon is a flat-shaded or textured face.
type Polygon struct {
	Texture int // texture-table index, or NoTexture
	Normal  pm.Vec3
	Center  pm.Vec3
	Radius  float32
	Color   [3]uint8 // fallback color of flat polygons
	Corners []Corner
}

// Textured reports whether the polygon references a texture.
func (p *Polygon) Textured() bool {
	return p.Texture != NoTexture
}

// Geometry is the decoded content of one subobject.
type Geometry struct {
	Vertices []Vertex
	Normals  []pm.Vec3
	Polygons []Polygon
}

// Empty reports whether there is nothing to render.
func (g *Geometry) Empty() bool {
	return g == nil || len(g.Polygons) == 0
}

// Position returns the position of the corner's vertex.
func (g *Geometry) Position(c Corner) pm.Vec3 {
	return g.Vertices[c.Vertex].Position
}

// Bounds returns the axis-aligned bounds of all referenced vertices.
// ok is false when there are no polygons.
func (g *Geometry) Bounds() (min, max pm.Vec3, ok bool) {
	for _, p := range g.Polygons {
		for _, c := range p.Corners {
			pos := g.Vertices[c.Vertex].Position
			if !ok {
				min, max, ok = pos, pos, true
				continue
			}
			min = min.Min(pos)
			max = max.Max(pos)
		}
	}
	return min, max, ok
}

// CornerCount returns the total number of polygon corners.
func (g *Geometry) CornerCount() int {
	n := 0
	for _, p := range g.Polygons {
		n += len(p.Corners)
	}
	return n
}

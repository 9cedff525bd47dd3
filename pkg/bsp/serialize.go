package bsp

import (
	"github.com/Faultbox/pofconv/pkg/geometry"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// ToGeometry converts the tree's polygons back into a Geometry and a
// layout that reproduces the tree's splits. Vertices are shared by exact
// position; each vertex keeps the distinct normals used with it.
func (t *Tree) ToGeometry() (*geometry.Geometry, *geometry.Layout) {
	g := &geometry.Geometry{}
	vertexIndex := make(map[pm.Vec3]int)
	normalIndex := make(map[[2]pm.Vec3]int)

	for _, p := range t.Polygons {
		p := p
		gp := geometry.Polygon{
			Texture: p.Texture,
			Normal:  p.Normal,
			Center:  p.Centroid(),
			Color:   p.Color,
			Corners: make([]geometry.Corner, len(p.Vertices)),
		}
		for i, v := range p.Vertices {
			vi, ok := vertexIndex[v.Position]
			if !ok {
				vi = len(g.Vertices)
				vertexIndex[v.Position] = vi
				g.Vertices = append(g.Vertices, geometry.Vertex{Position: v.Position})
			}
			key := [2]pm.Vec3{v.Position, v.Normal}
			ni, ok := normalIndex[key]
			if !ok {
				ni = len(g.Normals)
				normalIndex[key] = ni
				g.Normals = append(g.Normals, v.Normal)
				g.Vertices[vi].Normals = append(g.Vertices[vi].Normals, ni)
			}
			gp.Corners[i] = geometry.Corner{Vertex: vi, NormalIndex: ni, Normal: v.Normal, UV: v.UV}
			if d := v.Position.Distance(gp.Center); d > gp.Radius {
				gp.Radius = d
			}
		}
		g.Polygons = append(g.Polygons, gp)
	}
	return g, layoutOf(t.Root)
}

func layoutOf(n *Node) *geometry.Layout {
	switch {
	case n == nil:
		return nil
	case n.Leaf != nil:
		return &geometry.Layout{
			Polygons: n.Leaf.Polygons,
			Min:      n.Leaf.Bounds.Min,
			Max:      n.Leaf.Bounds.Max,
		}
	}
	s := n.Split
	return &geometry.Layout{
		Normal: s.Plane.Normal,
		Point:  s.Plane.Point,
		Min:    s.Bounds.Min,
		Max:    s.Bounds.Max,
		Front:  layoutOf(s.Front),
		Back:   layoutOf(s.Back),
	}
}

// Serialize writes the tree in the subobject geometry sub-format, with a
// sort-plane block for every split.
func Serialize(t *Tree) ([]byte, error) {
	g, root := t.ToGeometry()
	return geometry.EncodeLayout(g, root)
}

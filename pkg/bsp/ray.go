package bsp

import (
	"github.com/chewxy/math32"

	pm "github.com/Faultbox/pofconv/pkg/math"
)

// Ray is a half-line from Origin along Dir.
type Ray struct {
	Origin pm.Vec3
	Dir    pm.Vec3
}

// Hit is a ray-polygon intersection.
type Hit struct {
	Polygon  int     // index into Tree.Polygons
	Distance float32 // ray parameter, in units of Dir
	Point    pm.Vec3
}

// Intersect returns the closest polygon hit by the ray.
func (t *Tree) Intersect(ray Ray) (Hit, bool) {
	best := Hit{Distance: math32.Inf(1)}
	found := false
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil {
			return
		}
		if s := n.Split; s != nil {
			near, far := s.Front, s.Back
			if s.Plane.Distance(ray.Origin) < 0 {
				near, far = far, near
			}
			visit(near)
			visit(far)
			return
		}
		if n.Leaf == nil {
			return
		}
		for _, pi := range n.Leaf.Polygons {
			if h, ok := intersectPolygon(&t.Polygons[pi], ray); ok && h.Distance < best.Distance {
				h.Polygon = pi
				best = h
				found = true
			}
		}
	}
	visit(t.Root)
	return best, found
}

func intersectPolygon(p *Polygon, ray Ray) (Hit, bool) {
	if len(p.Vertices) < 3 {
		return Hit{}, false
	}
	n := p.Normal
	denom := n.Dot(ray.Dir)
	if math32.Abs(denom) < pm.Epsilon {
		return Hit{}, false
	}
	t := n.Dot(p.Vertices[0].Position.Sub(ray.Origin)) / denom
	if t < 0 {
		return Hit{}, false
	}
	point := ray.Origin.Add(ray.Dir.Scale(t))
	if windingNumber(p, n, point) == 0 {
		return Hit{}, false
	}
	return Hit{Distance: t, Point: point}, true
}

// windingNumber projects the polygon and point onto the plane that drops
// the normal's dominant axis and counts how often the outline winds
// around the point.
func windingNumber(p *Polygon, normal, point pm.Vec3) int {
	drop := 0
	for i := 1; i < 3; i++ {
		if math32.Abs(normal.Axis(i)) > math32.Abs(normal.Axis(drop)) {
			drop = i
		}
	}
	u, v := (drop+1)%3, (drop+2)%3
	project := func(q pm.Vec3) pm.Vec2 {
		return pm.Vec2{X: q.Axis(u), Y: q.Axis(v)}
	}

	pt := project(point)
	wn := 0
	count := len(p.Vertices)
	for i := 0; i < count; i++ {
		a := project(p.Vertices[i].Position)
		b := project(p.Vertices[(i+1)%count].Position)
		side := b.Sub(a).Cross(pt.Sub(a))
		if a.Y <= pt.Y {
			if b.Y > pt.Y && side > 0 {
				wn++
			}
		} else if b.Y <= pt.Y && side < 0 {
			wn--
		}
	}
	return wn
}

package bsp

import (
	"fmt"

	"go.uber.org/zap"

	pm "github.com/Faultbox/pofconv/pkg/math"
)

// SplitPolygon divides poly by the plane. Vertices within PlaneEpsilon of
// the plane go to both pieces; each edge that crosses the plane adds an
// interpolated vertex to both pieces. A piece is nil when no part of
// poly lies strictly on that side; a polygon entirely on the plane is
// returned as front.
func SplitPolygon(poly *Polygon, pl Plane) (front, back *Polygon) {
	n := len(poly.Vertices)
	dist := make([]float32, n)
	side := make([]int, n)
	var nFront, nBack int
	for i, v := range poly.Vertices {
		d := pl.Distance(v.Position)
		dist[i] = d
		switch {
		case d > PlaneEpsilon:
			side[i] = 1
			nFront++
		case d < -PlaneEpsilon:
			side[i] = -1
			nBack++
		}
	}

	if nBack == 0 {
		return poly, nil
	}
	if nFront == 0 {
		return nil, poly
	}

	f := &Polygon{Normal: poly.Normal, Texture: poly.Texture, Color: poly.Color, Source: poly.Source}
	b := &Polygon{Normal: poly.Normal, Texture: poly.Texture, Color: poly.Color, Source: poly.Source}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		vi := poly.Vertices[i]
		if side[i] >= 0 {
			f.Vertices = append(f.Vertices, vi)
		}
		if side[i] <= 0 {
			b.Vertices = append(b.Vertices, vi)
		}
		if side[i]*side[j] < 0 {
			t := dist[i] / (dist[i] - dist[j])
			vj := poly.Vertices[j]
			mid := Vertex{
				Position:     vi.Position.Lerp(vj.Position, t),
				Normal:       vi.Normal.Lerp(vj.Normal, t),
				UV:           vi.UV.Lerp(vj.UV, t),
				Interpolated: true,
			}
			f.Vertices = append(f.Vertices, mid)
			b.Vertices = append(b.Vertices, mid)
		}
	}
	return f, b
}

// Build compiles polygons into a tree. Degenerate pieces are dropped and
// logged. Exceeding the depth limit or the split budget returns ErrCompile.
func Build(polys []Polygon, opts Options, log *zap.Logger) (*Tree, error) {
	if log == nil {
		log = zap.NewNop()
	}
	b := &builder{
		opts: opts.withDefaults(),
		log:  log,
		tree: &Tree{Stats: Stats{InputPolygons: len(polys)}},
	}

	b.maxSplits = b.opts.MaxFragments * max(len(polys), 1)

	input := make([]Polygon, 0, len(polys))
	for i := range polys {
		if b.keep(&polys[i]) {
			input = append(input, polys[i])
		}
	}

	root, err := b.build(input, 0)
	if err != nil {
		return nil, err
	}
	b.tree.Root = root
	return b.tree, nil
}

type builder struct {
	opts      Options
	log       *zap.Logger
	tree      *Tree
	maxSplits int
}

// keep drops pieces with fewer than 3 vertices.
func (b *builder) keep(p *Polygon) bool {
	if p != nil && len(p.Vertices) >= 3 {
		return true
	}
	b.tree.Stats.Dropped++
	n := 0
	source := -1
	if p != nil {
		n = len(p.Vertices)
		source = p.Source
	}
	b.log.Warn("dropping degenerate polygon piece",
		zap.Int("polygon", source), zap.Int("vertices", n))
	return false
}

func (b *builder) build(polys []Polygon, depth int) (*Node, error) {
	if depth > b.opts.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds limit %d", ErrCompile, depth, b.opts.MaxDepth)
	}
	if depth > b.tree.Stats.MaxDepth {
		b.tree.Stats.MaxDepth = depth
	}
	if len(polys) <= b.opts.LeafSize {
		return b.leaf(polys), nil
	}

	pl, ok := choosePlane(polys)
	if !ok {
		return b.leaf(polys), nil
	}

	var front, back []Polygon
	for i := range polys {
		f, bk := SplitPolygon(&polys[i], pl)
		if f != nil && bk != nil {
			b.tree.Stats.Splits++
			if b.tree.Stats.Splits > b.maxSplits {
				return nil, fmt.Errorf("%w: more than %d splits for %d polygons",
					ErrCompile, b.maxSplits, b.tree.Stats.InputPolygons)
			}
		}
		if f != nil && b.keep(f) {
			front = append(front, *f)
		}
		if bk != nil && b.keep(bk) {
			back = append(back, *bk)
		}
	}
	// No separation possible; splitting again would not terminate.
	if len(front) == 0 || len(back) == 0 {
		return b.leaf(append(front, back...)), nil
	}

	fn, err := b.build(front, depth+1)
	if err != nil {
		return nil, err
	}
	bn, err := b.build(back, depth+1)
	if err != nil {
		return nil, err
	}
	return &Node{Split: &Split{
		Plane:  pl,
		Front:  fn,
		Back:   bn,
		Bounds: unionBounds(fn, bn),
	}}, nil
}

func (b *builder) leaf(polys []Polygon) *Node {
	t := b.tree
	l := &Leaf{Polygons: make([]int, len(polys))}
	for i := range polys {
		l.Polygons[i] = len(t.Polygons)
		t.Polygons = append(t.Polygons, polys[i])
	}
	l.Bounds, _ = boundsOf(t.Polygons, l.Polygons)
	t.Stats.Leaves++
	return &Node{Leaf: l}
}

// choosePlane picks the axis with the largest centroid spread and returns
// the plane through the middle of that spread. It fails when all
// centroids coincide.
func choosePlane(polys []Polygon) (Plane, bool) {
	min := polys[0].Centroid()
	max := min
	for i := 1; i < len(polys); i++ {
		c := polys[i].Centroid()
		min = min.Min(c)
		max = max.Max(c)
	}
	spread := max.Sub(min)
	axis := 0
	for i := 1; i < 3; i++ {
		if spread.Axis(i) > spread.Axis(axis) {
			axis = i
		}
	}
	if spread.Axis(axis) <= PlaneEpsilon {
		return Plane{}, false
	}
	return Plane{
		Normal: pm.UnitAxis(axis),
		Point:  min.Lerp(max, 0.5),
	}, true
}

func unionBounds(a, b *Node) Bounds {
	switch {
	case a.Empty() && b.Empty():
		return Bounds{}
	case a.Empty():
		return b.Bounds()
	case b.Empty():
		return a.Bounds()
	}
	return a.Bounds().Union(b.Bounds())
}

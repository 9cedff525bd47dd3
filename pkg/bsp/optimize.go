package bsp

import (
	"go.uber.org/zap"

	pm "github.com/Faultbox/pofconv/pkg/math"
)

// parallelDot is the |cos| above which two split planes count as parallel.
const parallelDot = 0.99

// Optimize simplifies the tree bottom-up until nothing changes or the
// pass limit is reached. The input tree is not modified; the result
// shares its polygon table.
func Optimize(t *Tree, opts Options, log *zap.Logger) *Tree {
	if log == nil {
		log = zap.NewNop()
	}
	o := &optimizer{opts: opts.withDefaults(), polys: t.Polygons}

	root := t.Root
	passes := 0
	for ; passes < o.opts.MaxIterations; passes++ {
		o.changes = 0
		root = o.node(root)
		if o.changes == 0 {
			break
		}
		log.Debug("bsp optimize pass", zap.Int("pass", passes), zap.Int("changes", o.changes))
	}

	out := &Tree{Root: root, Polygons: t.Polygons, Stats: t.Stats}
	out.Stats.Leaves = 0
	out.Stats.MaxDepth = 0
	out.Walk(func(n *Node, depth int) {
		if n.Leaf != nil {
			out.Stats.Leaves++
		}
		if depth > out.Stats.MaxDepth {
			out.Stats.MaxDepth = depth
		}
	})
	return out
}

type optimizer struct {
	opts    Options
	polys   []Polygon
	changes int
}

func (o *optimizer) node(n *Node) *Node {
	if n == nil || n.Split == nil {
		return n
	}
	s := n.Split
	front := o.node(s.Front)
	back := o.node(s.Back)

	switch {
	case front.Empty() && back.Empty():
		o.changes++
		return &Node{Leaf: &Leaf{}}
	case back.Empty():
		o.changes++
		return front
	case front.Empty():
		o.changes++
		return back
	}

	if front.Leaf != nil && back.Leaf != nil {
		if merged := o.mergeLeaves(front.Leaf, back.Leaf); merged != nil {
			o.changes++
			return &Node{Leaf: merged}
		}
	}
	if front.Split != nil && back.Split != nil {
		if merged := o.mergeSplits(front.Split, back.Split); merged != nil {
			o.changes++
			return &Node{Split: merged}
		}
	}

	if front == s.Front && back == s.Back {
		return n
	}
	return &Node{Split: &Split{Plane: s.Plane, Front: front, Back: back, Bounds: unionBounds(front, back)}}
}

// mergeLeaves joins two leaves that share an edge, within the size cap.
func (o *optimizer) mergeLeaves(a, b *Leaf) *Leaf {
	if len(a.Polygons)+len(b.Polygons) > o.opts.MaxMergedLeaf {
		return nil
	}
	if !o.shareEdge(a.Polygons, b.Polygons) {
		return nil
	}
	return joinLeaves(a, b)
}

func joinLeaves(a, b *Leaf) *Leaf {
	l := &Leaf{Polygons: make([]int, 0, len(a.Polygons)+len(b.Polygons))}
	l.Polygons = append(l.Polygons, a.Polygons...)
	l.Polygons = append(l.Polygons, b.Polygons...)
	switch {
	case len(a.Polygons) == 0:
		l.Bounds = b.Bounds
	case len(b.Polygons) == 0:
		l.Bounds = a.Bounds
	default:
		l.Bounds = a.Bounds.Union(b.Bounds)
	}
	return l
}

type edge struct{ a, b pm.Vec3 }

func (o *optimizer) edges(indices []int) map[edge]bool {
	out := make(map[edge]bool)
	for _, i := range indices {
		vs := o.polys[i].Vertices
		for j := range vs {
			a, b := vs[j].Position, vs[(j+1)%len(vs)].Position
			out[edge{a, b}] = true
			out[edge{b, a}] = true
		}
	}
	return out
}

func (o *optimizer) shareEdge(a, b []int) bool {
	ea := o.edges(a)
	for e := range o.edges(b) {
		if ea[e] {
			return true
		}
	}
	return false
}

// mergeSplits combines sibling splits with nearly parallel planes into one
// split on a's plane. Only splits whose four children are leaves are
// merged, so each merge strictly reduces the node count.
func (o *optimizer) mergeSplits(a, b *Split) *Split {
	dot := a.Plane.Normal.Dot(b.Plane.Normal)
	if dot < 0 {
		dot = -dot
	}
	if dot <= parallelDot {
		return nil
	}
	for _, n := range []*Node{a.Front, a.Back, b.Front, b.Back} {
		if n.Leaf == nil {
			return nil
		}
	}

	bFront, bBack := b.Front.Leaf, b.Back.Leaf
	if a.Plane.Normal.Dot(b.Plane.Normal) < 0 {
		bFront, bBack = bBack, bFront
	}
	front := joinLeaves(a.Front.Leaf, bFront)
	back := joinLeaves(a.Back.Leaf, bBack)
	if len(front.Polygons) > o.opts.MaxMergedLeaf || len(back.Polygons) > o.opts.MaxMergedLeaf {
		return nil
	}
	fn, bn := &Node{Leaf: front}, &Node{Leaf: back}
	return &Split{Plane: a.Plane, Front: fn, Back: bn, Bounds: unionBounds(fn, bn)}
}

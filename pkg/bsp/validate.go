package bsp

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Severity of a validation issue.
type Severity int

const (
	Warning Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "warning"
}

// Issue is one validation finding.
type Issue struct {
	Severity Severity
	Message  string
}

// Report collects validation issues.
type Report struct {
	Issues []Issue
}

// Valid reports whether the tree has no fatal issues.
func (r *Report) Valid() bool {
	return r.Count(Fatal) == 0
}

// Count returns the number of issues with the given severity.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == s {
			n++
		}
	}
	return n
}

func (r *Report) add(s Severity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: s, Message: fmt.Sprintf(format, args...)})
}

const (
	unitTolerance   = 1e-3
	boundsTolerance = 1e-3
)

// Validate checks the structure of t.
func Validate(t *Tree, opts Options) *Report {
	opts = opts.withDefaults()
	r := &Report{}
	if t == nil || t.Root == nil {
		r.add(Fatal, "tree has no root")
		return r
	}
	v := &validator{t: t, r: r, maxDepth: opts.MaxDepth}
	v.node(t.Root, 0, "root")
	return r
}

type validator struct {
	t        *Tree
	r        *Report
	maxDepth int
}

func (v *validator) node(n *Node, depth int, path string) {
	r := v.r
	if depth > v.maxDepth {
		r.add(Fatal, "%s: depth %d exceeds limit %d", path, depth, v.maxDepth)
		return
	}
	if n == nil {
		r.add(Fatal, "%s: missing node", path)
		return
	}
	if (n.Leaf == nil) == (n.Split == nil) {
		r.add(Fatal, "%s: node must be exactly one of leaf or split", path)
		return
	}

	if s := n.Split; s != nil {
		if s.Plane.Normal.Length() < unitTolerance {
			r.add(Fatal, "%s: split has no plane normal", path)
		}
		if !finite(s.Plane.Point.X) || !finite(s.Plane.Point.Y) || !finite(s.Plane.Point.Z) {
			r.add(Fatal, "%s: split has no plane point", path)
		}
		if !s.Bounds.Valid() {
			r.add(Fatal, "%s: bounds min %v greater than max %v", path, s.Bounds.Min, s.Bounds.Max)
		}
		v.node(s.Front, depth+1, path+".front")
		v.node(s.Back, depth+1, path+".back")
		return
	}

	l := n.Leaf
	if !l.Bounds.Valid() {
		r.add(Fatal, "%s: bounds min %v greater than max %v", path, l.Bounds.Min, l.Bounds.Max)
	}
	for _, pi := range l.Polygons {
		if pi < 0 || pi >= len(v.t.Polygons) {
			r.add(Fatal, "%s: polygon index %d out of range", path, pi)
			continue
		}
		v.polygon(&v.t.Polygons[pi], l.Bounds, fmt.Sprintf("%s.poly[%d]", path, pi))
	}
}

func (v *validator) polygon(p *Polygon, b Bounds, path string) {
	r := v.r
	if len(p.Vertices) < 3 {
		r.add(Fatal, "%s: %d vertices, need at least 3", path, len(p.Vertices))
	}
	if l := p.Normal.Length(); math32.Abs(l-1) > unitTolerance {
		r.add(Warning, "%s: face normal length %.4f is not unit", path, l)
	}
	seen := make(map[[3]float32]bool, len(p.Vertices))
	outside := 0
	for _, vert := range p.Vertices {
		key := vert.Position.Array()
		if seen[key] {
			r.add(Warning, "%s: duplicate vertex %v", path, vert.Position)
		}
		seen[key] = true
		if !b.Contains(vert.Position, boundsTolerance) {
			outside++
		}
	}
	if outside > 0 {
		r.add(Warning, "%s: %d vertices outside node bounds", path, outside)
	}
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

// Package bsp builds, optimizes, validates and queries binary space
// partition trees over subobject polygons.
package bsp

import (
	"errors"

	"github.com/Faultbox/pofconv/pkg/geometry"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// ErrCompile is returned when a tree cannot be built within the depth or
// fragment limits.
var ErrCompile = errors.New("bsp compile error")

// Default build parameters.
const (
	DefaultLeafSize      = 1
	DefaultMaxDepth      = 500
	DefaultMaxMergedLeaf = 16
	DefaultMaxIterations = 64
	DefaultMaxFragments  = 8

	// PlaneEpsilon is the distance within which a vertex counts as on a plane.
	PlaneEpsilon = 1e-4
)

// Options controls Build, Optimize and Validate.
type Options struct {
	LeafSize      int // leaf when a list has at most this many polygons
	MaxDepth      int
	MaxMergedLeaf int // largest leaf Optimize may create by merging
	MaxIterations int // Optimize pass limit
	MaxFragments  int // Build fails after more than MaxFragments splits per input polygon
}

// DefaultOptions returns the default parameters.
func DefaultOptions() Options {
	return Options{
		LeafSize:      DefaultLeafSize,
		MaxDepth:      DefaultMaxDepth,
		MaxMergedLeaf: DefaultMaxMergedLeaf,
		MaxIterations: DefaultMaxIterations,
		MaxFragments:  DefaultMaxFragments,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LeafSize <= 0 {
		o.LeafSize = d.LeafSize
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxMergedLeaf <= 0 {
		o.MaxMergedLeaf = d.MaxMergedLeaf
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.MaxFragments <= 0 {
		o.MaxFragments = d.MaxFragments
	}
	return o
}

// Vertex is a polygon corner with its interpolatable attributes.
type Vertex struct {
	Position pm.Vec3
	Normal   pm.Vec3
	UV       pm.Vec2
	// Interpolated is set on vertices created by a plane split.
	Interpolated bool
}

// Polygon is a convex face owned by a tree.
type Polygon struct {
	Vertices []Vertex
	Normal   pm.Vec3
	Texture  int
	Color    [3]uint8
	Source   int // index of the input polygon this piece came from
}

// Centroid returns the average of the polygon's vertex positions.
func (p *Polygon) Centroid() pm.Vec3 {
	var c pm.Vec3
	if len(p.Vertices) == 0 {
		return c
	}
	for _, v := range p.Vertices {
		c = c.Add(v.Position)
	}
	return c.Scale(1 / float32(len(p.Vertices)))
}

// Plane is a splitting plane through Point with the given Normal.
type Plane struct {
	Normal pm.Vec3
	Point  pm.Vec3
}

// Distance returns the signed distance of p from the plane.
func (pl Plane) Distance(p pm.Vec3) float32 {
	return pl.Normal.Dot(p.Sub(pl.Point))
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min, Max pm.Vec3
}

// Valid reports whether Min <= Max on every axis.
func (b Bounds) Valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Contains reports whether p lies inside the box grown by eps.
func (b Bounds) Contains(p pm.Vec3, eps float32) bool {
	return p.X >= b.Min.X-eps && p.X <= b.Max.X+eps &&
		p.Y >= b.Min.Y-eps && p.Y <= b.Max.Y+eps &&
		p.Z >= b.Min.Z-eps && p.Z <= b.Max.Z+eps
}

// Union returns the smallest box containing b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// boundsOf returns the box around the given polygons, and false if they
// have no vertices.
func boundsOf(polys []Polygon, indices []int) (Bounds, bool) {
	var b Bounds
	first := true
	for _, i := range indices {
		for _, v := range polys[i].Vertices {
			if first {
				b = Bounds{Min: v.Position, Max: v.Position}
				first = false
				continue
			}
			b.Min = b.Min.Min(v.Position)
			b.Max = b.Max.Max(v.Position)
		}
	}
	return b, !first
}

// Leaf is a bucket of polygons.
type Leaf struct {
	Polygons []int // indices into Tree.Polygons
	Bounds   Bounds
}

// Split divides space by a plane.
type Split struct {
	Plane  Plane
	Front  *Node
	Back   *Node
	Bounds Bounds
}

// Node is exactly one of Leaf or Split.
type Node struct {
	Leaf  *Leaf
	Split *Split
}

// Empty reports whether n is a leaf without polygons.
func (n *Node) Empty() bool {
	return n == nil || (n.Leaf != nil && n.Split == nil && len(n.Leaf.Polygons) == 0)
}

// Bounds returns the node's box.
func (n *Node) Bounds() Bounds {
	switch {
	case n == nil:
		return Bounds{}
	case n.Leaf != nil:
		return n.Leaf.Bounds
	case n.Split != nil:
		return n.Split.Bounds
	}
	return Bounds{}
}

// Stats describes a build.
type Stats struct {
	InputPolygons int
	Splits        int // polygons cut in two by a plane
	Dropped       int // degenerate pieces removed
	MaxDepth      int
	Leaves        int
}

// Tree is a compiled BSP tree.
type Tree struct {
	Root     *Node
	Polygons []Polygon
	Stats    Stats
}

// LeafPolygonCount returns the number of polygon references in all leaves.
func (t *Tree) LeafPolygonCount() int {
	count := 0
	t.Walk(func(n *Node, _ int) {
		if n.Leaf != nil {
			count += len(n.Leaf.Polygons)
		}
	})
	return count
}

// Walk calls fn for every node in pre-order with its depth (root is 0).
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if n == nil {
			return
		}
		fn(n, depth)
		if n.Split != nil {
			walk(n.Split.Front, depth+1)
			walk(n.Split.Back, depth+1)
		}
	}
	walk(t.Root, 0)
}

// FromGeometry converts decoded geometry into tree polygons.
func FromGeometry(g *geometry.Geometry) []Polygon {
	out := make([]Polygon, 0, len(g.Polygons))
	for i, p := range g.Polygons {
		poly := Polygon{
			Normal:   p.Normal,
			Texture:  p.Texture,
			Color:    p.Color,
			Source:   i,
			Vertices: make([]Vertex, len(p.Corners)),
		}
		for j, c := range p.Corners {
			poly.Vertices[j] = Vertex{Position: g.Position(c), Normal: c.Normal, UV: c.UV}
		}
		out = append(out, poly)
	}
	return out
}

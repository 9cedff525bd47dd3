package geometry

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/pofconv/pkg/chunk"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

const sortNormSize = 80

// Layout arranges polygons into sort-plane nodes for encoding.
// A node with Front or Back set is a split; otherwise it is a polygon list.
type Layout struct {
	Polygons []int // indices into Geometry.Polygons
	Normal   pm.Vec3
	Point    pm.Vec3
	Min, Max pm.Vec3
	Front    *Layout
	Back     *Layout
}

func (l *Layout) split() bool {
	return l.Front != nil || l.Back != nil
}

// Encode writes g as a vertex block followed by a single polygon list.
func Encode(g *Geometry) ([]byte, error) {
	all := make([]int, len(g.Polygons))
	for i := range all {
		all[i] = i
	}
	root := &Layout{Polygons: all}
	if min, max, ok := g.Bounds(); ok {
		root.Min, root.Max = min, max
	}
	return EncodeLayout(g, root)
}

// EncodeLayout writes g with its polygons arranged by root.
func EncodeLayout(g *Geometry, root *Layout) ([]byte, error) {
	if len(g.Vertices) > gomath.MaxUint16+1 {
		return nil, fmt.Errorf("%d vertices exceed the 16-bit index range", len(g.Vertices))
	}
	if root == nil {
		root = &Layout{}
	}
	e := &encoder{w: chunk.NewWriter(), g: g}
	if err := e.defPoints(); err != nil {
		return nil, err
	}
	if err := e.layout(root); err != nil {
		return nil, err
	}
	return e.w.Bytes(), nil
}

type encoder struct {
	w     *chunk.Writer
	g     *Geometry
	remap map[int]int // old normal index -> written index
}

func (e *encoder) block(id int32, body func(w *chunk.Writer)) error {
	start := e.w.Len()
	e.w.Int32(id)
	e.w.Int32(0)
	body(e.w)
	return e.w.PutUint32At(start+4, uint32(e.w.Len()-start))
}

func (e *encoder) defPoints() error {
	g := e.g
	e.remap = make(map[int]int)
	var ordered []pm.Vec3
	for _, v := range g.Vertices {
		for _, ni := range v.Normals {
			if ni < 0 || ni >= len(g.Normals) {
				return fmt.Errorf("vertex normal index %d out of range", ni)
			}
			if _, ok := e.remap[ni]; !ok {
				e.remap[ni] = len(ordered)
			}
			ordered = append(ordered, g.Normals[ni])
		}
		if len(v.Normals) > gomath.MaxUint8 {
			return fmt.Errorf("vertex has %d normals, limit is %d", len(v.Normals), gomath.MaxUint8)
		}
	}

	return e.block(BlockDefPoints, func(w *chunk.Writer) {
		w.Int(len(g.Vertices))
		w.Int(len(ordered))
		w.Int(20 + len(g.Vertices))
		for _, v := range g.Vertices {
			w.Uint8(uint8(len(v.Normals)))
		}
		for _, v := range g.Vertices {
			w.Vec3(v.Position)
			for _, ni := range v.Normals {
				w.Vec3(g.Normals[ni])
			}
		}
	})
}

// normalIndex returns the written normal index for c. An index that no
// vertex wrote falls back to the first normal of the corner's own vertex.
func (e *encoder) normalIndex(c Corner) int {
	if ni, ok := e.remap[c.NormalIndex]; ok {
		return ni
	}
	if own := e.g.Vertices[c.Vertex].Normals; len(own) > 0 {
		return e.remap[own[0]]
	}
	return 0
}

func (e *encoder) layout(l *Layout) error {
	if !l.split() {
		if err := e.block(BlockBoundBox, func(w *chunk.Writer) {
			w.Vec3(l.Min)
			w.Vec3(l.Max)
		}); err != nil {
			return err
		}
		for _, pi := range l.Polygons {
			if pi < 0 || pi >= len(e.g.Polygons) {
				return fmt.Errorf("layout polygon %d out of range", pi)
			}
			if err := e.polygon(&e.g.Polygons[pi]); err != nil {
				return err
			}
		}
		return e.eof()
	}

	start := e.w.Len()
	w := e.w
	w.Int32(BlockSortNorm)
	w.Int32(sortNormSize)
	w.Vec3(l.Normal)
	w.Vec3(l.Point)
	w.Int32(0)
	offsets := w.Len()
	for i := 0; i < 5; i++ {
		w.Int32(0)
	}
	w.Vec3(l.Min)
	w.Vec3(l.Max)

	for i, child := range []*Layout{l.Front, l.Back} {
		if child == nil {
			continue
		}
		if err := w.PutUint32At(offsets+4*i, uint32(w.Len()-start)); err != nil {
			return err
		}
		if err := e.layout(child); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) eof() error {
	e.w.Int32(BlockEOF)
	e.w.Int32(blockHeaderSize)
	return nil
}

func (e *encoder) polygon(p *Polygon) error {
	for _, c := range p.Corners {
		if c.Vertex < 0 || c.Vertex >= len(e.g.Vertices) {
			return fmt.Errorf("polygon corner vertex %d out of range", c.Vertex)
		}
	}
	id := BlockFlatPoly
	if p.Textured() {
		id = BlockTmapPoly
	}
	return e.block(id, func(w *chunk.Writer) {
		w.Vec3(p.Normal)
		w.Vec3(p.Center)
		w.Float32(p.Radius)
		w.Int(len(p.Corners))
		if p.Textured() {
			w.Int(p.Texture)
		} else {
			w.Uint8(p.Color[0])
			w.Uint8(p.Color[1])
			w.Uint8(p.Color[2])
			w.Uint8(0)
		}
		for _, c := range p.Corners {
			w.Uint16(uint16(c.Vertex))
			w.Uint16(uint16(e.normalIndex(c)))
			if p.Textured() {
				w.Float32(c.UV.X)
				w.Float32(c.UV.Y)
			}
		}
	})
}

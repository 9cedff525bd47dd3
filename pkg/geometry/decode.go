package geometry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/pkg/chunk"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

const blockHeaderSize = 8

type decoder struct {
	r       *chunk.Reader
	log     *zap.Logger
	g       *Geometry
	visited map[int]bool
}

// Decode parses one subobject's raw byte range.
//
// It walks the block list from offset 0 until an EOF block. A sort-plane
// block ends its list; its non-zero child offsets are followed in turn.
// Polygons that cannot be used are dropped with a warning. Only framing
// failures are returned as errors.
func Decode(raw []byte, log *zap.Logger) (*Geometry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &decoder{
		r:       chunk.NewReader(raw),
		log:     log,
		g:       &Geometry{},
		visited: make(map[int]bool),
	}
	if err := d.list(0); err != nil {
		return nil, err
	}
	return d.g, nil
}

func (d *decoder) list(off int) error {
	for {
		if d.visited[off] {
			return nil
		}
		d.visited[off] = true

		if off == d.r.Len() {
			return nil
		}
		if err := d.r.Seek(off); err != nil {
			return err
		}
		id := d.r.Int32()
		size := int(d.r.Int32())
		if err := d.r.Err(); err != nil {
			return fmt.Errorf("block header at %d: %w", off, err)
		}

		switch id {
		case BlockEOF:
			return nil
		case BlockDefPoints:
			d.defPoints(off)
		case BlockFlatPoly:
			d.polygon(off, false)
		case BlockTmapPoly:
			d.polygon(off, true)
		case BlockSortNorm:
			return d.sortNorm(off)
		case BlockBoundBox:
			// Render-order hint; not needed for export.
			d.r.Vec3()
			d.r.Vec3()
		default:
			d.log.Warn("skipping unknown geometry block",
				zap.Int32("id", id), zap.Int("offset", off), zap.Int("size", size))
		}
		if err := d.r.Err(); err != nil {
			return fmt.Errorf("block %d at %d: %w", id, off, err)
		}
		if size < blockHeaderSize {
			return fmt.Errorf("%w: block %d at %d has size %d", ErrMalformedBlock, id, off, size)
		}
		off += size
	}
}

func (d *decoder) defPoints(start int) {
	r := d.r
	nVerts := r.Count(1)
	nNorms := int(r.Int32())
	dataOff := int(r.Int32())
	counts := r.Bytes(nVerts)
	if r.Err() != nil {
		return
	}
	if err := r.Seek(start + dataOff); err != nil {
		return
	}

	g := d.g
	total := 0
	for i := 0; i < nVerts; i++ {
		v := Vertex{Position: r.Vec3()}
		n := int(counts[i])
		if n > 0 {
			v.Normals = make([]int, n)
			for j := 0; j < n; j++ {
				v.Normals[j] = len(g.Normals)
				g.Normals = append(g.Normals, r.Vec3())
			}
		}
		total += n
		g.Vertices = append(g.Vertices, v)
	}
	if total != nNorms {
		d.log.Warn("normal count mismatch in vertex block",
			zap.Int("declared", nNorms), zap.Int("actual", total))
	}
}

func (d *decoder) polygon(start int, textured bool) {
	r := d.r
	p := Polygon{Texture: NoTexture}
	normal := r.Vec3()
	p.Center = r.Vec3()
	p.Radius = r.Float32()
	n := r.Count(4)
	if textured {
		p.Texture = int(r.Int32())
	} else {
		p.Color = [3]uint8{r.Uint8(), r.Uint8(), r.Uint8()}
		r.Uint8() // pad
	}
	p.Corners = make([]Corner, n)
	for i := range p.Corners {
		c := &p.Corners[i]
		c.Vertex = int(r.Uint16())
		c.NormalIndex = int(r.Uint16())
		if textured {
			c.UV = pm.Vec2{X: r.Float32(), Y: r.Float32()}
		}
	}
	if r.Err() != nil {
		return
	}

	if n < 3 {
		d.log.Warn("dropping polygon with fewer than 3 vertices",
			zap.Int("offset", start), zap.Int("vertices", n))
		return
	}
	unit, err := normal.Normalize()
	if err != nil {
		d.log.Warn("dropping polygon with degenerate face normal", zap.Int("offset", start))
		return
	}
	p.Normal = unit

	g := d.g
	for i := range p.Corners {
		c := &p.Corners[i]
		if c.Vertex >= len(g.Vertices) {
			d.log.Warn("dropping polygon with out-of-range vertex",
				zap.Int("offset", start), zap.Int("vertex", c.Vertex), zap.Int("vertices", len(g.Vertices)))
			return
		}
		switch {
		case len(g.Vertices[c.Vertex].Normals) == 0:
			// No per-vertex normal was stored; fall back to the face normal.
			c.Normal = p.Normal
		case c.NormalIndex < len(g.Normals):
			c.Normal = g.Normals[c.NormalIndex]
		default:
			d.log.Warn("substituting face normal for out-of-range normal index",
				zap.Int("offset", start), zap.Int("normal", c.NormalIndex))
			c.Normal = p.Normal
		}
	}
	g.Polygons = append(g.Polygons, p)
}

func (d *decoder) sortNorm(start int) error {
	r := d.r
	r.Vec3() // plane normal
	r.Vec3() // plane point
	r.Int32()
	var children [5]int
	for i := range children {
		children[i] = int(r.Int32())
	}
	r.Vec3() // bounds
	r.Vec3()
	if err := r.Err(); err != nil {
		return fmt.Errorf("sort node at %d: %w", start, err)
	}
	for _, rel := range children {
		if rel == 0 {
			continue
		}
		if err := d.list(start + rel); err != nil {
			return err
		}
	}
	return nil
}

package export

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/pkg/geometry"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// DefaultMaterial is the bucket of polygons without a usable texture.
const DefaultMaterial = -1

// Mesh is deduplicated, triangulated geometry in target space.
type Mesh struct {
	Positions  []pm.Vec3
	Normals    []pm.Vec3
	UVs        []pm.Vec2
	Primitives []Primitive
	Corners    int // polygon corners before deduplication
}

// Primitive is the triangles of one material.
type Primitive struct {
	Material int // texture index, or DefaultMaterial
	Indices  []uint32
}

// Triangles returns the total triangle count.
func (m *Mesh) Triangles() int {
	n := 0
	for _, p := range m.Primitives {
		n += len(p.Indices) / 3
	}
	return n
}

// vertexKey is the bit pattern of a converted corner, with -0 folded
// into +0.
type vertexKey [8]uint32

func bits(f float32) uint32 {
	if f == 0 {
		f = 0
	}
	return math.Float32bits(f)
}

func keyOf(pos, normal pm.Vec3, uv pm.Vec2) vertexKey {
	return vertexKey{
		bits(pos.X), bits(pos.Y), bits(pos.Z),
		bits(normal.X), bits(normal.Y), bits(normal.Z),
		bits(uv.X), bits(uv.Y),
	}
}

// BuildMesh converts g to target space, merges corners with identical
// position, normal and UV, and fan-triangulates every polygon into a
// primitive per texture. Textures at or beyond textureCount fall into
// the default bucket. Deduplication covers only g.
func BuildMesh(g *geometry.Geometry, textureCount int, log *zap.Logger) *Mesh {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Mesh{}
	index := make(map[vertexKey]uint32)
	buckets := make(map[int][]uint32)

	for pi := range g.Polygons {
		p := &g.Polygons[pi]
		if len(p.Corners) < 3 {
			continue
		}
		material := p.Texture
		if material != geometry.NoTexture && material >= textureCount {
			log.Warn("polygon texture outside texture table, using default material",
				zap.Int("polygon", pi), zap.Int("texture", material), zap.Int("textures", textureCount))
			material = DefaultMaterial
		}
		if material < 0 {
			material = DefaultMaterial
		}

		ids := make([]uint32, len(p.Corners))
		for ci, c := range p.Corners {
			pos := Point(g.Position(c))
			normal := Point(c.Normal)
			key := keyOf(pos, normal, c.UV)
			id, ok := index[key]
			if !ok {
				id = uint32(len(m.Positions))
				index[key] = id
				m.Positions = append(m.Positions, pos)
				m.Normals = append(m.Normals, normal)
				m.UVs = append(m.UVs, c.UV)
			}
			ids[ci] = id
		}
		m.Corners += len(ids)

		for i := 1; i+1 < len(ids); i++ {
			buckets[material] = append(buckets[material], ids[0], ids[i], ids[i+1])
		}
	}

	materials := make([]int, 0, len(buckets))
	for mat := range buckets {
		materials = append(materials, mat)
	}
	// Textured buckets in table order, default last.
	sort.Slice(materials, func(i, j int) bool {
		a, b := materials[i], materials[j]
		if a == DefaultMaterial || b == DefaultMaterial {
			return b == DefaultMaterial && a != DefaultMaterial
		}
		return a < b
	})
	for _, mat := range materials {
		m.Primitives = append(m.Primitives, Primitive{Material: mat, Indices: buckets[mat]})
	}
	return m
}

// Bounds returns the position bounds, or false for an empty mesh.
func (m *Mesh) Bounds() (min, max pm.Vec3, ok bool) {
	if len(m.Positions) == 0 {
		return min, max, false
	}
	min, max = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		min = min.Min(p)
		max = max.Max(p)
	}
	return min, max, true
}

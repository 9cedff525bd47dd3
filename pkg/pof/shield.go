package pof

import (
	"github.com/Faultbox/pofconv/pkg/chunk"
	"github.com/Faultbox/pofconv/pkg/encoding"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// ShieldMesh is the low-poly shield hull.
type ShieldMesh struct {
	Vertices []pm.Vec3
	Faces    []ShieldFace
}

// Empty returns true if the model has no shield mesh.
func (s *ShieldMesh) Empty() bool {
	return len(s.Vertices) == 0 && len(s.Faces) == 0
}

// ShieldFace is a shield triangle with its three neighbouring faces.
type ShieldFace struct {
	Normal    pm.Vec3
	Vertices  [3]int
	Neighbors [3]int
}

// Insignia is a decal drawn on the hull at one detail level.
type Insignia struct {
	LOD    int
	Offset pm.Vec3
	Faces  [][3]InsigniaCorner
}

// InsigniaCorner is one corner of an insignia triangle.
type InsigniaCorner struct {
	Position pm.Vec3
	U, V     float32
}

func readShield(r *chunk.Reader, _ Version) ShieldMesh {
	var s ShieldMesh
	s.Vertices = make([]pm.Vec3, r.Count(12))
	for i := range s.Vertices {
		s.Vertices[i] = r.Vec3()
	}
	s.Faces = make([]ShieldFace, r.Count(36))
	for i := range s.Faces {
		f := ShieldFace{Normal: r.Vec3()}
		for j := range f.Vertices {
			f.Vertices[j] = int(r.Int32())
		}
		for j := range f.Neighbors {
			f.Neighbors[j] = int(r.Int32())
		}
		s.Faces[i] = f
	}
	return s
}

func writeShield(w *chunk.Writer, s *ShieldMesh) {
	w.Int(len(s.Vertices))
	for _, v := range s.Vertices {
		w.Vec3(v)
	}
	w.Int(len(s.Faces))
	for _, f := range s.Faces {
		w.Vec3(f.Normal)
		for _, v := range f.Vertices {
			w.Int(v)
		}
		for _, n := range f.Neighbors {
			w.Int(n)
		}
	}
}

// readInsignia resolves face corners to positions. An out-of-range vertex
// index resolves to the origin.
func readInsignia(r *chunk.Reader, _ Version) []Insignia {
	n := r.Count(20)
	out := make([]Insignia, n)
	for i := range out {
		ins := Insignia{LOD: int(r.Int32())}
		faces := r.Count(36)
		verts := make([]pm.Vec3, r.Count(12))
		for j := range verts {
			verts[j] = r.Vec3()
		}
		ins.Offset = r.Vec3()
		ins.Faces = make([][3]InsigniaCorner, faces)
		for j := range ins.Faces {
			for k := 0; k < 3; k++ {
				idx := int(r.Int32())
				c := InsigniaCorner{U: r.Float32(), V: r.Float32()}
				if idx >= 0 && idx < len(verts) {
					c.Position = verts[idx]
				}
				ins.Faces[j][k] = c
			}
		}
		out[i] = ins
	}
	return out
}

func writeInsignia(w *chunk.Writer, insignia []Insignia) {
	w.Int(len(insignia))
	for _, ins := range insignia {
		var verts []pm.Vec3
		index := make(map[pm.Vec3]int)
		for _, f := range ins.Faces {
			for _, c := range f {
				if _, ok := index[c.Position]; !ok {
					index[c.Position] = len(verts)
					verts = append(verts, c.Position)
				}
			}
		}
		w.Int(ins.LOD)
		w.Int(len(ins.Faces))
		w.Int(len(verts))
		for _, v := range verts {
			w.Vec3(v)
		}
		w.Vec3(ins.Offset)
		for _, f := range ins.Faces {
			for _, c := range f {
				w.Int(index[c.Position])
				w.Float32(c.U)
				w.Float32(c.V)
			}
		}
	}
}

func readAutoCenter(r *chunk.Reader, _ Version) *pm.Vec3 {
	v := r.Vec3()
	return &v
}

func readShieldTree(r *chunk.Reader, _ Version) []byte {
	return cloneBytes(r.Bytes(r.Count(1)))
}

func writeShieldTree(w *chunk.Writer, tree []byte) {
	w.Int(len(tree))
	w.Write(tree)
}

func readProductionInfo(r *chunk.Reader, size int) []string {
	return encoding.SplitNull(r.Bytes(size))
}

func writeProductionInfo(w *chunk.Writer, info []string) {
	w.Write(encoding.JoinNull(info))
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

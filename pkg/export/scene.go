package export

import (
	"bytes"
	"fmt"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/pofconv/pkg/chunk"
	"github.com/Faultbox/pofconv/pkg/geometry"
	pm "github.com/Faultbox/pofconv/pkg/math"
	"github.com/Faultbox/pofconv/pkg/pof"
)

// Options controls scene and metadata output.
type Options struct {
	Name         string // name of the synthetic root node
	TextureExt   string // appended to texture names in image URIs
	Generator    string
	ConversionID string // written to the metadata; generated when empty
}

// DefaultOptions returns the default export options.
func DefaultOptions() Options {
	return Options{Name: "model", TextureExt: ".png", Generator: "pofconv"}
}

// SceneStats summarizes an assembled scene.
type SceneStats struct {
	Nodes      int
	Meshes     int
	Primitives int
	Vertices   int
	Triangles  int
}

// Scene is an assembled glTF document.
type Scene struct {
	Doc    *gltf.Document
	Meshes map[int]*Mesh // by subobject id, only for subobjects with triangles
	Stats  SceneStats
}

var (
	identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	noRotation     = [4]float64{0, 0, 0, 1}
	unitScale      = [3]float64{1, 1, 1}
	defaultColor   = [4]float64{0.8, 0.8, 0.8, 1}
)

// BuildScene assembles the glTF document for m. Subobjects whose
// geometry has not been decoded are decoded here; decode failures leave
// the node without a mesh.
func BuildScene(m *pof.Model, opts Options, log *zap.Logger) (*Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = DefaultOptions().Name
	}
	doc := &gltf.Document{
		Asset: gltf.Asset{Version: "2.0", Generator: opts.Generator},
	}
	s := &Scene{Doc: doc, Meshes: make(map[int]*Mesh)}
	p := &packer{doc: doc, w: chunk.NewWriter()}

	addMaterials(doc, m.Textures, opts.TextureExt)
	defaultMaterial := -1

	root := &gltf.Node{Name: opts.Name, Matrix: identityMatrix, Rotation: noRotation, Scale: unitScale}
	doc.Nodes = append(doc.Nodes, root)

	nodeOf := make(map[int]int, len(m.SubObjects))
	for i := range m.SubObjects {
		so := &m.SubObjects[i]
		node := &gltf.Node{
			Name:        so.Name,
			Translation: vec3(Point(so.Offset)),
			Rotation:    noRotation,
			Scale:       unitScale,
			Matrix:      identityMatrix,
			Extras: map[string]any{
				"id":         so.ID,
				"properties": so.Properties,
			},
		}

		g := subObjectGeometry(so, log)
		if g != nil && !g.Empty() {
			mesh := BuildMesh(g, len(m.Textures), log.With(zap.Int("subobject", so.ID)))
			if mesh.Triangles() > 0 {
				if defaultMaterial < 0 && usesDefault(mesh) {
					defaultMaterial = addDefaultMaterial(doc)
				}
				node.Mesh = gltf.Index(p.mesh(so.Name, mesh, defaultMaterial))
				s.Meshes[so.ID] = mesh
				s.Stats.Meshes++
				s.Stats.Primitives += len(mesh.Primitives)
				s.Stats.Vertices += len(mesh.Positions)
				s.Stats.Triangles += mesh.Triangles()
			}
		}

		if _, dup := nodeOf[so.ID]; !dup {
			nodeOf[so.ID] = len(doc.Nodes)
		}
		doc.Nodes = append(doc.Nodes, node)
	}

	detached := m.DetachedIDs()
	for i := range m.SubObjects {
		so := &m.SubObjects[i]
		child := i + 1
		parent, ok := nodeOf[so.Parent]
		if so.Parent == pof.NoParent || !ok || detached[so.ID] || nodeOf[so.ID] != child {
			root.Children = append(root.Children, child)
			continue
		}
		doc.Nodes[parent].Children = append(doc.Nodes[parent].Children, child)
	}

	doc.Scenes = []*gltf.Scene{{Name: opts.Name, Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)
	p.finish()

	s.Stats.Nodes = len(doc.Nodes)
	log.Debug("scene assembled",
		zap.Int("nodes", s.Stats.Nodes),
		zap.Int("meshes", s.Stats.Meshes),
		zap.Int("vertices", s.Stats.Vertices),
		zap.Int("triangles", s.Stats.Triangles))
	return s, nil
}

// GLB encodes the scene as a binary glTF file.
func (s *Scene) GLB() ([]byte, error) {
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(s.Doc); err != nil {
		return nil, fmt.Errorf("encoding glb: %w", err)
	}
	return buf.Bytes(), nil
}

func subObjectGeometry(so *pof.SubObject, log *zap.Logger) *geometry.Geometry {
	if g, ok := so.Shape.Parsed(); ok {
		return g
	}
	shape, err := so.Shape.Decode(log.With(zap.Int("subobject", so.ID)))
	if err != nil {
		log.Warn("skipping subobject mesh", zap.Int("subobject", so.ID), zap.Error(err))
		return nil
	}
	g, _ := shape.Parsed()
	return g
}

func usesDefault(m *Mesh) bool {
	for _, p := range m.Primitives {
		if p.Material == DefaultMaterial {
			return true
		}
	}
	return false
}

func addMaterials(doc *gltf.Document, textures []string, ext string) {
	for i, name := range textures {
		doc.Images = append(doc.Images, &gltf.Image{Name: name, URI: name + ext})
		doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(i)})
		metallic := 0.0
		doc.Materials = append(doc.Materials, &gltf.Material{
			Name: name,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorTexture: &gltf.TextureInfo{Index: i},
				MetallicFactor:   &metallic,
			},
		})
	}
}

func addDefaultMaterial(doc *gltf.Document) int {
	color := defaultColor
	metallic := 0.0
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name: "default",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &color,
			MetallicFactor:  &metallic,
		},
	})
	return len(doc.Materials) - 1
}

func vec3(v pm.Vec3) [3]float64 {
	return [3]float64{float64(v.X), float64(v.Y), float64(v.Z)}
}

func floats(v pm.Vec3) []float64 {
	return []float64{float64(v.X), float64(v.Y), float64(v.Z)}
}

// packer lays out mesh arrays in the single binary buffer.
type packer struct {
	doc *gltf.Document
	w   *chunk.Writer
}

func (p *packer) view(target gltf.Target, write func(w *chunk.Writer)) int {
	for p.w.Len()%4 != 0 {
		p.w.Uint8(0)
	}
	start := p.w.Len()
	write(p.w)
	p.doc.BufferViews = append(p.doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: start,
		ByteLength: p.w.Len() - start,
		Target:     target,
	})
	return len(p.doc.BufferViews) - 1
}

func (p *packer) accessor(view int, ct gltf.ComponentType, typ gltf.AccessorType, count int, min, max []float64) int {
	p.doc.Accessors = append(p.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: ct,
		Type:          typ,
		Count:         count,
		Min:           min,
		Max:           max,
	})
	return len(p.doc.Accessors) - 1
}

func (p *packer) mesh(name string, m *Mesh, defaultMaterial int) int {
	n := len(m.Positions)
	min, max, _ := m.Bounds()

	pos := p.accessor(p.view(gltf.TargetArrayBuffer, func(w *chunk.Writer) {
		for _, v := range m.Positions {
			w.Vec3(v)
		}
	}), gltf.ComponentFloat, gltf.AccessorVec3, n, floats(min), floats(max))

	nrm := p.accessor(p.view(gltf.TargetArrayBuffer, func(w *chunk.Writer) {
		for _, v := range m.Normals {
			w.Vec3(v)
		}
	}), gltf.ComponentFloat, gltf.AccessorVec3, n, nil, nil)

	uv := p.accessor(p.view(gltf.TargetArrayBuffer, func(w *chunk.Writer) {
		for _, v := range m.UVs {
			w.Float32(v.X)
			w.Float32(v.Y)
		}
	}), gltf.ComponentFloat, gltf.AccessorVec2, n, nil, nil)

	mesh := &gltf.Mesh{Name: name}
	for _, prim := range m.Primitives {
		prim := prim
		indices := p.accessor(p.view(gltf.TargetElementArrayBuffer, func(w *chunk.Writer) {
			for _, i := range prim.Indices {
				w.Uint32(i)
			}
		}), gltf.ComponentUint, gltf.AccessorScalar, len(prim.Indices), nil, nil)

		material := prim.Material
		if material == DefaultMaterial {
			material = defaultMaterial
		}
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Attributes: map[string]int{
				gltf.POSITION:   pos,
				gltf.NORMAL:     nrm,
				gltf.TEXCOORD_0: uv,
			},
			Indices:  gltf.Index(indices),
			Material: gltf.Index(material),
			Mode:     gltf.PrimitiveTriangles,
		})
	}
	p.doc.Meshes = append(p.doc.Meshes, mesh)
	return len(p.doc.Meshes) - 1
}

func (p *packer) finish() {
	if p.w.Len() == 0 {
		return
	}
	for p.w.Len()%4 != 0 {
		p.w.Uint8(0)
	}
	data := p.w.Bytes()
	p.doc.Buffers = []*gltf.Buffer{{ByteLength: len(data), Data: data}}
}

package export

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	pm "github.com/Faultbox/pofconv/pkg/math"
	"github.com/Faultbox/pofconv/pkg/pof"
)

// MetadataFormat identifies the sidecar schema.
const MetadataFormat = "pofconv-metadata/1"

// Vec is a converted vector.
type Vec [3]float32

func vec(v pm.Vec3) Vec {
	p := Point(v)
	return Vec{p.X, p.Y, p.Z}
}

// Metadata is the sidecar document. All coordinates are in target space.
type Metadata struct {
	Format         string             `yaml:"format"`
	Generator      string             `yaml:"generator"`
	ConversionID   string             `yaml:"conversion_id"`
	Source         string             `yaml:"source,omitempty"`
	Version        string             `yaml:"pof_version"`
	Header         HeaderMeta         `yaml:"header"`
	Textures       []string           `yaml:"textures,omitempty"`
	SubObjects     []SubObjectMeta    `yaml:"subobjects,omitempty"`
	EyePoints      []EyePointMeta     `yaml:"eye_points,omitempty"`
	SpecialPoints  []SpecialPointMeta `yaml:"special_points,omitempty"`
	GunBanks       [][]PointMeta      `yaml:"gun_banks,omitempty"`
	MissileBanks   [][]PointMeta      `yaml:"missile_banks,omitempty"`
	GunTurrets     []TurretMeta       `yaml:"gun_turrets,omitempty"`
	MissileTurrets []TurretMeta       `yaml:"missile_turrets,omitempty"`
	DockingPoints  []DockMeta         `yaml:"docking_points,omitempty"`
	Thrusters      []ThrusterMeta     `yaml:"thrusters,omitempty"`
	Shield         *ShieldMeta        `yaml:"shield,omitempty"`
	Insignia       []InsigniaMeta     `yaml:"insignia,omitempty"`
	Paths          []PathMeta         `yaml:"paths,omitempty"`
	GlowBanks      []GlowBankMeta     `yaml:"glow_banks,omitempty"`
	AutoCenter     *Vec               `yaml:"auto_center,omitempty,flow"`
	ShieldTreeSize int                `yaml:"shield_tree_bytes,omitempty"`
	ProductionInfo []string           `yaml:"production_info,omitempty"`
	UnknownChunks  []string           `yaml:"unknown_chunks,omitempty"`
}

// HeaderMeta is the model header: bounds, mass properties and detail levels.
type HeaderMeta struct {
	MaxRadius      float32            `yaml:"max_radius"`
	Flags          uint32             `yaml:"flags"`
	SubObjectCount int                `yaml:"subobject_count"`
	Min            Vec                `yaml:"min,flow"`
	Max            Vec                `yaml:"max,flow"`
	DetailLevels   []int              `yaml:"detail_levels,flow"`
	Debris         []int              `yaml:"debris,flow"`
	Mass           float32            `yaml:"mass"`
	MassCenter     Vec                `yaml:"mass_center,flow"`
	Inertia        [3]Vec             `yaml:"inertia,flow"`
	CrossSections  []CrossSectionMeta `yaml:"cross_sections,omitempty"`
	Lights         []LightMeta        `yaml:"lights,omitempty"`
}

// CrossSectionMeta is one depth/radius sample of the hull profile.
type CrossSectionMeta struct {
	Depth  float32 `yaml:"depth"`
	Radius float32 `yaml:"radius"`
}

// LightMeta is a header light source.
type LightMeta struct {
	Position Vec   `yaml:"position,flow"`
	Type     int32 `yaml:"type"`
}

// SubObjectMeta describes one subobject and the mesh exported for it.
type SubObjectMeta struct {
	ID          int     `yaml:"id"`
	Name        string  `yaml:"name"`
	Parent      int     `yaml:"parent"`
	Properties  string  `yaml:"properties,omitempty"`
	Movement    string  `yaml:"movement"`
	Axis        string  `yaml:"axis"`
	Radius      float32 `yaml:"radius"`
	Offset      Vec     `yaml:"offset,flow"`
	WorldOffset Vec     `yaml:"world_offset,flow"`
	Center      Vec     `yaml:"center,flow"`
	Min         Vec     `yaml:"min,flow"`
	Max         Vec     `yaml:"max,flow"`
	Vertices    int     `yaml:"vertices"`
	Triangles   int     `yaml:"triangles"`
}

// EyePointMeta is a cockpit view position relative to its parent subobject.
type EyePointMeta struct {
	Parent int `yaml:"parent"`
	Offset Vec `yaml:"offset,flow"`
	Normal Vec `yaml:"normal,flow"`
}

// SpecialPointMeta is a named marker such as a subsystem location.
type SpecialPointMeta struct {
	Name       string  `yaml:"name"`
	Properties string  `yaml:"properties,omitempty"`
	Position   Vec     `yaml:"position,flow"`
	Radius     float32 `yaml:"radius"`
}

// PointMeta is a position with a facing direction.
type PointMeta struct {
	Position Vec `yaml:"position,flow"`
	Normal   Vec `yaml:"normal,flow"`
}

// TurretMeta is a turret with its firing points.
type TurretMeta struct {
	Parent        int   `yaml:"parent"`
	PhysicsParent int   `yaml:"physics_parent"`
	Normal        Vec   `yaml:"normal,flow"`
	FirePoints    []Vec `yaml:"fire_points,flow"`
}

// DockMeta is a docking bay with its approach paths.
type DockMeta struct {
	Properties string      `yaml:"properties,omitempty"`
	Paths      []int       `yaml:"paths,flow"`
	Points     []PointMeta `yaml:"points"`
}

// GlowPointMeta is one glow sprite.
type GlowPointMeta struct {
	Position Vec     `yaml:"position,flow"`
	Normal   Vec     `yaml:"normal,flow"`
	Radius   float32 `yaml:"radius"`
}

// ThrusterMeta is an engine and its glow points.
type ThrusterMeta struct {
	Properties string          `yaml:"properties,omitempty"`
	Glows      []GlowPointMeta `yaml:"glows"`
}

// ShieldMeta is the collision shield mesh.
type ShieldMeta struct {
	Vertices []Vec            `yaml:"vertices,flow"`
	Faces    []ShieldFaceMeta `yaml:"faces"`
}

// ShieldFaceMeta is a shield triangle with its adjacent face indices.
type ShieldFaceMeta struct {
	Normal    Vec    `yaml:"normal,flow"`
	Vertices  [3]int `yaml:"vertices,flow"`
	Neighbors [3]int `yaml:"neighbors,flow"`
}

// InsigniaMeta is a decal mesh for one detail level.
type InsigniaMeta struct {
	LOD    int                     `yaml:"lod"`
	Offset Vec                     `yaml:"offset,flow"`
	Faces  [][3]InsigniaCornerMeta `yaml:"faces"`
}

// InsigniaCornerMeta is one decal corner with its texture coordinates.
type InsigniaCornerMeta struct {
	Position Vec     `yaml:"position,flow"`
	U        float32 `yaml:"u"`
	V        float32 `yaml:"v"`
}

// PathMeta is a named navigation path, optionally bound to a subobject.
type PathMeta struct {
	Name   string          `yaml:"name"`
	Parent string          `yaml:"parent,omitempty"`
	Points []PathPointMeta `yaml:"points"`
}

// PathPointMeta is one path waypoint and the turrets it serves.
type PathPointMeta struct {
	Position Vec     `yaml:"position,flow"`
	Radius   float32 `yaml:"radius"`
	Turrets  []int   `yaml:"turrets,omitempty,flow"`
}

// GlowBankMeta is a group of glow points that blink together.
type GlowBankMeta struct {
	DisplayTime int32           `yaml:"display_time"`
	OnTime      int32           `yaml:"on_time"`
	OffTime     int32           `yaml:"off_time"`
	Parent      int             `yaml:"parent"`
	LOD         int             `yaml:"lod"`
	Type        int32           `yaml:"type"`
	Properties  string          `yaml:"properties,omitempty"`
	Points      []GlowPointMeta `yaml:"points"`
}

// BuildMetadata collects everything the scene file does not carry.
// scene may be nil, in which case mesh counts are zero.
func BuildMetadata(m *pof.Model, scene *Scene, source string, opts Options) *Metadata {
	id := opts.ConversionID
	if id == "" {
		id = uuid.NewString()
	}
	md := &Metadata{
		Format:         MetadataFormat,
		Generator:      opts.Generator,
		ConversionID:   id,
		Source:         source,
		Version:        m.Version.String(),
		Header:         headerMeta(&m.Header),
		Textures:       m.Textures,
		ShieldTreeSize: len(m.ShieldTree),
		ProductionInfo: m.ProductionInfo,
	}

	world := worldOffsets(m)
	for _, so := range m.SubObjects {
		sm := SubObjectMeta{
			ID:          so.ID,
			Name:        so.Name,
			Parent:      so.Parent,
			Properties:  so.Properties,
			Movement:    so.Movement.String(),
			Axis:        so.Axis.String(),
			Radius:      so.Radius,
			Offset:      vec(so.Offset),
			WorldOffset: vec(world[so.ID]),
			Center:      vec(so.Center),
		}
		min, max := Box(so.Min, so.Max)
		sm.Min, sm.Max = Vec{min.X, min.Y, min.Z}, Vec{max.X, max.Y, max.Z}
		if scene != nil {
			if mesh, ok := scene.Meshes[so.ID]; ok {
				sm.Vertices = len(mesh.Positions)
				sm.Triangles = mesh.Triangles()
			}
		}
		md.SubObjects = append(md.SubObjects, sm)
	}

	for _, e := range m.EyePoints {
		md.EyePoints = append(md.EyePoints, EyePointMeta{Parent: e.Parent, Offset: vec(e.Offset), Normal: vec(e.Normal)})
	}
	for _, sp := range m.SpecialPoints {
		md.SpecialPoints = append(md.SpecialPoints, SpecialPointMeta{
			Name: sp.Name, Properties: sp.Properties, Position: vec(sp.Position), Radius: sp.Radius,
		})
	}
	md.GunBanks = bankMeta(m.GunBanks)
	md.MissileBanks = bankMeta(m.MissileBanks)
	md.GunTurrets = turretMeta(m.GunTurrets)
	md.MissileTurrets = turretMeta(m.MissileTurrets)
	for _, d := range m.DockingPoints {
		md.DockingPoints = append(md.DockingPoints, DockMeta{
			Properties: d.Properties, Paths: d.Paths, Points: pointMeta(d.Points),
		})
	}
	for _, t := range m.Thrusters {
		md.Thrusters = append(md.Thrusters, ThrusterMeta{Properties: t.Properties, Glows: glowMeta(t.Glows)})
	}
	if !m.Shield.Empty() {
		sh := &ShieldMeta{}
		for _, v := range m.Shield.Vertices {
			sh.Vertices = append(sh.Vertices, vec(v))
		}
		for _, f := range m.Shield.Faces {
			sh.Faces = append(sh.Faces, ShieldFaceMeta{Normal: vec(f.Normal), Vertices: f.Vertices, Neighbors: f.Neighbors})
		}
		md.Shield = sh
	}
	for _, ins := range m.Insignia {
		im := InsigniaMeta{LOD: ins.LOD, Offset: vec(ins.Offset)}
		for _, f := range ins.Faces {
			var face [3]InsigniaCornerMeta
			for i, c := range f {
				face[i] = InsigniaCornerMeta{Position: vec(c.Position), U: c.U, V: c.V}
			}
			im.Faces = append(im.Faces, face)
		}
		md.Insignia = append(md.Insignia, im)
	}
	for _, p := range m.Paths {
		path := PathMeta{Name: p.Name, Parent: p.Parent}
		for _, pt := range p.Points {
			path.Points = append(path.Points, PathPointMeta{Position: vec(pt.Position), Radius: pt.Radius, Turrets: pt.Turrets})
		}
		md.Paths = append(md.Paths, path)
	}
	for _, g := range m.GlowBanks {
		md.GlowBanks = append(md.GlowBanks, GlowBankMeta{
			DisplayTime: g.DisplayTime,
			OnTime:      g.OnTime,
			OffTime:     g.OffTime,
			Parent:      g.Parent,
			LOD:         g.LOD,
			Type:        g.Type,
			Properties:  g.Properties,
			Points:      glowMeta(g.Points),
		})
	}
	if m.AutoCenter != nil {
		c := vec(*m.AutoCenter)
		md.AutoCenter = &c
	}
	for _, u := range m.Unknown {
		md.UnknownChunks = append(md.UnknownChunks, u.Tag.String())
	}
	return md
}

// Marshal encodes the metadata as YAML.
func (md *Metadata) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return data, nil
}

func headerMeta(h *pof.HeaderStats) HeaderMeta {
	min, max := Box(h.Min, h.Max)
	inertia := Inertia(h.Inertia)
	hm := HeaderMeta{
		MaxRadius:      h.MaxRadius,
		Flags:          h.Flags,
		SubObjectCount: h.SubObjectCount,
		Min:            Vec{min.X, min.Y, min.Z},
		Max:            Vec{max.X, max.Y, max.Z},
		DetailLevels:   h.DetailLevels,
		Debris:         h.Debris,
		Mass:           h.Mass,
		MassCenter:     vec(h.MassCenter),
	}
	for r := 0; r < 3; r++ {
		row := inertia.Row(r)
		hm.Inertia[r] = Vec{row.X, row.Y, row.Z}
	}
	for _, c := range h.CrossSections {
		// Depth is a Z coordinate.
		hm.CrossSections = append(hm.CrossSections, CrossSectionMeta{Depth: -c.Depth, Radius: c.Radius})
	}
	for _, l := range h.Lights {
		hm.Lights = append(hm.Lights, LightMeta{Position: vec(l.Position), Type: l.Type})
	}
	return hm
}

func pointMeta(pts []pof.OrientedPoint) []PointMeta {
	out := make([]PointMeta, len(pts))
	for i, p := range pts {
		out[i] = PointMeta{Position: vec(p.Position), Normal: vec(p.Normal)}
	}
	return out
}

func bankMeta(banks []pof.WeaponBank) [][]PointMeta {
	var out [][]PointMeta
	for _, b := range banks {
		out = append(out, pointMeta(b.Points))
	}
	return out
}

func turretMeta(turrets []pof.Turret) []TurretMeta {
	var out []TurretMeta
	for _, t := range turrets {
		tm := TurretMeta{Parent: t.Parent, PhysicsParent: t.PhysicsParent, Normal: vec(t.Normal)}
		for _, p := range t.FirePoints {
			tm.FirePoints = append(tm.FirePoints, vec(p))
		}
		out = append(out, tm)
	}
	return out
}

func glowMeta(pts []pof.GlowPoint) []GlowPointMeta {
	out := make([]GlowPointMeta, len(pts))
	for i, p := range pts {
		out[i] = GlowPointMeta{Position: vec(p.Position), Normal: vec(p.Normal), Radius: p.Radius}
	}
	return out
}

// worldOffsets composes subobject offsets down the parent chain in source
// space. Detached subobjects use their local offset.
func worldOffsets(m *pof.Model) map[int]pm.Vec3 {
	detached := m.DetachedIDs()
	byID := make(map[int]*pof.SubObject, len(m.SubObjects))
	for i := range m.SubObjects {
		if _, dup := byID[m.SubObjects[i].ID]; !dup {
			byID[m.SubObjects[i].ID] = &m.SubObjects[i]
		}
	}

	world := make(map[int]pm.Mat4, len(byID))
	var resolve func(id int) pm.Mat4
	resolve = func(id int) pm.Mat4 {
		if w, ok := world[id]; ok {
			return w
		}
		so := byID[id]
		local := pm.Translate(so.Offset)
		w := local
		if parent, ok := byID[so.Parent]; ok && so.Parent != pof.NoParent && !detached[id] {
			w = resolve(parent.ID).Mul(local)
		}
		world[id] = w
		return w
	}

	out := make(map[int]pm.Vec3, len(byID))
	for id := range byID {
		out[id] = resolve(id).Translation()
	}
	return out
}

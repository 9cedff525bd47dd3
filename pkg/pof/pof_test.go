package pof

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/pofconv/pkg/chunk"
	"github.com/Faultbox/pofconv/pkg/geometry"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core), logs
}

func triangleGeometry() *geometry.Geometry {
	n := pm.V3(0, 0, 1)
	return &geometry.Geometry{
		Vertices: []geometry.Vertex{
			{Position: pm.V3(0, 0, 0), Normals: []int{0}},
			{Position: pm.V3(1, 0, 0), Normals: []int{0}},
			{Position: pm.V3(0, 1, 0), Normals: []int{0}},
		},
		Normals: []pm.Vec3{n},
		Polygons: []geometry.Polygon{{
			Texture: geometry.NoTexture,
			Normal:  n,
			Radius:  1,
			Corners: []geometry.Corner{
				{Vertex: 0, Normal: n},
				{Vertex: 1, Normal: n},
				{Vertex: 2, Normal: n},
			},
		}},
	}
}

func triangleShape(t *testing.T) Shape {
	t.Helper()
	raw, err := geometry.Encode(triangleGeometry())
	if err != nil {
		t.Fatalf("geometry.Encode failed: %v", err)
	}
	return RawShape(raw)
}

// fullModel returns a model with every collection populated.
func fullModel(t *testing.T) *Model {
	t.Helper()
	center := pm.V3(0, 0.5, 1)
	return &Model{
		Version: CurrentVersion,
		Header: HeaderStats{
			MaxRadius:      12.5,
			Flags:          1,
			SubObjectCount: 2,
			Min:            pm.V3(-1, -2, -3),
			Max:            pm.V3(1, 2, 3),
			DetailLevels:   []int{0},
			Debris:         []int{1},
			Mass:           100,
			MassCenter:     pm.V3(0, 0, 0.5),
			Inertia:        pm.Mat3{1, 0, 0, 0, 2, 0, 0, 0, 3},
			CrossSections:  []CrossSection{{Depth: -1, Radius: 2}, {Depth: 1, Radius: 1.5}},
			Lights:         []Light{{Position: pm.V3(0, 1, 0), Type: 1}},
		},
		Textures: []string{"hull01", "glass"},
		SubObjects: []SubObject{
			{
				ID: 0, Radius: 5, Parent: NoParent,
				Center: pm.V3(0, 0, 0), Min: pm.V3(-1, -1, -1), Max: pm.V3(1, 1, 1),
				Name: "detail0", Properties: "$special=hull",
				Movement: MovementNone, Axis: AxisNone,
				Shape: triangleShape(t),
			},
			{
				ID: 1, Radius: 1, Parent: 0,
				Offset: pm.V3(0, 1, 2),
				Name:   "turret01", Properties: "$fov=180",
				Movement: MovementRotate, Axis: AxisY,
				Shape: triangleShape(t),
			},
		},
		EyePoints:     []EyePoint{{Parent: 0, Offset: pm.V3(0, 0.2, 1), Normal: pm.V3(0, 0, 1)}},
		SpecialPoints: []SpecialPoint{{Name: "$engine", Properties: "$special=subsystem", Position: pm.V3(0, 0, -2), Radius: 0.5}},
		GunBanks: []WeaponBank{{Points: []OrientedPoint{
			{Position: pm.V3(-1, 0, 2), Normal: pm.V3(0, 0, 1)},
			{Position: pm.V3(1, 0, 2), Normal: pm.V3(0, 0, 1)},
		}}},
		MissileBanks:   []WeaponBank{{Points: []OrientedPoint{{Position: pm.V3(0, -1, 2), Normal: pm.V3(0, 0, 1)}}}},
		GunTurrets:     []Turret{{Parent: 1, PhysicsParent: 1, Normal: pm.V3(0, 1, 0), FirePoints: []pm.Vec3{pm.V3(0, 1.2, 2)}}},
		MissileTurrets: []Turret{{Parent: 1, PhysicsParent: 0, Normal: pm.V3(0, 1, 0), FirePoints: []pm.Vec3{pm.V3(0, 1.3, 2)}}},
		DockingPoints: []DockingPoint{{
			Properties: "$name=bay",
			Paths:      []int{0},
			Points:     []OrientedPoint{{Position: pm.V3(0, -1, 0), Normal: pm.V3(0, -1, 0)}},
		}},
		Thrusters: []Thruster{{
			Properties: "$engine_subsystem=engine",
			Glows:      []GlowPoint{{Position: pm.V3(0, 0, -3), Normal: pm.V3(0, 0, -1), Radius: 0.7}},
		}},
		Shield: ShieldMesh{
			Vertices: []pm.Vec3{pm.V3(0, 0, 0), pm.V3(1, 0, 0), pm.V3(0, 1, 0)},
			Faces:    []ShieldFace{{Normal: pm.V3(0, 0, 1), Vertices: [3]int{0, 1, 2}, Neighbors: [3]int{-1, -1, -1}}},
		},
		Insignia: []Insignia{{
			LOD:    0,
			Offset: pm.V3(0, 0, 0.01),
			Faces: [][3]InsigniaCorner{
				{{Position: pm.V3(0, 0, 0)}, {Position: pm.V3(1, 0, 0), U: 1}, {Position: pm.V3(0, 1, 0), V: 1}},
				{{Position: pm.V3(1, 0, 0), U: 1}, {Position: pm.V3(1, 1, 0), U: 1, V: 1}, {Position: pm.V3(0, 1, 0), V: 1}},
			},
		}},
		Paths: []Path{{
			Name:   "$bay01",
			Parent: "detail0",
			Points: []PathPoint{{Position: pm.V3(0, -2, 0), Radius: 1, Turrets: []int{1}}},
		}},
		GlowBanks: []GlowBank{{
			DisplayTime: 100, OnTime: 50, OffTime: 50, Parent: 0, LOD: 0, Type: 1,
			Properties: "$glow_texture=glow",
			Points:     []GlowPoint{{Position: pm.V3(1, 1, 1), Normal: pm.V3(0, 1, 0), Radius: 0.1}},
		}},
		ShieldTree:     []byte{1, 2, 3, 4, 5},
		AutoCenter:     &center,
		ProductionInfo: []string{"converted by test", "pcs2"},
		Unknown:        []RawChunk{{Tag: chunk.Tag{'X', 'T', 'R', 'A'}, Data: []byte{9, 8, 7}}},
	}
}

func TestRoundTrip(t *testing.T) {
	src := fullModel(t)
	data, err := Encode(src)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	log, logs := observed()
	got, err := Parse(data, log)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Errorf("round trip mismatch\ngot:  %+v\nwant: %+v", got, src)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 0 {
		t.Errorf("warnings = %d, want 0: %v", n, logs.All())
	}
	if n := logs.FilterMessage("keeping unknown chunk").Len(); n != 1 {
		t.Errorf("unknown chunk logs = %d, want 1", n)
	}

	again, err := Encode(got)
	if err != nil {
		t.Fatalf("second Encode failed: %v", err)
	}
	if !reflect.DeepEqual(again, data) {
		t.Error("re-encoding a decoded model changed its bytes")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, chunk.ErrIncompleteData},
		{"bad signature", []byte("OPSP\x35\x08\x00\x00"), ErrInvalidSignature},
		{"old version", []byte("PSPO\x00\x08\x00\x00"), ErrUnsupportedVersion},
		{"truncated chunk", append([]byte("PSPO\x45\x08\x00\x00TXTR\x10\x00\x00\x00"), 1, 0, 0, 0), chunk.ErrIncompleteData},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.data, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if m != nil {
				t.Error("partial model returned on error")
			}
			if !IsFormatError(err) {
				t.Errorf("IsFormatError(%v) = false", err)
			}
		})
	}

	_, err := Parse([]byte("PSPO\x00\x08\x00\x00"), nil)
	if !errors.Is(err, ErrFormat) {
		t.Errorf("unsupported version is not a format error: %v", err)
	}
}

func TestParseChunkDesync(t *testing.T) {
	w := chunk.NewWriter()
	w.Write([]byte(Signature))
	w.Int32(int32(CurrentVersion))

	mark := w.Begin(chunk.TagTextures)
	writeTextures(w, []string{"hull"})
	w.Write([]byte{0xde, 0xad, 0xbe, 0xef}) // not part of the payload layout
	if err := w.End(mark); err != nil {
		t.Fatal(err)
	}

	points := []SpecialPoint{{Name: "$shield", Position: pm.V3(1, 2, 3), Radius: 4}}
	if err := w.WriteChunk(chunk.TagSpecialPoints, func(w *chunk.Writer) { writeSpecialPoints(w, points) }); err != nil {
		t.Fatal(err)
	}
	eyes := []EyePoint{{Parent: 0, Normal: pm.V3(0, 0, 1)}}
	if err := w.WriteChunk(chunk.TagEyePoints, func(w *chunk.Writer) { writeEyePoints(w, eyes) }); err != nil {
		t.Fatal(err)
	}

	log, logs := observed()
	m, err := Parse(w.Bytes(), log)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Errorf("warnings = %d, want exactly 1: %v", n, logs.All())
	}
	if n := logs.FilterMessage("chunk size mismatch, seeking to declared end").Len(); n != 1 {
		t.Errorf("desync warnings = %d, want 1", n)
	}
	if !reflect.DeepEqual(m.Textures, []string{"hull"}) {
		t.Errorf("textures = %v", m.Textures)
	}
	if !reflect.DeepEqual(m.SpecialPoints, points) {
		t.Errorf("special points = %+v, want %+v", m.SpecialPoints, points)
	}
	if !reflect.DeepEqual(m.EyePoints, eyes) {
		t.Errorf("eye points = %+v, want %+v", m.EyePoints, eyes)
	}
}

func TestThrusterPropertiesByVersion(t *testing.T) {
	thrusters := []Thruster{{
		Properties: "$engine",
		Glows:      []GlowPoint{{Position: pm.V3(0, 0, -1), Normal: pm.V3(0, 0, -1), Radius: 1}},
	}}

	tests := []struct {
		version Version
		want    string
	}{
		{MinVersion, ""},
		{ThrusterPropertiesVersion, "$engine"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.version.String(), func(t *testing.T) {
			m := &Model{Version: tt.version, Thrusters: thrusters}
			data, err := Encode(m)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Parse(data, nil)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(got.Thrusters) != 1 || len(got.Thrusters[0].Glows) != 1 {
				t.Fatalf("thrusters = %+v", got.Thrusters)
			}
			if got.Thrusters[0].Properties != tt.want {
				t.Errorf("properties = %q, want %q", got.Thrusters[0].Properties, tt.want)
			}
		})
	}
}

func TestDuplicateChunkWarns(t *testing.T) {
	w := chunk.NewWriter()
	w.Write([]byte(Signature))
	w.Int32(int32(CurrentVersion))
	for _, names := range [][]string{{"a"}, {"b"}} {
		names := names
		if err := w.WriteChunk(chunk.TagTextures, func(w *chunk.Writer) { writeTextures(w, names) }); err != nil {
			t.Fatal(err)
		}
	}

	log, logs := observed()
	m, err := Parse(w.Bytes(), log)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !reflect.DeepEqual(m.Textures, []string{"b"}) {
		t.Errorf("textures = %v, want [b]", m.Textures)
	}
	if n := logs.FilterMessage("duplicate chunk, keeping the last one").Len(); n != 1 {
		t.Errorf("duplicate warnings = %d, want 1", n)
	}
}

func TestResolveGeometry(t *testing.T) {
	m := fullModel(t)
	m.SubObjects[1].Shape = RawShape([]byte{1, 0, 0, 0, 2, 0, 0, 0}) // block size below the frame

	log, logs := observed()
	resolved := m.ResolveGeometry(log)

	g, ok := resolved.SubObjects[0].Shape.Parsed()
	if !ok || len(g.Vertices) != 3 || len(g.Polygons) != 1 {
		t.Fatalf("subobject 0 geometry = %+v, %v", g, ok)
	}
	bad, ok := resolved.SubObjects[1].Shape.Parsed()
	if !ok || !bad.Empty() {
		t.Errorf("broken subobject geometry = %+v, %v; want empty", bad, ok)
	}
	if n := logs.FilterMessage("dropping subobject geometry").Len(); n != 1 {
		t.Errorf("drop warnings = %d, want 1", n)
	}

	if _, ok := m.SubObjects[0].Shape.Parsed(); ok {
		t.Error("ResolveGeometry modified the source model")
	}
	if resolved.TotalPolygons() != 1 {
		t.Errorf("TotalPolygons = %d, want 1", resolved.TotalPolygons())
	}
	if m.TotalPolygons() != 0 {
		t.Errorf("TotalPolygons on raw model = %d, want 0", m.TotalPolygons())
	}

	again, err := resolved.SubObjects[0].Shape.Decode(nil)
	if err != nil || again.geom != g {
		t.Error("decoding a parsed shape should return it unchanged")
	}
}

func TestShapeFromGeometry(t *testing.T) {
	s, err := ShapeFromGeometry(triangleGeometry())
	if err != nil {
		t.Fatalf("ShapeFromGeometry failed: %v", err)
	}
	if len(s.Raw()) == 0 {
		t.Error("no raw bytes")
	}
	decoded, err := RawShape(s.Raw()).Decode(nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	g, _ := decoded.Parsed()
	if len(g.Polygons) != 1 {
		t.Errorf("polygons = %d, want 1", len(g.Polygons))
	}
}

func TestHierarchy(t *testing.T) {
	m := &Model{SubObjects: []SubObject{
		{ID: 0, Parent: NoParent, Name: "hull"},
		{ID: 1, Parent: 0, Name: "turret"},
		{ID: 2, Parent: 1, Name: "barrel"},
		{ID: 3, Parent: 9, Name: "orphan"},
		{ID: 4, Parent: 5, Name: "loop-a"},
		{ID: 5, Parent: 4, Name: "loop-b"},
	}}

	if got := len(m.Roots()); got != 1 {
		t.Errorf("roots = %d, want 1", got)
	}
	if kids := m.Children(0); len(kids) != 1 || kids[0].Name != "turret" {
		t.Errorf("children of 0 = %+v", kids)
	}
	if so := m.SubObjectByName("barrel"); so == nil || so.ID != 2 {
		t.Errorf("SubObjectByName(barrel) = %+v", so)
	}
	if so := m.SubObjectByID(7); so != nil {
		t.Errorf("SubObjectByID(7) = %+v, want nil", so)
	}

	detached := m.DetachedIDs()
	want := map[int]bool{3: true, 4: true, 5: true}
	if !reflect.DeepEqual(detached, want) {
		t.Errorf("detached = %v, want %v", detached, want)
	}
}

func TestParseWarnsOnHierarchy(t *testing.T) {
	m := &Model{
		Version: CurrentVersion,
		Header:  HeaderStats{SubObjectCount: 1},
		SubObjects: []SubObject{
			{ID: 0, Parent: 3, Shape: triangleShape(t)},
		},
	}
	data, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	log, logs := observed()
	if _, err := Parse(data, log); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if n := logs.FilterMessage("subobject hierarchy").Len(); n != 1 {
		t.Errorf("hierarchy warnings = %d, want 1", n)
	}
}

func TestVersion(t *testing.T) {
	if got := Version(2117).String(); got != "21.17" {
		t.Errorf("String = %q", got)
	}
	if !Version(2117).AtLeast(MinVersion) || Version(2000).AtLeast(MinVersion) {
		t.Error("AtLeast wrong")
	}
	if MovementRotate.String() != "rotate" || AxisZ.String() != "z" {
		t.Error("enum names wrong")
	}
}

func TestScan(t *testing.T) {
	data, err := Encode(fullModel(t))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	version, chunks, err := Scan(data)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if version != CurrentVersion {
		t.Errorf("version = %v, want %v", version, CurrentVersion)
	}
	if len(chunks) == 0 || chunks[0].Offset != 8 {
		t.Fatalf("chunks = %+v", chunks)
	}
	next, headers := 8, 0
	for _, c := range chunks {
		if c.Offset != next {
			t.Errorf("chunk %s at %d, want %d", c.Tag, c.Offset, next)
		}
		next = c.Offset + chunk.HeaderSize + c.Size
		if c.Tag == chunk.TagHeader {
			headers++
		}
	}
	if next != len(data) {
		t.Errorf("chunks end at %d, file has %d bytes", next, len(data))
	}
	if headers != 1 {
		t.Errorf("header chunks = %d, want 1", headers)
	}

	_, _, err = Scan(append([]byte("PSPO\x45\x08\x00\x00TXTR\x10\x00\x00\x00"), 1, 0, 0, 0))
	if !errors.Is(err, chunk.ErrIncompleteData) {
		t.Errorf("Scan(truncated) error = %v, want ErrIncompleteData", err)
	}
}

func TestWriteFileParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ship.pof")
	src := fullModel(t)
	if err := WriteFile(path, src); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := ParseFile(path, nil)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Error("file round trip changed the model")
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "none.pof"), nil); err == nil {
		t.Error("expected an error for a missing file")
	}
}

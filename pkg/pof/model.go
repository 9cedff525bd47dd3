// Package pof decodes and encodes the chunked POF model container.
package pof

import (
	"errors"
	"fmt"

	"github.com/Faultbox/pofconv/pkg/chunk"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// POF format errors. Both signature and version problems are format errors.
var (
	ErrFormat             = errors.New("pof format error")
	ErrInvalidSignature   = fmt.Errorf("%w: invalid signature, expected 'PSPO'", ErrFormat)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrFormat)
)

// Signature is the first four bytes of every POF file.
const Signature = "PSPO"

// Version is the POF format version stored after the signature.
type Version int32

// Known versions.
const (
	MinVersion                Version = 2116 // oldest version with HDR2/OBJ2 layouts
	ThrusterPropertiesVersion Version = 2117 // FUEL banks carry a properties string
	CurrentVersion            Version = 2117
)

// AtLeast returns true if v >= min.
func (v Version) AtLeast(min Version) bool {
	return v >= min
}

// String returns the version as "major.minor", e.g. 21.17.
func (v Version) String() string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

// NoParent is the parent id of root subobjects.
const NoParent = -1

// Model is a decoded POF file. It is not modified after Parse returns;
// operations that add information return a new Model.
type Model struct {
	Version        Version
	Header         HeaderStats
	Textures       []string // index-addressed by polygon texture numbers
	SubObjects     []SubObject
	EyePoints      []EyePoint
	SpecialPoints  []SpecialPoint
	GunBanks       []WeaponBank
	MissileBanks   []WeaponBank
	GunTurrets     []Turret
	MissileTurrets []Turret
	DockingPoints  []DockingPoint
	Thrusters      []Thruster
	Shield         ShieldMesh
	Insignia       []Insignia
	Paths          []Path
	GlowBanks      []GlowBank
	ShieldTree     []byte   // opaque shield collision tree
	AutoCenter     *pm.Vec3 // nil when the file has no ACEN chunk
	ProductionInfo []string
	Unknown        []RawChunk // chunks kept verbatim for round trips
}

// RawChunk is a chunk that is preserved but not interpreted.
type RawChunk struct {
	Tag  chunk.Tag
	Data []byte
}

// OrientedPoint is a position with a direction, used by weapon and dock points.
type OrientedPoint struct {
	Position pm.Vec3
	Normal   pm.Vec3
}

// SubObjectByID returns the subobject with the given id, or nil.
func (m *Model) SubObjectByID(id int) *SubObject {
	for i := range m.SubObjects {
		if m.SubObjects[i].ID == id {
			return &m.SubObjects[i]
		}
	}
	return nil
}

// SubObjectByName returns the first subobject with the given name, or nil.
func (m *Model) SubObjectByName(name string) *SubObject {
	for i := range m.SubObjects {
		if m.SubObjects[i].Name == name {
			return &m.SubObjects[i]
		}
	}
	return nil
}

// Children returns the subobjects whose parent is id.
func (m *Model) Children(id int) []*SubObject {
	var out []*SubObject
	for i := range m.SubObjects {
		if m.SubObjects[i].Parent == id && m.SubObjects[i].ID != id {
			out = append(out, &m.SubObjects[i])
		}
	}
	return out
}

// Roots returns the subobjects without a parent.
func (m *Model) Roots() []*SubObject {
	return m.Children(NoParent)
}

// TotalPolygons returns the polygon count across all parsed subobjects.
func (m *Model) TotalPolygons() int {
	total := 0
	for i := range m.SubObjects {
		if g, ok := m.SubObjects[i].Shape.Parsed(); ok {
			total += len(g.Polygons)
		}
	}
	return total
}

// TextureName returns the texture-table entry for index i.
func (m *Model) TextureName(i int) (string, bool) {
	if i < 0 || i >= len(m.Textures) {
		return "", false
	}
	return m.Textures[i], true
}

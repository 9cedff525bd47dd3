package pof

import (
	"fmt"
	"os"

	"github.com/Faultbox/pofconv/pkg/chunk"
)

// Encode writes m as a POF file. Chunks are written in a fixed order:
// header, textures, subobjects, then the auxiliary chunks, then any
// unknown chunks kept from decoding. Empty collections are omitted.
func Encode(m *Model) ([]byte, error) {
	w := chunk.NewWriter()
	w.Write([]byte(Signature))
	w.Int32(int32(m.Version))

	e := &encoder{w: w}
	e.chunk(chunk.TagHeader, true, func() { writeHeader(w, &m.Header, m.Version) })
	e.chunk(chunk.TagTextures, len(m.Textures) > 0, func() { writeTextures(w, m.Textures) })
	for i := range m.SubObjects {
		so := &m.SubObjects[i]
		e.chunk(chunk.TagSubObject, true, func() { writeSubObject(w, so, m.Version) })
	}
	e.chunk(chunk.TagSpecialPoints, len(m.SpecialPoints) > 0, func() { writeSpecialPoints(w, m.SpecialPoints) })
	e.chunk(chunk.TagGunPoints, len(m.GunBanks) > 0, func() { writeWeaponBanks(w, m.GunBanks) })
	e.chunk(chunk.TagMissilePoints, len(m.MissileBanks) > 0, func() { writeWeaponBanks(w, m.MissileBanks) })
	e.chunk(chunk.TagGunTurrets, len(m.GunTurrets) > 0, func() { writeTurrets(w, m.GunTurrets) })
	e.chunk(chunk.TagMissileTurrets, len(m.MissileTurrets) > 0, func() { writeTurrets(w, m.MissileTurrets) })
	e.chunk(chunk.TagDocking, len(m.DockingPoints) > 0, func() { writeDockingPoints(w, m.DockingPoints) })
	e.chunk(chunk.TagThrusters, len(m.Thrusters) > 0, func() { writeThrusters(w, m.Thrusters, m.Version) })
	e.chunk(chunk.TagShield, !m.Shield.Empty(), func() { writeShield(w, &m.Shield) })
	e.chunk(chunk.TagEyePoints, len(m.EyePoints) > 0, func() { writeEyePoints(w, m.EyePoints) })
	e.chunk(chunk.TagAutoCenter, m.AutoCenter != nil, func() { w.Vec3(*m.AutoCenter) })
	e.chunk(chunk.TagInsignia, len(m.Insignia) > 0, func() { writeInsignia(w, m.Insignia) })
	e.chunk(chunk.TagPaths, len(m.Paths) > 0, func() { writePaths(w, m.Paths) })
	e.chunk(chunk.TagGlowBanks, len(m.GlowBanks) > 0, func() { writeGlowBanks(w, m.GlowBanks) })
	e.chunk(chunk.TagShieldTree, len(m.ShieldTree) > 0, func() { writeShieldTree(w, m.ShieldTree) })
	e.chunk(chunk.TagProductionInfo, len(m.ProductionInfo) > 0, func() { writeProductionInfo(w, m.ProductionInfo) })
	for _, raw := range m.Unknown {
		raw := raw
		e.chunk(raw.Tag, true, func() { w.Write(raw.Data) })
	}

	if e.err != nil {
		return nil, e.err
	}
	return w.Bytes(), nil
}

// encoder frames chunks and keeps the first framing error.
type encoder struct {
	w   *chunk.Writer
	err error
}

func (e *encoder) chunk(tag chunk.Tag, present bool, body func()) {
	if e.err != nil || !present {
		return
	}
	mark := e.w.Begin(tag)
	body()
	if err := e.w.End(mark); err != nil {
		e.err = fmt.Errorf("writing %s chunk: %w", tag, err)
	}
}

// WriteFile encodes m and writes it to path.
func WriteFile(path string, m *Model) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

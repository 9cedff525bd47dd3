package pof

import (
	"github.com/Faultbox/pofconv/pkg/chunk"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// EyePoint is a camera position attached to a subobject.
type EyePoint struct {
	Parent int
	Offset pm.Vec3
	Normal pm.Vec3
}

// SpecialPoint is a named point of interest, such as a subsystem location.
type SpecialPoint struct {
	Name       string
	Properties string
	Position   pm.Vec3
	Radius     float32
}

// WeaponBank is one gun or missile bank.
type WeaponBank struct {
	Points []OrientedPoint
}

// Turret binds fire points to a turret subobject.
type Turret struct {
	Parent        int
	PhysicsParent int
	Normal        pm.Vec3
	FirePoints    []pm.Vec3
}

// DockingPoint is a docking bay with its approach paths.
type DockingPoint struct {
	Properties string
	Paths      []int
	Points     []OrientedPoint
}

// GlowPoint is a sprite position used by thrusters and glow banks.
type GlowPoint struct {
	Position pm.Vec3
	Normal   pm.Vec3
	Radius   float32
}

// Thruster is one engine glow bank.
type Thruster struct {
	Properties string // only stored for ThrusterPropertiesVersion and later
	Glows      []GlowPoint
}

// GlowBank is a blinking light group.
type GlowBank struct {
	DisplayTime int32
	OnTime      int32
	OffTime     int32
	Parent      int
	LOD         int
	Type        int32
	Properties  string
	Points      []GlowPoint
}

// Path is a named flight path, e.g. a docking approach.
type Path struct {
	Name   string
	Parent string
	Points []PathPoint
}

// PathPoint is one waypoint of a Path.
type PathPoint struct {
	Position pm.Vec3
	Radius   float32
	Turrets  []int
}

func readOriented(r *chunk.Reader) []OrientedPoint {
	n := r.Count(24)
	out := make([]OrientedPoint, n)
	for i := range out {
		out[i] = OrientedPoint{Position: r.Vec3(), Normal: r.Vec3()}
	}
	return out
}

func writeOriented(w *chunk.Writer, pts []OrientedPoint) {
	w.Int(len(pts))
	for _, p := range pts {
		w.Vec3(p.Position)
		w.Vec3(p.Normal)
	}
}

func readGlowPoint(r *chunk.Reader) GlowPoint {
	return GlowPoint{Position: r.Vec3(), Normal: r.Vec3(), Radius: r.Float32()}
}

func writeGlowPoint(w *chunk.Writer, p GlowPoint) {
	w.Vec3(p.Position)
	w.Vec3(p.Normal)
	w.Float32(p.Radius)
}

func readEyePoints(r *chunk.Reader, _ Version) []EyePoint {
	n := r.Count(28)
	out := make([]EyePoint, n)
	for i := range out {
		out[i] = EyePoint{Parent: int(r.Int32()), Offset: r.Vec3(), Normal: r.Vec3()}
	}
	return out
}

func writeEyePoints(w *chunk.Writer, eyes []EyePoint) {
	w.Int(len(eyes))
	for _, e := range eyes {
		w.Int(e.Parent)
		w.Vec3(e.Offset)
		w.Vec3(e.Normal)
	}
}

func readSpecialPoints(r *chunk.Reader, _ Version) []SpecialPoint {
	n := r.Count(24)
	out := make([]SpecialPoint, n)
	for i := range out {
		out[i] = SpecialPoint{
			Name:       r.String(),
			Properties: r.String(),
			Position:   r.Vec3(),
			Radius:     r.Float32(),
		}
	}
	return out
}

func writeSpecialPoints(w *chunk.Writer, pts []SpecialPoint) {
	w.Int(len(pts))
	for _, p := range pts {
		w.String(p.Name)
		w.String(p.Properties)
		w.Vec3(p.Position)
		w.Float32(p.Radius)
	}
}

func readWeaponBanks(r *chunk.Reader, _ Version) []WeaponBank {
	n := r.Count(4)
	out := make([]WeaponBank, n)
	for i := range out {
		out[i] = WeaponBank{Points: readOriented(r)}
	}
	return out
}

func writeWeaponBanks(w *chunk.Writer, banks []WeaponBank) {
	w.Int(len(banks))
	for _, b := range banks {
		writeOriented(w, b.Points)
	}
}

func readTurrets(r *chunk.Reader, _ Version) []Turret {
	n := r.Count(24)
	out := make([]Turret, n)
	for i := range out {
		t := Turret{Parent: int(r.Int32()), PhysicsParent: int(r.Int32()), Normal: r.Vec3()}
		t.FirePoints = make([]pm.Vec3, r.Count(12))
		for j := range t.FirePoints {
			t.FirePoints[j] = r.Vec3()
		}
		out[i] = t
	}
	return out
}

func writeTurrets(w *chunk.Writer, turrets []Turret) {
	w.Int(len(turrets))
	for _, t := range turrets {
		w.Int(t.Parent)
		w.Int(t.PhysicsParent)
		w.Vec3(t.Normal)
		w.Int(len(t.FirePoints))
		for _, p := range t.FirePoints {
			w.Vec3(p)
		}
	}
}

func readDockingPoints(r *chunk.Reader, _ Version) []DockingPoint {
	n := r.Count(12)
	out := make([]DockingPoint, n)
	for i := range out {
		d := DockingPoint{Properties: r.String()}
		d.Paths = readInts(r)
		d.Points = readOriented(r)
		out[i] = d
	}
	return out
}

func writeDockingPoints(w *chunk.Writer, docks []DockingPoint) {
	w.Int(len(docks))
	for _, d := range docks {
		w.String(d.Properties)
		writeInts(w, d.Paths)
		writeOriented(w, d.Points)
	}
}

func readThrusters(r *chunk.Reader, v Version) []Thruster {
	n := r.Count(4)
	out := make([]Thruster, n)
	for i := range out {
		glows := r.Count(28)
		var t Thruster
		if v.AtLeast(ThrusterPropertiesVersion) {
			t.Properties = r.String()
		}
		t.Glows = make([]GlowPoint, glows)
		for j := range t.Glows {
			t.Glows[j] = readGlowPoint(r)
		}
		out[i] = t
	}
	return out
}

func writeThrusters(w *chunk.Writer, thrusters []Thruster, v Version) {
	w.Int(len(thrusters))
	for _, t := range thrusters {
		w.Int(len(t.Glows))
		if v.AtLeast(ThrusterPropertiesVersion) {
			w.String(t.Properties)
		}
		for _, g := range t.Glows {
			writeGlowPoint(w, g)
		}
	}
}

func readGlowBanks(r *chunk.Reader, _ Version) []GlowBank {
	n := r.Count(32)
	out := make([]GlowBank, n)
	for i := range out {
		g := GlowBank{
			DisplayTime: r.Int32(),
			OnTime:      r.Int32(),
			OffTime:     r.Int32(),
			Parent:      int(r.Int32()),
			LOD:         int(r.Int32()),
			Type:        r.Int32(),
		}
		points := r.Count(28)
		g.Properties = r.String()
		g.Points = make([]GlowPoint, points)
		for j := range g.Points {
			g.Points[j] = readGlowPoint(r)
		}
		out[i] = g
	}
	return out
}

func writeGlowBanks(w *chunk.Writer, banks []GlowBank) {
	w.Int(len(banks))
	for _, g := range banks {
		w.Int32(g.DisplayTime)
		w.Int32(g.OnTime)
		w.Int32(g.OffTime)
		w.Int(g.Parent)
		w.Int(g.LOD)
		w.Int32(g.Type)
		w.Int(len(g.Points))
		w.String(g.Properties)
		for _, p := range g.Points {
			writeGlowPoint(w, p)
		}
	}
}

func readPaths(r *chunk.Reader, _ Version) []Path {
	n := r.Count(12)
	out := make([]Path, n)
	for i := range out {
		p := Path{Name: r.String(), Parent: r.String()}
		p.Points = make([]PathPoint, r.Count(20))
		for j := range p.Points {
			p.Points[j] = PathPoint{Position: r.Vec3(), Radius: r.Float32(), Turrets: readInts(r)}
		}
		out[i] = p
	}
	return out
}

func writePaths(w *chunk.Writer, paths []Path) {
	w.Int(len(paths))
	for _, p := range paths {
		w.String(p.Name)
		w.String(p.Parent)
		w.Int(len(p.Points))
		for _, pt := range p.Points {
			w.Vec3(pt.Position)
			w.Float32(pt.Radius)
			writeInts(w, pt.Turrets)
		}
	}
}

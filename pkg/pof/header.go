package pof

import (
	"github.com/Faultbox/pofconv/pkg/chunk"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// HeaderStats is the HDR2 chunk.
type HeaderStats struct {
	MaxRadius      float32
	Flags          uint32
	SubObjectCount int
	Min, Max       pm.Vec3
	DetailLevels   []int // subobject ids, highest detail first
	Debris         []int // subobject ids
	Mass           float32
	MassCenter     pm.Vec3
	Inertia        pm.Mat3
	CrossSections  []CrossSection
	Lights         []Light
}

// CrossSection is a (depth, radius) sample along the model's Z axis.
type CrossSection struct {
	Depth  float32
	Radius float32
}

// Light is a light source placed on the model.
type Light struct {
	Position pm.Vec3
	Type     int32
}

func readInts(r *chunk.Reader) []int {
	n := r.Count(4)
	out := make([]int, n)
	for i := range out {
		out[i] = int(r.Int32())
	}
	return out
}

func writeInts(w *chunk.Writer, vs []int) {
	w.Int(len(vs))
	for _, v := range vs {
		w.Int(v)
	}
}

func readHeader(r *chunk.Reader, _ Version) HeaderStats {
	var h HeaderStats
	h.MaxRadius = r.Float32()
	h.Flags = r.Uint32()
	h.SubObjectCount = int(r.Int32())
	h.Min = r.Vec3()
	h.Max = r.Vec3()
	h.DetailLevels = readInts(r)
	h.Debris = readInts(r)
	h.Mass = r.Float32()
	h.MassCenter = r.Vec3()
	for i := range h.Inertia {
		h.Inertia[i] = r.Float32()
	}

	n := r.Count(8)
	h.CrossSections = make([]CrossSection, n)
	for i := range h.CrossSections {
		h.CrossSections[i] = CrossSection{Depth: r.Float32(), Radius: r.Float32()}
	}

	n = r.Count(16)
	h.Lights = make([]Light, n)
	for i := range h.Lights {
		h.Lights[i] = Light{Position: r.Vec3(), Type: r.Int32()}
	}
	return h
}

func writeHeader(w *chunk.Writer, h *HeaderStats, _ Version) {
	w.Float32(h.MaxRadius)
	w.Uint32(h.Flags)
	w.Int(h.SubObjectCount)
	w.Vec3(h.Min)
	w.Vec3(h.Max)
	writeInts(w, h.DetailLevels)
	writeInts(w, h.Debris)
	w.Float32(h.Mass)
	w.Vec3(h.MassCenter)
	for _, v := range h.Inertia {
		w.Float32(v)
	}
	w.Int(len(h.CrossSections))
	for _, c := range h.CrossSections {
		w.Float32(c.Depth)
		w.Float32(c.Radius)
	}
	w.Int(len(h.Lights))
	for _, l := range h.Lights {
		w.Vec3(l.Position)
		w.Int32(l.Type)
	}
}

func readTextures(r *chunk.Reader, _ Version) []string {
	n := r.Count(4)
	out := make([]string, n)
	for i := range out {
		out[i] = r.String()
	}
	return out
}

func writeTextures(w *chunk.Writer, names []string) {
	w.Int(len(names))
	for _, s := range names {
		w.String(s)
	}
}

// Package export converts a decoded model into a binary glTF scene and
// a YAML metadata sidecar.
package export

import (
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// The source space is right-handed with +Z forward; the target has +Z
// backward. Converting negates Z and is its own inverse.

// Point converts a position or direction into the target space.
func Point(v pm.Vec3) pm.Vec3 {
	return pm.Vec3{X: v.X, Y: v.Y, Z: -v.Z}
}

// Mirror is the axis change as a matrix.
var Mirror = pm.Mat3Scale(pm.V3(1, 1, -1))

// Inertia converts an inertia tensor: I' = S·I·S.
func Inertia(m pm.Mat3) pm.Mat3 {
	return Mirror.Mul(m).Mul(Mirror)
}

// Box converts a bounding box, keeping Min <= Max.
func Box(min, max pm.Vec3) (pm.Vec3, pm.Vec3) {
	a, b := Point(min), Point(max)
	return a.Min(b), a.Max(b)
}

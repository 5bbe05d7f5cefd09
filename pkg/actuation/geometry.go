package actuation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var up = mgl64.Vec3{0, 1, 0}

// lookRotation returns the yaw-only rotation whose +Z axis points along the
// horizontal part of forward.
func lookRotation(forward mgl64.Vec3) mgl64.Quat {
	if forward.X() == 0 && forward.Z() == 0 {
		return mgl64.QuatIdent()
	}
	yaw := math.Atan2(forward.X(), forward.Z())
	return mgl64.QuatRotate(yaw, up)
}

// angleDeg returns the angle in degrees between two orientations, in the
// range [0, 180].
func angleDeg(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Normalize().Dot(b.Normalize()))
	if d > 1 {
		d = 1
	}
	return mgl64.RadToDeg(2 * math.Acos(d))
}

// slerp interpolates along the shorter arc.
func slerp(from, to mgl64.Quat, t float64) mgl64.Quat {
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl64.QuatSlerp(from, to, t).Normalize()
}

// yawDeg returns the heading of q's +Z axis around Y, in degrees.
func yawDeg(q mgl64.Quat) float64 {
	f := q.Rotate(mgl64.Vec3{0, 0, 1})
	return mgl64.RadToDeg(math.Atan2(f.X(), f.Z()))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerpVec3(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func lerpVec2(a, b mgl64.Vec2, t float64) mgl64.Vec2 {
	return a.Add(b.Sub(a).Mul(t))
}

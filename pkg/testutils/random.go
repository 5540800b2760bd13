package testutils

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// RandFloat returns a uniformly distributed float in [lo, hi).
func RandFloat(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// RandVec3 returns a vector whose components are each uniformly distributed in [lo, hi).
func RandVec3(r *rand.Rand, lo, hi float64) mgl64.Vec3 {
	return mgl64.Vec3{RandFloat(r, lo, hi), RandFloat(r, lo, hi), RandFloat(r, lo, hi)}
}

// RandQuat returns a random unit quaternion (rotation about a random axis).
func RandQuat(r *rand.Rand) mgl64.Quat {
	axis := RandVec3(r, -1, 1)
	if axis.Len() < 1e-6 {
		axis = mgl64.Vec3{0, 1, 0}
	}
	return mgl64.QuatRotate(RandFloat(r, 0, 2*math.Pi), axis.Normalize())
}

// RandSplit splits total into a random sequence of positive durations, none longer than maxStep,
// that sum exactly to total. Useful to feed frame deltas of uneven size.
func RandSplit(r *rand.Rand, total, maxStep time.Duration) []time.Duration {
	if maxStep <= 0 {
		panic("maxStep must be positive")
	}

	var steps []time.Duration
	for total > 0 {
		step := time.Duration(r.Int64N(int64(maxStep))) + 1
		step = min(step, total)
		steps = append(steps, step)
		total -= step
	}
	return steps
}

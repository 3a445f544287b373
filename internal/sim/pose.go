// Package sim generates device captures and tracked skeletons without
// hardware, for demos and end-to-end tests.
package sim

import (
	"math"

	"github.com/ayusman/mocaprec/internal/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// BodyID is the ID reported for the simulated performer.
const BodyID = 1

// Distance is how far in front of the camera the performer stands, in millimetres.
const Distance = 2500

// restPose holds joint offsets from the pelvis in camera space
// (x right, y down, z away from the camera), millimetres.
var restPose = [skeleton.JointCount]mgl64.Vec3{
	skeleton.Pelvis:        {0, 0, 0},
	skeleton.SpineNavel:    {0, -200, 10},
	skeleton.SpineChest:    {0, -380, 20},
	skeleton.Neck:          {0, -560, 20},
	skeleton.ClavicleLeft:  {-40, -520, 20},
	skeleton.ShoulderLeft:  {-180, -500, 20},
	skeleton.ElbowLeft:     {-200, -230, 30},
	skeleton.WristLeft:     {-210, 0, 20},
	skeleton.HandLeft:      {-215, 60, 10},
	skeleton.HandTipLeft:   {-220, 130, 0},
	skeleton.ThumbLeft:     {-180, 80, -20},
	skeleton.ClavicleRight: {40, -520, 20},
	skeleton.ShoulderRight: {180, -500, 20},
	skeleton.ElbowRight:    {200, -230, 30},
	skeleton.WristRight:    {210, 0, 20},
	skeleton.HandRight:     {215, 60, 10},
	skeleton.HandTipRight:  {220, 130, 0},
	skeleton.ThumbRight:    {180, 80, -20},
	skeleton.HipLeft:       {-90, 0, 0},
	skeleton.KneeLeft:      {-100, 430, -20},
	skeleton.AnkleLeft:     {-100, 850, 0},
	skeleton.FootLeft:      {-100, 920, -100},
	skeleton.HipRight:      {90, 0, 0},
	skeleton.KneeRight:     {100, 430, -20},
	skeleton.AnkleRight:    {100, 850, 0},
	skeleton.FootRight:     {100, 920, -100},
	skeleton.Head:          {0, -700, 10},
	skeleton.Nose:          {0, -690, -80},
	skeleton.EyeLeft:       {-30, -720, -70},
	skeleton.EarLeft:       {-70, -700, 0},
	skeleton.EyeRight:      {30, -720, -70},
	skeleton.EarRight:      {70, -700, 0},
}

// Pose returns the performer at time t seconds, seen from a camera rotated
// yaw radians about the vertical axis. The performer turns slowly while
// swaying sideways; every joint carries its own small wobble.
func Pose(t, yaw float64) *skeleton.Snapshot {
	s := skeleton.NewSnapshot(BodyID)

	turn := mgl64.QuatRotate(0.4*math.Sin(t*0.5)+yaw, mgl64.Vec3{0, 1, 0})
	sway := mgl64.Vec3{120 * math.Sin(t), 0, Distance}

	for i, offset := range restPose {
		phase := t*2 + float64(i)*0.2
		wobble := mgl64.QuatRotate(0.15*math.Sin(phase), mgl64.Vec3{1, 0, 0})
		ori := turn.Mul(wobble).Normalize()

		p := turn.Rotate(offset).Add(sway)
		s.Set(skeleton.JointID(i),
			skeleton.Vec3{X: float32(p[0]), Y: float32(p[1]), Z: float32(p[2])},
			toQuaternion(ori),
		)
	}
	return s
}

func toQuaternion(q mgl64.Quat) skeleton.Quaternion {
	return skeleton.Quaternion{
		W: float32(q.W),
		X: float32(q.V[0]),
		Y: float32(q.V[1]),
		Z: float32(q.V[2]),
	}
}

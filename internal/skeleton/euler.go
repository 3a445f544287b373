package skeleton

import "math"

// EulerAngles is the roll/pitch/yaw decomposition of an orientation, in radians.
type EulerAngles struct {
	Roll  float32 `json:"roll"`
	Pitch float32 `json:"pitch"`
	Yaw   float32 `json:"yaw"`
}

// QuaternionToEuler converts q to intrinsic Tait-Bryan angles.
//
//	roll  = atan2(2(wx+yz), 1-2(x²+y²))
//	pitch = asin(2(wy-zx)), clamped to ±π/2 once |2(wy-zx)| >= 1
//	yaw   = atan2(2(wz+xy), 1-2(y²+z²))
//
// The arithmetic runs in float64 and the result is narrowed to float32.
func QuaternionToEuler(q Quaternion) EulerAngles {
	w, x, y, z := float64(q.W), float64(q.X), float64(q.Y), float64(q.Z)

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	var pitch float64
	sinp := 2 * (w*y - z*x)
	if math.Abs(sinp) >= 1 {
		// gimbal lock
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return EulerAngles{
		Roll:  float32(roll),
		Pitch: float32(pitch),
		Yaw:   float32(yaw),
	}
}

// Euler returns the Euler decomposition of the sample's orientation.
func (s JointSample) Euler() EulerAngles {
	return QuaternionToEuler(s.Orientation)
}

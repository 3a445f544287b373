package skeleton

import (
	"math"
	"time"
)

// Vec3 is a 3-D position in device-native units (millimetres).
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quaternion is a unit rotation in (w, x, y, z) order.
type Quaternion struct {
	W float32 `json:"w"`
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Identity is the quaternion with no rotation.
var Identity = Quaternion{W: 1}

// Norm returns the Euclidean length of q.
func (q Quaternion) Norm() float64 {
	w, x, y, z := float64(q.W), float64(q.X), float64(q.Y), float64(q.Z)
	return math.Sqrt(w*w + x*x + y*y + z*z)
}

// JointSample is one joint of one body at one instant. Position and
// orientation always come from the same tracker result.
type JointSample struct {
	BodyID      uint32     `json:"body_id"`
	Joint       JointID    `json:"joint"`
	Position    Vec3       `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Snapshot is the full joint set of a single body produced by one tracked frame.
// Joints is indexed by JointID; entry i always holds joint i.
type Snapshot struct {
	BodyID      uint32                  `json:"body_id"`
	DeviceIndex int                     `json:"device"`
	Timestamp   time.Duration           `json:"timestamp"`
	Joints      [JointCount]JointSample `json:"joints"`
}

// NewSnapshot returns a Snapshot for body with every joint slot labelled with
// its index and an identity orientation.
func NewSnapshot(body uint32) *Snapshot {
	s := &Snapshot{BodyID: body}
	for i := range s.Joints {
		s.Joints[i] = JointSample{
			BodyID:      body,
			Joint:       JointID(i),
			Orientation: Identity,
		}
	}
	return s
}

// Set stores position and orientation for joint j.
func (s *Snapshot) Set(j JointID, pos Vec3, ori Quaternion) {
	if !j.Valid() {
		return
	}
	s.Joints[j] = JointSample{
		BodyID:      s.BodyID,
		Joint:       j,
		Position:    pos,
		Orientation: ori,
	}
}

// Joint returns the sample for joint j.
func (s *Snapshot) Joint(j JointID) JointSample {
	return s.Joints[j]
}

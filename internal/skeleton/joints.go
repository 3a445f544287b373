// Package skeleton provides the body joint catalog and the per-frame skeleton types
// recorded by the capture pipeline.
package skeleton

// JointID is the ordinal of a joint in the body-tracking catalog.
type JointID int

// Body joint indices following the depth-camera body tracking convention.
const (
	Pelvis JointID = iota
	SpineNavel
	SpineChest
	Neck
	ClavicleLeft
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	HandTipLeft
	ThumbLeft
	ClavicleRight
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HandTipRight
	ThumbRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	Head
	Nose
	EyeLeft
	EarLeft
	EyeRight
	EarRight

	// JointCount is the number of joints reported for every tracked body.
	JointCount = int(EarRight) + 1
)

var jointNames = [JointCount]string{
	"Pelvis", "SpineNavel", "SpineChest", "Neck",
	"ClavicleLeft", "ShoulderLeft", "ElbowLeft", "WristLeft", "HandLeft", "HandTipLeft", "ThumbLeft",
	"ClavicleRight", "ShoulderRight", "ElbowRight", "WristRight", "HandRight", "HandTipRight", "ThumbRight",
	"HipLeft", "KneeLeft", "AnkleLeft", "FootLeft",
	"HipRight", "KneeRight", "AnkleRight", "FootRight",
	"Head", "Nose", "EyeLeft", "EarLeft", "EyeRight", "EarRight",
}

// String returns the catalog name of the joint.
func (j JointID) String() string {
	if j < 0 || int(j) >= JointCount {
		return "Unknown"
	}
	return jointNames[j]
}

// Valid reports whether j is inside the catalog range.
func (j JointID) Valid() bool {
	return j >= 0 && int(j) < JointCount
}

// Bone connects a parent joint to a child joint.
type Bone struct {
	From JointID
	To   JointID
}

// Bones lists the parent/child pairs of the joint hierarchy, used for overlay drawing.
var Bones = []Bone{
	{Pelvis, SpineNavel},
	{SpineNavel, SpineChest},
	{SpineChest, Neck},
	{Neck, Head},
	{Head, Nose},
	{Nose, EyeLeft},
	{EyeLeft, EarLeft},
	{Nose, EyeRight},
	{EyeRight, EarRight},

	{SpineChest, ClavicleLeft},
	{ClavicleLeft, ShoulderLeft},
	{ShoulderLeft, ElbowLeft},
	{ElbowLeft, WristLeft},
	{WristLeft, HandLeft},
	{HandLeft, HandTipLeft},
	{WristLeft, ThumbLeft},

	{SpineChest, ClavicleRight},
	{ClavicleRight, ShoulderRight},
	{ShoulderRight, ElbowRight},
	{ElbowRight, WristRight},
	{WristRight, HandRight},
	{HandRight, HandTipRight},
	{WristRight, ThumbRight},

	{Pelvis, HipLeft},
	{HipLeft, KneeLeft},
	{KneeLeft, AnkleLeft},
	{AnkleLeft, FootLeft},

	{Pelvis, HipRight},
	{HipRight, KneeRight},
	{KneeRight, AnkleRight},
	{AnkleRight, FootRight},
}

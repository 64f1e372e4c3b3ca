// Package msg defines the wire-level message types published by the render
// pipeline: stamped transforms and visualization markers. The shapes mirror
// the downstream visualization consumer's schema, so field layout and the
// marker type/action numbering must not change.
package msg

import "time"

// Time is a wire timestamp: seconds plus nanoseconds since the epoch.
type Time struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// Duration is a wire duration: seconds plus nanoseconds.
type Duration struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// Header stamps a message with a time and the frame it is expressed in.
type Header struct {
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Vector3 is a 3-vector of float64.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Point is a 3-D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is position plus orientation.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// ColorRGBA is a color with alpha, components as float32.
type ColorRGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Transform is a rigid transform on the wire.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// TransformStamped relates a child frame to the header's frame at the
// header's stamp.
type TransformStamped struct {
	Header       Header    `json:"header"`
	ChildFrameID string    `json:"child_frame_id"`
	Transform    Transform `json:"transform"`
}

// TFMessage is a batch of stamped transforms. An empty batch is valid and
// must still be published so consumers can clear stale state.
type TFMessage struct {
	Transforms []TransformStamped `json:"transforms"`
}

// Marker shape types understood by the visualization consumer.
const (
	MarkerCube         int32 = 1
	MarkerSphere       int32 = 2
	MarkerCylinder     int32 = 3
	MarkerMeshResource int32 = 10
)

// Marker actions.
const (
	MarkerActionAdd    int32 = 0
	MarkerActionDelete int32 = 2
)

// Marker is a single visualization primitive.
type Marker struct {
	Header       Header    `json:"header"`
	NS           string    `json:"ns"`
	ID           int32     `json:"id"`
	Type         int32     `json:"type"`
	Action       int32     `json:"action"`
	Pose         Pose      `json:"pose"`
	Scale        Vector3   `json:"scale"`
	Color        ColorRGBA `json:"color"`
	Lifetime     Duration  `json:"lifetime"`
	MeshResource string    `json:"mesh_resource,omitempty"`
}

// MarkerArray is a batch of markers.
type MarkerArray struct {
	Markers []Marker `json:"markers"`
}

// IdentityPose returns the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: Quaternion{W: 1.0}}
}

// StampFromTime converts a time.Time to a wire Time.
func StampFromTime(t time.Time) Time {
	return Time{
		Sec:     int32(t.Unix()),
		Nanosec: uint32(t.Nanosecond()),
	}
}

// Package core holds the domain types shared between the state manager,
// the render pipeline, and the publish sinks.
package core

// FrameID identifies a coordinate frame by name.
type FrameID string

// Translation is a 3-vector offset, in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation is a unit quaternion relating a child frame to its parent.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Transform is a rigid transform: translation plus rotation.
type Transform struct {
	Translation Translation `json:"translation"`
	Rotation    Rotation    `json:"rotation"`
}

// TransformRecord is a single entry of the transform store. The store keys
// records by ChildFrameID, so there is exactly one record per child frame.
type TransformRecord struct {
	ParentFrameID   FrameID    `json:"parent_frame_id"`
	ChildFrameID    FrameID    `json:"child_frame_id"`
	Transform       Transform  `json:"transform"`
	ActiveTransform bool       `json:"active_transform"`
	Metadata        DynamicMap `json:"metadata"`
}

// Clone returns a deep copy of the record. Mutating the copy (including its
// metadata) never affects the original.
func (r TransformRecord) Clone() TransformRecord {
	out := r
	out.Metadata = r.Metadata.Clone()
	return out
}

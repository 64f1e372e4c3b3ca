// Package metadata projects the free-form attribute map attached to each
// transform record onto the typed descriptor the render pipeline consumes.
//
// Decoding follows a quiet-degradation policy: the projection is total and
// never fails. An attribute whose tag does not exactly match the expected
// type leaves the matching field at its default; unknown attributes are
// skipped so newer scenario schemas remain loadable.
package metadata

import "github.com/framecast/bridge/pkg/core"

// Attribute keys recognized by Decode.
const (
	keyNextFrame     = "next_frame"
	keyFrameType     = "frame_type"
	keyVisualizeMesh = "visualize_mesh"
	keyVisualizeZone = "visualize_zone"
	keyZone          = "zone"
	keyMeshType      = "mesh_type"
	keyMeshPath      = "mesh_path"
	keyMeshScale     = "mesh_scale"
	keyMeshR         = "mesh_r"
	keyMeshG         = "mesh_g"
	keyMeshB         = "mesh_b"
	keyMeshA         = "mesh_a"
)

// Visualization is the decoded projection of a frame's metadata. It is
// rebuilt from scratch every render tick and never cached.
type Visualization struct {
	// NextFrame lists reachable successor frames. nil means the attribute
	// was absent or unusable; it is never a non-nil empty slice.
	NextFrame []string

	// FrameType is a free-form frame classification, nil when absent.
	FrameType *string

	VisualizeMesh bool
	VisualizeZone bool

	// Zone is the zone sphere diameter. 0.0 disables the zone marker and is
	// not a valid radius.
	Zone float64

	// MeshType is the marker shape; defaults to the external mesh resource
	// shape.
	MeshType int32

	// MeshPath is the mesh resource path relative to the configured asset
	// directory, nil when absent.
	MeshPath *string

	// MeshScale is the uniform mesh scale factor. The 0.0 sentinel means
	// "render at scale 1.0".
	MeshScale float32

	// Mesh color components, defaulting to opaque white.
	MeshR float32
	MeshG float32
	MeshB float32
	MeshA float32
}

// Default returns a Visualization with every field at its default.
func Default() Visualization {
	return Visualization{
		MeshType:  10,
		MeshScale: 0.001,
		MeshR:     1.0,
		MeshG:     1.0,
		MeshB:     1.0,
		MeshA:     1.0,
	}
}

// Decode projects an attribute map onto a Visualization. The zero (empty)
// map yields Default().
func Decode(m core.DynamicMap) Visualization {
	out := Default()

	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		switch key {
		case keyNextFrame:
			arr, ok := v.AsArray()
			if !ok {
				continue
			}
			frames := make([]string, 0, len(arr))
			seen := make(map[string]struct{}, len(arr))
			for _, item := range arr {
				s, ok := item.AsString()
				if !ok {
					// Non-string elements are dropped individually.
					continue
				}
				if _, dup := seen[s]; dup {
					continue
				}
				seen[s] = struct{}{}
				frames = append(frames, s)
			}
			if len(frames) > 0 {
				out.NextFrame = frames
			}
		case keyFrameType:
			if s, ok := v.AsString(); ok {
				out.FrameType = &s
			}
		case keyVisualizeMesh:
			if b, ok := v.AsBool(); ok {
				out.VisualizeMesh = b
			}
		case keyVisualizeZone:
			if b, ok := v.AsBool(); ok {
				out.VisualizeZone = b
			}
		case keyZone:
			if f, ok := v.AsFloat(); ok {
				out.Zone = f
			}
		case keyMeshType:
			if i, ok := v.AsInt(); ok {
				out.MeshType = int32(i)
			}
		case keyMeshPath:
			if s, ok := v.AsString(); ok {
				out.MeshPath = &s
			}
		case keyMeshScale:
			if f, ok := v.AsFloat(); ok {
				out.MeshScale = float32(f)
			}
		case keyMeshR:
			if f, ok := v.AsFloat(); ok {
				out.MeshR = float32(f)
			}
		case keyMeshG:
			if f, ok := v.AsFloat(); ok {
				out.MeshG = float32(f)
			}
		case keyMeshB:
			if f, ok := v.AsFloat(); ok {
				out.MeshB = float32(f)
			}
		case keyMeshA:
			if f, ok := v.AsFloat(); ok {
				out.MeshA = float32(f)
			}
		}
	}

	return out
}

// MeshEligible reports whether a mesh marker may be emitted for this frame.
// Both the flag and a mesh path are required.
func (v Visualization) MeshEligible() bool {
	return v.VisualizeMesh && v.MeshPath != nil
}

// ZoneEligible reports whether a zone marker may be emitted for this frame.
// Both the flag and a non-zero zone size are required.
func (v Visualization) ZoneEligible() bool {
	return v.VisualizeZone && v.Zone != 0.0
}

// EffectiveMeshScale resolves the 0.0 scale sentinel to 1.0.
func (v Visualization) EffectiveMeshScale() float64 {
	if v.MeshScale != 0.0 {
		return float64(v.MeshScale)
	}
	return 1.0
}

package recorder

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Stream labels for recorded rows.
const (
	StreamActive = "active"
	StreamStatic = "static"
	StreamZone   = "zone"
	StreamMesh   = "mesh"
)

// DatabaseModels lists the structs migrated into the recording schema.
var DatabaseModels = []interface{}{
	&TransformRow{},
	&MarkerRow{},
}

// TransformRow is one recorded transform entry.
type TransformRow struct {
	gorm.Model
	Stream        string    `json:"stream" gorm:"size:16;index"`
	Stamp         time.Time `json:"stamp" gorm:"index"`
	ParentFrameID string    `json:"parentFrameId" gorm:"size:127"`
	ChildFrameID  string    `json:"childFrameId" gorm:"size:127;index"`
	TranslationX  float64   `json:"translationX"`
	TranslationY  float64   `json:"translationY"`
	TranslationZ  float64   `json:"translationZ"`
	RotationX     float64   `json:"rotationX"`
	RotationY     float64   `json:"rotationY"`
	RotationZ     float64   `json:"rotationZ"`
	RotationW     float64   `json:"rotationW"`
}

// MarkerRow is one recorded marker entry. Scale and color keep their wire
// shape as JSON columns.
type MarkerRow struct {
	gorm.Model
	Stream       string         `json:"stream" gorm:"size:16;index"`
	FrameID      string         `json:"frameId" gorm:"size:127;index"`
	MarkerID     int32          `json:"markerId"`
	Shape        int32          `json:"shape"`
	Scale        datatypes.JSON `json:"scale"`
	Color        datatypes.JSON `json:"color"`
	MeshResource string         `json:"meshResource" gorm:"size:255"`
}

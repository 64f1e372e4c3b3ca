package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecast/bridge/internal/publish"
	"github.com/framecast/bridge/pkg/msg"
)

// Compile-time interface check.
var _ publish.Sink = (*Sink)(nil)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s := New(Config{
		Type:          "sqlite",
		Path:          filepath.Join(t.TempDir(), "recording.db"),
		FlushInterval: time.Hour, // flush manually in tests
	}, nil)
	require.NoError(t, s.Init())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitRejectsUnknownType(t *testing.T) {
	s := New(Config{Type: "oracle"}, nil)
	require.Error(t, s.Init())
}

func TestTransformsRecorded(t *testing.T) {
	s := newTestSink(t)

	batch := &msg.TFMessage{Transforms: []msg.TransformStamped{
		{
			Header:       msg.Header{Stamp: msg.Time{Sec: 100}, FrameID: "map"},
			ChildFrameID: "amr",
			Transform: msg.Transform{
				Translation: msg.Vector3{X: 1, Y: 2, Z: 3},
				Rotation:    msg.Quaternion{W: 1},
			},
		},
		{
			Header:       msg.Header{Stamp: msg.Time{Sec: 100}, FrameID: "amr"},
			ChildFrameID: "lidar",
		},
	}}
	require.NoError(t, s.PublishActiveTransforms(batch))
	require.NoError(t, s.PublishStaticTransforms(&msg.TFMessage{Transforms: []msg.TransformStamped{
		{Header: msg.Header{FrameID: "map"}, ChildFrameID: "dock"},
	}}))

	pendingT, pendingM := s.QueueLengths()
	assert.Equal(t, 3, pendingT)
	assert.Equal(t, 0, pendingM)

	s.flush()

	pendingT, _ = s.QueueLengths()
	assert.Equal(t, 0, pendingT)
	assert.Greater(t, s.LastFlushDuration(), time.Duration(0))

	var rows []TransformRow
	require.NoError(t, s.db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, StreamActive, rows[0].Stream)
	assert.Equal(t, "map", rows[0].ParentFrameID)
	assert.Equal(t, "amr", rows[0].ChildFrameID)
	assert.Equal(t, 1.0, rows[0].TranslationX)
	assert.Equal(t, 1.0, rows[0].RotationW)
	assert.Equal(t, StreamStatic, rows[2].Stream)
	assert.Equal(t, "dock", rows[2].ChildFrameID)
}

func TestMarkersRecorded(t *testing.T) {
	s := newTestSink(t)

	require.NoError(t, s.PublishMeshMarkers(&msg.MarkerArray{Markers: []msg.Marker{
		{
			Header:       msg.Header{FrameID: "amr"},
			ID:           1,
			Type:         msg.MarkerMeshResource,
			Scale:        msg.Vector3{X: 0.01, Y: 0.01, Z: 0.01},
			Color:        msg.ColorRGBA{R: 1, G: 1, B: 1, A: 1},
			MeshResource: "file:///opt/meshes/amr.dae",
		},
	}}))
	require.NoError(t, s.PublishZoneMarkers(&msg.MarkerArray{Markers: []msg.Marker{
		{Header: msg.Header{FrameID: "dock"}, ID: 2, Type: msg.MarkerSphere},
	}}))

	s.flush()

	var rows []MarkerRow
	require.NoError(t, s.db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, StreamMesh, rows[0].Stream)
	assert.Equal(t, int32(1), rows[0].MarkerID)
	assert.Equal(t, msg.MarkerMeshResource, rows[0].Shape)
	assert.Equal(t, "file:///opt/meshes/amr.dae", rows[0].MeshResource)
	assert.JSONEq(t, `{"x":0.01,"y":0.01,"z":0.01}`, string(rows[0].Scale))
	assert.JSONEq(t, `{"r":1,"g":1,"b":1,"a":1}`, string(rows[0].Color))

	assert.Equal(t, StreamZone, rows[1].Stream)
	assert.Equal(t, msg.MarkerSphere, rows[1].Shape)
}

func TestEmptyBatchesBufferNothing(t *testing.T) {
	s := newTestSink(t)

	require.NoError(t, s.PublishActiveTransforms(&msg.TFMessage{Transforms: []msg.TransformStamped{}}))
	require.NoError(t, s.PublishZoneMarkers(&msg.MarkerArray{Markers: []msg.Marker{}}))

	pendingT, pendingM := s.QueueLengths()
	assert.Equal(t, 0, pendingT)
	assert.Equal(t, 0, pendingM)
}

func TestCloseFlushesPendingRows(t *testing.T) {
	s := New(Config{
		Type:          "sqlite",
		Path:          filepath.Join(t.TempDir(), "recording.db"),
		FlushInterval: time.Hour,
	}, nil)
	require.NoError(t, s.Init())

	require.NoError(t, s.PublishActiveTransforms(&msg.TFMessage{Transforms: []msg.TransformStamped{
		{Header: msg.Header{FrameID: "map"}, ChildFrameID: "amr"},
	}}))

	require.NoError(t, s.Close())

	pendingT, _ := s.QueueLengths()
	assert.Equal(t, 0, pendingT, "close writes buffered rows before shutting down")
}

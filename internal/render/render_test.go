package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecast/bridge/internal/publish"
	"github.com/framecast/bridge/internal/state"
	"github.com/framecast/bridge/pkg/core"
	"github.com/framecast/bridge/pkg/msg"
)

// fakeSource serves a fixed snapshot and optional ping/snapshot errors.
type fakeSource struct {
	snap    map[core.FrameID]core.TransformRecord
	snapErr error
	pingErr error
	pings   int
}

func (f *fakeSource) GetAllTransforms() (map[core.FrameID]core.TransformRecord, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	out := make(map[core.FrameID]core.TransformRecord, len(f.snap))
	for id, rec := range f.snap {
		out[id] = rec.Clone()
	}
	return out, nil
}

func (f *fakeSource) Ping(ctx context.Context) error {
	f.pings++
	return f.pingErr
}

func meshRecord(child, parent core.FrameID, path string) core.TransformRecord {
	rec := core.TransformRecord{ParentFrameID: parent, ChildFrameID: child, ActiveTransform: true}
	rec.Metadata.Set("visualize_mesh", core.BoolValue(true))
	rec.Metadata.Set("mesh_path", core.StringValue(path))
	return rec
}

func zoneRecord(child, parent core.FrameID, zone float64) core.TransformRecord {
	rec := core.TransformRecord{ParentFrameID: parent, ChildFrameID: child}
	rec.Metadata.Set("visualize_zone", core.BoolValue(true))
	rec.Metadata.Set("zone", core.FloatValue(zone))
	return rec
}

func newTestPipeline(t *testing.T, source SnapshotSource, sink publish.Sink, at time.Time) *Pipeline {
	t.Helper()
	p, err := New(Config{MeshBaseDir: "/opt/meshes"}, source, sink, nil,
		WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	return p
}

func TestTickPartitionsActiveAndStatic(t *testing.T) {
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{
		"amr":  {ParentFrameID: "map", ChildFrameID: "amr", ActiveTransform: true},
		"dock": {ParentFrameID: "map", ChildFrameID: "dock"},
		"cart": {ParentFrameID: "amr", ChildFrameID: "cart", ActiveTransform: true},
	}}
	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(100, 0))

	require.NoError(t, p.Tick(context.Background()))

	active := sink.LastActiveTransforms()
	statics := sink.LastStaticTransforms()
	require.NotNil(t, active)
	require.NotNil(t, statics)
	assert.Len(t, active.Transforms, 2)
	assert.Len(t, statics.Transforms, 1)
	assert.Equal(t, "dock", statics.Transforms[0].ChildFrameID)
}

func TestTickSharesOneStampAcrossAllStreams(t *testing.T) {
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{
		"a": {ParentFrameID: "map", ChildFrameID: "a", ActiveTransform: true},
		"b": {ParentFrameID: "map", ChildFrameID: "b"},
		"c": {ParentFrameID: "map", ChildFrameID: "c", ActiveTransform: true},
	}}
	sink := publish.NewMemory()
	at := time.Unix(1700000000, 250000000)
	p := newTestPipeline(t, source, sink, at)

	require.NoError(t, p.Tick(context.Background()))

	want := msg.StampFromTime(at)
	for _, ts := range sink.LastActiveTransforms().Transforms {
		assert.Equal(t, want, ts.Header.Stamp)
	}
	for _, ts := range sink.LastStaticTransforms().Transforms {
		assert.Equal(t, want, ts.Header.Stamp)
	}
}

func TestTickMarkerIDsContiguousFromOne(t *testing.T) {
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{}}
	// Three markers total from two frames: one mesh-only, one mesh+zone.
	source.snap["a"] = meshRecord("a", "map", "a.stl")

	both := meshRecord("b", "map", "b.stl")
	both.Metadata.Set("visualize_zone", core.BoolValue(true))
	both.Metadata.Set("zone", core.FloatValue(2.0))
	source.snap["b"] = both

	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))
	require.NoError(t, p.Tick(context.Background()))

	var ids []int32
	for _, m := range sink.LastMeshMarkers().Markers {
		ids = append(ids, m.ID)
	}
	for _, m := range sink.LastZoneMarkers().Markers {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []int32{1, 2, 3}, ids)
}

func TestTickMeshMarkerFields(t *testing.T) {
	rec := meshRecord("amr", "map", "robots/amr.dae")
	rec.Metadata.Set("mesh_scale", core.FloatValue(0.01))
	rec.Metadata.Set("mesh_r", core.FloatValue(0.5))
	rec.Metadata.Set("mesh_a", core.FloatValue(0.9))
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{"amr": rec}}

	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))
	require.NoError(t, p.Tick(context.Background()))

	meshes := sink.LastMeshMarkers()
	require.Len(t, meshes.Markers, 1)
	m := meshes.Markers[0]

	assert.Equal(t, "amr", m.Header.FrameID)
	assert.Equal(t, int32(1), m.ID)
	assert.Equal(t, msg.MarkerMeshResource, m.Type)
	assert.Equal(t, msg.MarkerActionAdd, m.Action)
	assert.Equal(t, "file:///opt/meshes/robots/amr.dae", m.MeshResource)
	assert.Equal(t, msg.IdentityPose(), m.Pose)
	assert.InDelta(t, 0.01, m.Scale.X, 1e-9)
	assert.Equal(t, m.Scale.X, m.Scale.Y)
	assert.Equal(t, m.Scale.X, m.Scale.Z)
	assert.Equal(t, float32(0.5), m.Color.R)
	assert.Equal(t, float32(0.9), m.Color.A)
	assert.Equal(t, msg.Duration{Sec: 2}, m.Lifetime)
	assert.Empty(t, sink.LastZoneMarkers().Markers)
}

func TestTickMeshMarkerPrimitiveShapeHasNoResource(t *testing.T) {
	rec := meshRecord("box", "map", "unused.stl")
	rec.Metadata.Set("mesh_type", core.IntValue(int64(msg.MarkerCube)))
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{"box": rec}}

	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))
	require.NoError(t, p.Tick(context.Background()))

	meshes := sink.LastMeshMarkers()
	require.Len(t, meshes.Markers, 1)
	assert.Equal(t, msg.MarkerCube, meshes.Markers[0].Type)
	assert.Empty(t, meshes.Markers[0].MeshResource)
}

func TestTickZoneMarkerFields(t *testing.T) {
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{
		"dock": zoneRecord("dock", "map", 4.0),
	}}
	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))
	require.NoError(t, p.Tick(context.Background()))

	zones := sink.LastZoneMarkers()
	require.Len(t, zones.Markers, 1)
	z := zones.Markers[0]

	assert.Equal(t, "dock", z.Header.FrameID)
	assert.Equal(t, msg.MarkerSphere, z.Type)
	assert.Equal(t, msg.Vector3{X: 4.0, Y: 4.0, Z: 4.0}, z.Scale)
	assert.Equal(t, zoneColor, z.Color)
	assert.Equal(t, msg.IdentityPose(), z.Pose)
	assert.Empty(t, sink.LastMeshMarkers().Markers)
}

func TestTickEmptyStorePublishesEmptyBatches(t *testing.T) {
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{}}
	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))

	require.NoError(t, p.Tick(context.Background()))

	require.NotNil(t, sink.LastActiveTransforms())
	assert.NotNil(t, sink.LastActiveTransforms().Transforms)
	assert.Empty(t, sink.LastActiveTransforms().Transforms)
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeActiveTransforms))
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeStaticTransforms))
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeZoneMarkers))
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeMeshMarkers))
}

func TestTickSkipsWhenPingFails(t *testing.T) {
	source := &fakeSource{
		snap:    map[core.FrameID]core.TransformRecord{"a": {ParentFrameID: "map", ChildFrameID: "a"}},
		pingErr: errors.New("store unreachable"),
	}
	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))

	require.NoError(t, p.Tick(context.Background()))
	assert.Equal(t, uint64(0), sink.PublishCount(msg.TypeActiveTransforms))
	assert.Equal(t, uint64(1), p.Stats().SkippedTicks)
	assert.Equal(t, 1, source.pings)

	// Recovery: the next tick publishes normally.
	source.pingErr = nil
	require.NoError(t, p.Tick(context.Background()))
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeActiveTransforms))
	assert.Equal(t, uint64(1), p.Stats().Ticks)
}

func TestTickSkipsOnTransientSnapshotError(t *testing.T) {
	source := &fakeSource{snapErr: errors.New("timeout")}
	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))

	require.NoError(t, p.Tick(context.Background()))
	assert.Equal(t, uint64(0), sink.PublishCount(msg.TypeActiveTransforms))
	assert.Equal(t, uint64(1), p.Stats().SkippedTicks)
}

func TestTickFatalWhenStoreClosed(t *testing.T) {
	source := &fakeSource{snapErr: state.ErrClosed}
	sink := publish.NewMemory()
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))

	err := p.Tick(context.Background())
	assert.ErrorIs(t, err, state.ErrClosed)
}

func TestTickPublishFailureDoesNotBlockOtherStreams(t *testing.T) {
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{
		"a": {ParentFrameID: "map", ChildFrameID: "a", ActiveTransform: true},
	}}
	sink := &failingSink{Memory: publish.NewMemory()}
	p := newTestPipeline(t, source, sink, time.Unix(0, 0))

	require.NoError(t, p.Tick(context.Background()), "a stream publish failure is not fatal")
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeStaticTransforms))
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeZoneMarkers))
	assert.Equal(t, uint64(1), sink.PublishCount(msg.TypeMeshMarkers))
}

// failingSink fails the active stream and delegates the rest.
type failingSink struct {
	*publish.Memory
}

func (f *failingSink) PublishActiveTransforms(batch *msg.TFMessage) error {
	return errors.New("active stream down")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	source := &fakeSource{snap: map[core.FrameID]core.TransformRecord{}}
	sink := publish.NewMemory()
	p, err := New(Config{TickInterval: time.Millisecond}, source, sink, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Let a few ticks happen, then stop.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	assert.Greater(t, sink.PublishCount(msg.TypeActiveTransforms), uint64(0))
}

func TestRunFatalOnClosedStore(t *testing.T) {
	source := &fakeSource{snapErr: state.ErrClosed}
	sink := publish.NewMemory()
	p, err := New(Config{TickInterval: time.Millisecond}, source, sink, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, state.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Run did not terminate on closed store")
	}
}

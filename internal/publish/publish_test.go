package publish

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecast/bridge/pkg/msg"
)

var (
	_ Sink = (*Memory)(nil)
	_ Sink = (*Multi)(nil)
)

func TestMemoryRetainsLastBatchPerStream(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Init())

	first := &msg.TFMessage{Transforms: []msg.TransformStamped{{ChildFrameID: "a"}}}
	second := &msg.TFMessage{Transforms: []msg.TransformStamped{{ChildFrameID: "b"}}}
	require.NoError(t, m.PublishActiveTransforms(first))
	require.NoError(t, m.PublishActiveTransforms(second))

	assert.Same(t, second, m.LastActiveTransforms())
	assert.Equal(t, uint64(2), m.PublishCount(msg.TypeActiveTransforms))
	assert.Equal(t, uint64(0), m.PublishCount(msg.TypeStaticTransforms))
	assert.Nil(t, m.LastZoneMarkers())

	require.NoError(t, m.Close())
}

func TestMultiFansOutToAllSinks(t *testing.T) {
	a := NewMemory()
	b := NewMemory()
	multi := NewMulti(a, b)
	require.NoError(t, multi.Init())

	batch := &msg.MarkerArray{Markers: []msg.Marker{{ID: 1}}}
	require.NoError(t, multi.PublishZoneMarkers(batch))

	assert.Same(t, batch, a.LastZoneMarkers())
	assert.Same(t, batch, b.LastZoneMarkers())
}

// failSink errors on every operation after Init.
type failSink struct {
	Memory
	err error
}

func (f *failSink) PublishMeshMarkers(batch *msg.MarkerArray) error { return f.err }
func (f *failSink) Close() error                                    { return f.err }

func TestMultiDeliversPastFailingSink(t *testing.T) {
	boom := errors.New("sink down")
	bad := &failSink{err: boom}
	good := NewMemory()
	multi := NewMulti(bad, good)

	batch := &msg.MarkerArray{Markers: []msg.Marker{}}
	err := multi.PublishMeshMarkers(batch)
	require.ErrorIs(t, err, boom)
	assert.Same(t, batch, good.LastMeshMarkers(), "healthy sinks still receive the batch")

	assert.ErrorIs(t, multi.Close(), boom)
}

func TestMultiWithNoSinks(t *testing.T) {
	multi := NewMulti()
	require.NoError(t, multi.Init())
	require.NoError(t, multi.PublishActiveTransforms(&msg.TFMessage{}))
	require.NoError(t, multi.Close())
}

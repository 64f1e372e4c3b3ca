package publish

import (
	"sync"

	"github.com/framecast/bridge/pkg/msg"
)

// Memory retains the most recent batch per stream plus publish counts. It
// backs tests and the status monitor; nothing leaves the process.
type Memory struct {
	mu sync.RWMutex

	active  *msg.TFMessage
	statics *msg.TFMessage
	zones   *msg.MarkerArray
	meshes  *msg.MarkerArray

	counts map[string]uint64
}

// NewMemory creates an in-memory sink.
func NewMemory() *Memory {
	return &Memory{counts: make(map[string]uint64)}
}

// Init implements Sink.
func (m *Memory) Init() error { return nil }

// Close implements Sink.
func (m *Memory) Close() error { return nil }

func (m *Memory) PublishActiveTransforms(batch *msg.TFMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = batch
	m.counts[msg.TypeActiveTransforms]++
	return nil
}

func (m *Memory) PublishStaticTransforms(batch *msg.TFMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statics = batch
	m.counts[msg.TypeStaticTransforms]++
	return nil
}

func (m *Memory) PublishZoneMarkers(batch *msg.MarkerArray) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = batch
	m.counts[msg.TypeZoneMarkers]++
	return nil
}

func (m *Memory) PublishMeshMarkers(batch *msg.MarkerArray) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meshes = batch
	m.counts[msg.TypeMeshMarkers]++
	return nil
}

// LastActiveTransforms returns the most recently published active batch.
func (m *Memory) LastActiveTransforms() *msg.TFMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// LastStaticTransforms returns the most recently published static batch.
func (m *Memory) LastStaticTransforms() *msg.TFMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statics
}

// LastZoneMarkers returns the most recently published zone marker batch.
func (m *Memory) LastZoneMarkers() *msg.MarkerArray {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zones
}

// LastMeshMarkers returns the most recently published mesh marker batch.
func (m *Memory) LastMeshMarkers() *msg.MarkerArray {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meshes
}

// PublishCount returns how many batches arrived on the given stream type.
func (m *Memory) PublishCount(streamType string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[streamType]
}

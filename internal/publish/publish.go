// Package publish defines the outbound side of the render pipeline. A Sink
// receives the four per-tick message batches; each batch is delivered
// independently, so a failing stream never blocks the other three.
package publish

import (
	"errors"

	"github.com/framecast/bridge/pkg/msg"
)

// Sink is the interface all publish transports must satisfy.
type Sink interface {
	// Lifecycle
	Init() error
	Close() error

	// Per-tick batches. Empty batches are still delivered so consumers can
	// clear stale entries.
	PublishActiveTransforms(m *msg.TFMessage) error
	PublishStaticTransforms(m *msg.TFMessage) error
	PublishZoneMarkers(m *msg.MarkerArray) error
	PublishMeshMarkers(m *msg.MarkerArray) error
}

// Multi fans every batch out to several sinks. Errors are joined per call
// so the pipeline still sees and logs failures per stream.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fanout sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Init initializes all sinks, failing on the first error.
func (m *Multi) Init() error {
	for _, s := range m.sinks {
		if err := s.Init(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks, returning the joined errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (m *Multi) PublishActiveTransforms(batch *msg.TFMessage) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.PublishActiveTransforms(batch))
	}
	return errors.Join(errs...)
}

func (m *Multi) PublishStaticTransforms(batch *msg.TFMessage) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.PublishStaticTransforms(batch))
	}
	return errors.Join(errs...)
}

func (m *Multi) PublishZoneMarkers(batch *msg.MarkerArray) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.PublishZoneMarkers(batch))
	}
	return errors.Join(errs...)
}

func (m *Multi) PublishMeshMarkers(batch *msg.MarkerArray) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.PublishMeshMarkers(batch))
	}
	return errors.Join(errs...)
}

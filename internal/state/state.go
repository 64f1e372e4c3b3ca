// Package state implements the single-writer actor that owns the transform
// store. Every read and mutation crosses the actor's mailbox and is
// processed to full completion, one command at a time, so snapshots are
// linearizable with respect to all commands enqueued before them. No other
// goroutine ever touches the store map, which removes any need for locks on
// transform data.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/framecast/bridge/internal/scenario"
	"github.com/framecast/bridge/pkg/core"
)

// ErrClosed is returned when the manager's actor goroutine has terminated.
// Without the sole store owner no further coordination is possible, so
// callers must treat this as fatal.
var ErrClosed = errors.New("state manager is closed")

const mailboxSize = 64

// Manager owns the transform store. Construct with NewManager; the zero
// value is not usable.
type Manager struct {
	loader scenario.Loader
	logger *slog.Logger

	mailbox chan func()
	done    chan struct{}
	closeFn sync.Once

	// store is owned exclusively by the run goroutine.
	store map[core.FrameID]core.TransformRecord
}

// NewManager creates a Manager and starts its actor goroutine.
func NewManager(loader scenario.Loader, logger *slog.Logger) *Manager {
	m := &Manager{
		loader:  loader,
		logger:  logger,
		mailbox: make(chan func(), mailboxSize),
		done:    make(chan struct{}),
		store:   make(map[core.FrameID]core.TransformRecord),
	}
	go m.run()
	return m
}

// run drains the mailbox until Close.
func (m *Manager) run() {
	for {
		select {
		case <-m.done:
			return
		case cmd := <-m.mailbox:
			cmd()
		}
	}
}

// Close terminates the actor. In-flight callers receive ErrClosed.
func (m *Manager) Close() {
	m.closeFn.Do(func() {
		close(m.done)
	})
}

// enqueue submits a command and waits for it to signal completion on ack.
// The ack channel must have capacity 1 so the actor never blocks on reply.
func (m *Manager) enqueue(cmd func(), ack <-chan struct{}) error {
	select {
	case m.mailbox <- cmd:
	case <-m.done:
		return ErrClosed
	}
	select {
	case <-ack:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

// LoadScenario parses the scenario at path via the injected loader and
// merges the resulting records into the store, replacing records whose
// child frame already exists. Parsing happens outside the actor; only the
// merge crosses the mailbox.
func (m *Manager) LoadScenario(path string) error {
	records, err := m.loader.Load(path)
	if err != nil {
		return fmt.Errorf("loading scenario %q: %w", path, err)
	}

	ack := make(chan struct{}, 1)
	if err := m.enqueue(func() {
		for _, rec := range records {
			m.store[rec.ChildFrameID] = rec.Clone()
		}
		ack <- struct{}{}
	}, ack); err != nil {
		return err
	}

	if m.logger != nil {
		m.logger.Info("Scenario loaded", "path", path, "frames", len(records))
	}
	return nil
}

// GetAllTransforms returns a deep, independent snapshot of the store.
// Mutating the result never affects the store. The snapshot reflects every
// command enqueued strictly before this call.
func (m *Manager) GetAllTransforms() (map[core.FrameID]core.TransformRecord, error) {
	reply := make(chan map[core.FrameID]core.TransformRecord, 1)
	select {
	case m.mailbox <- func() {
		snap := make(map[core.FrameID]core.TransformRecord, len(m.store))
		for id, rec := range m.store {
			snap[id] = rec.Clone()
		}
		reply <- snap
	}:
	case <-m.done:
		return nil, ErrClosed
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-m.done:
		return nil, ErrClosed
	}
}

// GetTransform returns a deep copy of the record for the given child frame.
func (m *Manager) GetTransform(id core.FrameID) (core.TransformRecord, bool, error) {
	type result struct {
		rec core.TransformRecord
		ok  bool
	}
	reply := make(chan result, 1)
	select {
	case m.mailbox <- func() {
		rec, ok := m.store[id]
		if ok {
			rec = rec.Clone()
		}
		reply <- result{rec: rec, ok: ok}
	}:
	case <-m.done:
		return core.TransformRecord{}, false, ErrClosed
	}

	select {
	case res := <-reply:
		return res.rec, res.ok, nil
	case <-m.done:
		return core.TransformRecord{}, false, ErrClosed
	}
}

// SetTransform inserts or replaces the record for its child frame.
func (m *Manager) SetTransform(rec core.TransformRecord) error {
	if rec.ChildFrameID == "" {
		return errors.New("empty child frame id")
	}
	ack := make(chan struct{}, 1)
	return m.enqueue(func() {
		m.store[rec.ChildFrameID] = rec.Clone()
		ack <- struct{}{}
	}, ack)
}

// RemoveTransform deletes the record for the given child frame, if present.
func (m *Manager) RemoveTransform(id core.FrameID) error {
	ack := make(chan struct{}, 1)
	return m.enqueue(func() {
		delete(m.store, id)
		ack <- struct{}{}
	}, ack)
}

// FrameExists reports whether the given child frame has a record.
func (m *Manager) FrameExists(id core.FrameID) (bool, error) {
	reply := make(chan bool, 1)
	select {
	case m.mailbox <- func() {
		_, ok := m.store[id]
		reply <- ok
	}:
	case <-m.done:
		return false, ErrClosed
	}

	select {
	case ok := <-reply:
		return ok, nil
	case <-m.done:
		return false, ErrClosed
	}
}

// Ping round-trips a no-op command through the mailbox. It proves the actor
// goroutine is alive and draining, which is what the render pipeline checks
// before requesting a snapshot.
func (m *Manager) Ping(ctx context.Context) error {
	ack := make(chan struct{}, 1)

	select {
	case m.mailbox <- func() { ack <- struct{}{} }:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear removes every record from the store.
func (m *Manager) Clear() error {
	ack := make(chan struct{}, 1)
	return m.enqueue(func() {
		clear(m.store)
		ack <- struct{}{}
	}, ack)
}

// Len returns the number of records in the store.
func (m *Manager) Len() (int, error) {
	reply := make(chan int, 1)
	select {
	case m.mailbox <- func() { reply <- len(m.store) }:
	case <-m.done:
		return 0, ErrClosed
	}

	select {
	case n := <-reply:
		return n, nil
	case <-m.done:
		return 0, ErrClosed
	}
}

// Package websocket streams the four per-tick batches to a visualization
// server over a WebSocket connection. Batches are JSON envelopes written by
// a single write goroutine; only the session announcement is acknowledged
// by the server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/framecast/bridge/pkg/msg"
)

// Config holds WebSocket sink configuration.
type Config struct {
	URL    string
	Secret string
	Node   string
}

// Sink streams batches over a WebSocket. It implements publish.Sink.
type Sink struct {
	conn *connection
	cfg  Config
}

// New creates a WebSocket sink.
func New(cfg Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the server and announces the session, waiting for the
// server's ack.
func (s *Sink) Init() error {
	if err := s.conn.dial(s.cfg.URL, s.cfg.Secret); err != nil {
		return err
	}

	data, err := marshalEnvelope(msg.TypeSessionStart, msg.SessionStartPayload{
		Node:      s.cfg.Node,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	s.conn.mu.Lock()
	s.conn.cachedSessionMsg = data
	s.conn.mu.Unlock()

	return s.conn.sendAndWait(data, msg.TypeSessionStart, ackTimeout)
}

// Close disconnects from the server.
func (s *Sink) Close() error {
	return s.conn.close()
}

// QueueLen returns the number of pending outbound messages.
func (s *Sink) QueueLen() int {
	return s.conn.sendCh.Len()
}

// marshalEnvelope builds a JSON-encoded Envelope from a stream type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := msg.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it to the
// write loop (fire-and-forget).
func (s *Sink) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return s.conn.send(msgType, data)
}

func (s *Sink) PublishActiveTransforms(batch *msg.TFMessage) error {
	return s.sendEnvelope(msg.TypeActiveTransforms, batch)
}

func (s *Sink) PublishStaticTransforms(batch *msg.TFMessage) error {
	return s.sendEnvelope(msg.TypeStaticTransforms, batch)
}

func (s *Sink) PublishZoneMarkers(batch *msg.MarkerArray) error {
	return s.sendEnvelope(msg.TypeZoneMarkers, batch)
}

func (s *Sink) PublishMeshMarkers(batch *msg.MarkerArray) error {
	return s.sendEnvelope(msg.TypeMeshMarkers, batch)
}

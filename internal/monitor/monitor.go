// Package monitor reports bridge runtime status to a local status file and,
// when configured, to InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/framecast/bridge/internal/influx"
	"github.com/framecast/bridge/internal/logging"
	"github.com/framecast/bridge/internal/render"
)

// QueueReporter exposes the recorder sink's buffering state.
type QueueReporter interface {
	QueueLengths() (transforms int, markers int)
	LastFlushDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Pipeline   *render.Pipeline
	Recorder   QueueReporter // nil when the recorder sink is disabled
	Influx     *influx.Manager
	StatusDir  string
	Node       string
}

// Status is the snapshot written to the status file once per interval.
type Status struct {
	Time                time.Time     `json:"time"`
	Node                string        `json:"node"`
	Ticks               uint64        `json:"ticks"`
	SkippedTicks        uint64        `json:"skippedTicks"`
	LastTickDuration    time.Duration `json:"lastTickDurationNs"`
	LastFrameCount      int           `json:"lastFrameCount"`
	LastMarkerCount     int           `json:"lastMarkerCount"`
	RecorderTransformQ  int           `json:"recorderTransformQueue"`
	RecorderMarkerQ     int           `json:"recorderMarkerQueue"`
	LastFlushDurationMs float32       `json:"lastFlushDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	interval  time.Duration
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		interval: time.Second,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus collects the current bridge status.
func (s *Service) GetStatus() Status {
	stats := s.deps.Pipeline.Stats()

	st := Status{
		Time:             time.Now(),
		Node:             s.deps.Node,
		Ticks:            stats.Ticks,
		SkippedTicks:     stats.SkippedTicks,
		LastTickDuration: stats.LastTickDuration,
		LastFrameCount:   stats.LastFrameCount,
		LastMarkerCount:  stats.LastMarkerCount,
	}

	if s.deps.Recorder != nil {
		st.RecorderTransformQ, st.RecorderMarkerQ = s.deps.Recorder.QueueLengths()
		st.LastFlushDurationMs = float32(s.deps.Recorder.LastFlushDuration().Milliseconds())
	}

	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.GetStatus()

				if statusFile != nil {
					statusStr, err := json.MarshalIndent(st, "", "  ")
					if err != nil {
						statusStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.WriteString(string(statusStr) + "\n")
				}

				if s.deps.Influx != nil {
					point := influx.TickPoint(
						s.deps.Node,
						st.LastFrameCount,
						st.LastMarkerCount,
						st.LastTickDuration,
						st.Time,
					)
					err = s.deps.Influx.WritePoint(context.Background(), "bridge_performance", point)
					if err != nil {
						logger.Error("Error writing status point to InfluxDB", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

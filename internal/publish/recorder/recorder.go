// Package recorder persists the four per-tick batches into a relational
// recording database (embedded SQLite by default, Postgres for shared
// deployments). Rows are buffered in memory and flushed in batches on a
// background cycle so the render tick never waits on the database.
package recorder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/framecast/bridge/internal/queue"
	"github.com/framecast/bridge/pkg/msg"
)

// Config holds recorder sink configuration.
type Config struct {
	Type          string // "sqlite" or "postgres"
	Path          string // sqlite file path; empty means in-memory
	DSN           string // postgres DSN
	FlushInterval time.Duration
}

// Sink implements publish.Sink by recording batches to a database.
type Sink struct {
	cfg    Config
	logger *slog.Logger

	transforms *queue.Queue[TransformRow]
	markers    *queue.Queue[MarkerRow]

	db       *gorm.DB
	stopChan chan struct{}
	stopOnce sync.Once

	mu            sync.RWMutex
	lastFlushTook time.Duration
}

// New creates a recorder sink.
func New(cfg Config, logger *slog.Logger) *Sink {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:        cfg,
		logger:     logger,
		transforms: queue.New[TransformRow](),
		markers:    queue.New[MarkerRow](),
		stopChan:   make(chan struct{}),
	}
}

// Init opens the database, migrates the schema, and starts the flush loop.
func (s *Sink) Init() error {
	db, err := openDB(s.cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("migrating recording schema: %w", err)
	}
	s.db = db

	go s.flushLoop()
	return nil
}

// Close stops the flush loop, writes any buffered rows, and closes the
// database.
func (s *Sink) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })

	if s.db == nil {
		return nil
	}
	s.flush()

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}
	return sqlDB.Close()
}

func (s *Sink) PublishActiveTransforms(batch *msg.TFMessage) error {
	s.pushTransforms(StreamActive, batch)
	return nil
}

func (s *Sink) PublishStaticTransforms(batch *msg.TFMessage) error {
	s.pushTransforms(StreamStatic, batch)
	return nil
}

func (s *Sink) PublishZoneMarkers(batch *msg.MarkerArray) error {
	s.pushMarkers(StreamZone, batch)
	return nil
}

func (s *Sink) PublishMeshMarkers(batch *msg.MarkerArray) error {
	s.pushMarkers(StreamMesh, batch)
	return nil
}

func (s *Sink) pushTransforms(stream string, batch *msg.TFMessage) {
	for _, t := range batch.Transforms {
		s.transforms.Push(TransformRow{
			Stream:        stream,
			Stamp:         time.Unix(int64(t.Header.Stamp.Sec), int64(t.Header.Stamp.Nanosec)),
			ParentFrameID: t.Header.FrameID,
			ChildFrameID:  t.ChildFrameID,
			TranslationX:  t.Transform.Translation.X,
			TranslationY:  t.Transform.Translation.Y,
			TranslationZ:  t.Transform.Translation.Z,
			RotationX:     t.Transform.Rotation.X,
			RotationY:     t.Transform.Rotation.Y,
			RotationZ:     t.Transform.Rotation.Z,
			RotationW:     t.Transform.Rotation.W,
		})
	}
}

func (s *Sink) pushMarkers(stream string, batch *msg.MarkerArray) {
	for _, m := range batch.Markers {
		scale, err := jsonColumn(m.Scale)
		if err != nil {
			s.logger.Error("Failed to encode marker scale", "error", err)
			continue
		}
		color, err := jsonColumn(m.Color)
		if err != nil {
			s.logger.Error("Failed to encode marker color", "error", err)
			continue
		}
		s.markers.Push(MarkerRow{
			Stream:       stream,
			FrameID:      m.Header.FrameID,
			MarkerID:     m.ID,
			Shape:        m.Type,
			Scale:        scale,
			Color:        color,
			MeshResource: m.MeshResource,
		})
	}
}

// flushLoop writes buffered rows on a fixed cycle until Close.
func (s *Sink) flushLoop() {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// flush batch-inserts everything buffered since the last cycle.
func (s *Sink) flush() {
	start := time.Now()
	wrote := false

	if rows := s.transforms.Drain(); len(rows) > 0 {
		wrote = true
		if err := s.db.Create(&rows).Error; err != nil {
			s.logger.Error("Failed to write transform rows", "count", len(rows), "error", err)
		}
	}
	if rows := s.markers.Drain(); len(rows) > 0 {
		wrote = true
		if err := s.db.Create(&rows).Error; err != nil {
			s.logger.Error("Failed to write marker rows", "count", len(rows), "error", err)
		}
	}

	if wrote {
		took := time.Since(start)
		s.mu.Lock()
		s.lastFlushTook = took
		s.mu.Unlock()
	}
}

// LastFlushDuration returns how long the most recent non-empty flush took.
func (s *Sink) LastFlushDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFlushTook
}

// QueueLengths returns the pending transform and marker row counts.
func (s *Sink) QueueLengths() (transforms, markers int) {
	return s.transforms.Len(), s.markers.Len()
}

// jsonColumn encodes a value into a datatypes.JSON column.
func jsonColumn(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

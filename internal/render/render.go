// Package render implements the timer-driven pipeline that turns transform
// store snapshots into the four outbound message streams. Each tick is a
// stateless re-derivation: it requests a fresh snapshot, decodes metadata,
// classifies every frame, synthesizes markers, and publishes. Nothing is
// carried over between ticks, so a skipped tick self-heals on the next one.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/framecast/bridge/internal/metadata"
	"github.com/framecast/bridge/internal/publish"
	"github.com/framecast/bridge/internal/state"
	"github.com/framecast/bridge/pkg/core"
	"github.com/framecast/bridge/pkg/msg"
)

const (
	defaultTickInterval   = 20 * time.Millisecond
	defaultMarkerLifetime = 2 * time.Second
)

// zoneColor is the fixed translucent green applied to every zone sphere.
var zoneColor = msg.ColorRGBA{R: 0.0, G: 255.0, B: 0.0, A: 0.15}

// SnapshotSource hands out deep, independent copies of the transform store.
// The state manager is the production implementation.
type SnapshotSource interface {
	GetAllTransforms() (map[core.FrameID]core.TransformRecord, error)
}

// Pinger is an optional health check a snapshot source may expose. When
// present, a failed ping skips the tick before any snapshot is requested.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds render pipeline settings.
type Config struct {
	// TickInterval is the publish cadence. Defaults to 20ms.
	TickInterval time.Duration

	// MeshBaseDir is joined with each frame's mesh path to build the mesh
	// resource URI.
	MeshBaseDir string

	// MarkerLifetime is applied to every marker. Defaults to 2s.
	MarkerLifetime time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the tick timestamp source. Tests use this to pin the
// per-tick stamp.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// Pipeline is the per-tick render loop.
type Pipeline struct {
	cfg     Config
	source  SnapshotSource
	sink    publish.Sink
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics

	statsMu sync.Mutex
	stats   Stats
}

// Stats is a point-in-time view of pipeline activity.
type Stats struct {
	Ticks            uint64
	SkippedTicks     uint64
	LastTickDuration time.Duration
	LastFrameCount   int
	LastMarkerCount  int
}

// Stats returns a copy of the current pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// New creates a Pipeline. The source and sink must outlive it.
func New(cfg Config, source SnapshotSource, sink publish.Sink, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.MarkerLifetime <= 0 {
		cfg.MarkerLifetime = defaultMarkerLifetime
	}
	if logger == nil {
		logger = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		clock:   time.Now,
		logger:  logger,
		metrics: m,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run drives the tick loop until ctx is cancelled or the snapshot source
// terminates. Termination of the sole store owner is fatal: without it no
// further coordination is possible.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				return fmt.Errorf("render pipeline stopped: %w", err)
			}
		}
	}
}

// Tick performs one full render cycle. A nil return means the tick either
// published or was skipped; a non-nil return is fatal.
func (p *Pipeline) Tick(ctx context.Context) error {
	start := time.Now()

	if hc, ok := p.source.(Pinger); ok {
		if err := hc.Ping(ctx); err != nil {
			// Transient outage: nothing is published this tick and the next
			// tick retries. No error is surfaced.
			p.recordSkip(ctx)
			p.logger.Debug("Store health check failed, skipping tick", "reason", err)
			return nil
		}
	}

	snapshot, err := p.source.GetAllTransforms()
	if err != nil {
		if errors.Is(err, state.ErrClosed) {
			return err
		}
		p.recordSkip(ctx)
		p.logger.Debug("Snapshot request failed, skipping tick", "reason", err)
		return nil
	}

	out := p.build(snapshot)
	p.publishAll(ctx, out)
	p.metrics.ticks.Add(ctx, 1)

	p.statsMu.Lock()
	p.stats.Ticks++
	p.stats.LastTickDuration = time.Since(start)
	p.stats.LastFrameCount = len(snapshot)
	p.stats.LastMarkerCount = len(out.zones.Markers) + len(out.meshes.Markers)
	p.statsMu.Unlock()
	return nil
}

func (p *Pipeline) recordSkip(ctx context.Context) {
	p.metrics.skippedTicks.Add(ctx, 1)
	p.statsMu.Lock()
	p.stats.SkippedTicks++
	p.statsMu.Unlock()
}

// tickOutput is the per-tick result, discarded after publish.
type tickOutput struct {
	active  msg.TFMessage
	statics msg.TFMessage
	zones   msg.MarkerArray
	meshes  msg.MarkerArray
}

// build classifies every snapshot record and synthesizes markers. All
// transforms in one tick share a single timestamp; marker ids are unique
// and contiguous across the combined mesh+zone output, starting at 1.
func (p *Pipeline) build(snapshot map[core.FrameID]core.TransformRecord) tickOutput {
	out := tickOutput{
		active:  msg.TFMessage{Transforms: []msg.TransformStamped{}},
		statics: msg.TFMessage{Transforms: []msg.TransformStamped{}},
		zones:   msg.MarkerArray{Markers: []msg.Marker{}},
		meshes:  msg.MarkerArray{Markers: []msg.Marker{}},
	}

	stamp := msg.StampFromTime(p.clock())

	// Map iteration order is randomized; sort for a deterministic pass.
	ids := make([]core.FrameID, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var markerID int32
	for _, frameID := range ids {
		rec := snapshot[frameID]

		ts := msg.TransformStamped{
			Header: msg.Header{
				Stamp:   stamp,
				FrameID: string(rec.ParentFrameID),
			},
			ChildFrameID: string(rec.ChildFrameID),
			Transform: msg.Transform{
				Translation: msg.Vector3{
					X: rec.Transform.Translation.X,
					Y: rec.Transform.Translation.Y,
					Z: rec.Transform.Translation.Z,
				},
				Rotation: msg.Quaternion{
					X: rec.Transform.Rotation.X,
					Y: rec.Transform.Rotation.Y,
					Z: rec.Transform.Rotation.Z,
					W: rec.Transform.Rotation.W,
				},
			},
		}
		if rec.ActiveTransform {
			out.active.Transforms = append(out.active.Transforms, ts)
		} else {
			out.statics.Transforms = append(out.statics.Transforms, ts)
		}

		meta := metadata.Decode(rec.Metadata)

		if meta.MeshEligible() {
			markerID++
			out.meshes.Markers = append(out.meshes.Markers, p.meshMarker(markerID, rec, meta))
		}
		if meta.ZoneEligible() {
			markerID++
			out.zones.Markers = append(out.zones.Markers, p.zoneMarker(markerID, rec, meta))
		}
	}

	return out
}

// meshMarker builds a mesh marker at the child frame's origin.
func (p *Pipeline) meshMarker(id int32, rec core.TransformRecord, meta metadata.Visualization) msg.Marker {
	scale := meta.EffectiveMeshScale()
	m := msg.Marker{
		Header: msg.Header{
			Stamp:   msg.Time{},
			FrameID: string(rec.ChildFrameID),
		},
		ID:       id,
		Type:     meta.MeshType,
		Action:   msg.MarkerActionAdd,
		Pose:     msg.IdentityPose(),
		Scale:    msg.Vector3{X: scale, Y: scale, Z: scale},
		Color:    msg.ColorRGBA{R: meta.MeshR, G: meta.MeshG, B: meta.MeshB, A: meta.MeshA},
		Lifetime: p.markerLifetime(),
	}
	if meta.MeshType == msg.MarkerMeshResource {
		m.MeshResource = fmt.Sprintf("file://%s/%s", p.cfg.MeshBaseDir, *meta.MeshPath)
	}
	return m
}

// zoneMarker builds a zone sphere at the child frame's origin.
func (p *Pipeline) zoneMarker(id int32, rec core.TransformRecord, meta metadata.Visualization) msg.Marker {
	return msg.Marker{
		Header: msg.Header{
			Stamp:   msg.Time{},
			FrameID: string(rec.ChildFrameID),
		},
		ID:       id,
		Type:     msg.MarkerSphere,
		Action:   msg.MarkerActionAdd,
		Pose:     msg.IdentityPose(),
		Scale:    msg.Vector3{X: meta.Zone, Y: meta.Zone, Z: meta.Zone},
		Color:    zoneColor,
		Lifetime: p.markerLifetime(),
	}
}

func (p *Pipeline) markerLifetime() msg.Duration {
	return msg.Duration{
		Sec:     int32(p.cfg.MarkerLifetime / time.Second),
		Nanosec: uint32(p.cfg.MarkerLifetime % time.Second),
	}
}

// publishAll delivers the four batches independently. A failure on one
// stream is logged and never blocks or rolls back the other three.
func (p *Pipeline) publishAll(ctx context.Context, out tickOutput) {
	p.publishStream(ctx, msg.TypeActiveTransforms, func() error {
		return p.sink.PublishActiveTransforms(&out.active)
	})
	p.publishStream(ctx, msg.TypeStaticTransforms, func() error {
		return p.sink.PublishStaticTransforms(&out.statics)
	})
	p.publishStream(ctx, msg.TypeZoneMarkers, func() error {
		return p.sink.PublishZoneMarkers(&out.zones)
	})
	p.publishStream(ctx, msg.TypeMeshMarkers, func() error {
		return p.sink.PublishMeshMarkers(&out.meshes)
	})

	emitted := int64(len(out.zones.Markers) + len(out.meshes.Markers))
	if emitted > 0 {
		p.metrics.markersEmitted.Add(ctx, emitted)
	}
}

func (p *Pipeline) publishStream(ctx context.Context, stream string, send func() error) {
	if err := send(); err != nil {
		p.metrics.publishFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stream", stream)))
		p.logger.Error("Publish failed", "stream", stream, "error", err)
	}
}

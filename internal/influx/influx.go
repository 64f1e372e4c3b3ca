// Package influx ships bridge performance points to InfluxDB. When the
// server is unreachable the points are appended as gzipped line protocol to
// a local backup file instead, so a metrics outage never stalls the bridge.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultBucketNames lists the buckets the bridge writes to. Telegraf is
// included so host-level metrics land in the same org.
var DefaultBucketNames = []string{
	"bridge_performance",
	"publish_performance",
	"Telegraf",
}

const bucketRetentionSeconds = 60 * 60 * 24 * 90

// Manager owns the client, one async write API per bucket, and the gzip
// backup writer used while the client is unhealthy.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string
}

func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// Connect dials InfluxDB using the influx.* config keys. A failed ping is
// not an error; the manager degrades to the backup file and stays usable.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	url := fmt.Sprintf("%s://%s:%s",
		viper.GetString("influx.protocol"),
		viper.GetString("influx.host"),
		viper.GetString("influx.port"),
	)
	m.Client = influxdb2.NewClientWithOptions(
		url,
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Str("url", url).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, falling back to backup file")
		return m.openBackup()
	}

	m.IsValid = true
	if err := m.ensureBuckets(); err != nil {
		return err
	}
	m.startWriters()
	m.Logger.Info().Str("url", url).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %v", err)
	}
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

// ensureBuckets creates the org and any missing buckets, each with a
// 90 day retention rule.
func (m *Manager) ensureBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")
	orgsAPI := m.Client.OrganizationsAPI()

	org, err := orgsAPI.FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		if org, err = orgsAPI.CreateOrganizationWithName(ctx, orgName); err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	rule := domain.RetentionRuleTypeExpire
	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")
		_, err := m.Client.BucketsAPI().CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: bucketRetentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// startWriters opens one async write API per bucket and drains its error
// channel in the background.
func (m *Manager) startWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		writer := m.Client.WriteAPI(orgName, bucket)
		m.Writers[bucket] = writer

		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, writer.Errors())
	}
	m.Logger.Debug().Int("buckets", len(m.Writers)).Msg("InfluxDB writers initialized")
}

// WritePoint queues a point on the bucket's writer, or serializes it to the
// backup file when the client is down.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		writer, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// TickPoint builds a bridge_performance point describing one render tick.
func TickPoint(node string, frames int, markers int, took time.Duration, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("render_tick").
		AddTag("node", node).
		AddField("frames", frames).
		AddField("markers", markers).
		AddField("duration_us", took.Microseconds()).
		SetTime(at)
}

// PublishPoint builds a publish_performance point for one stream publish.
func PublishPoint(node string, stream string, ok bool, took time.Duration, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("stream_publish").
		AddTag("node", node).
		AddTag("stream", stream).
		AddField("ok", ok).
		AddField("duration_us", took.Microseconds()).
		SetTime(at)
}

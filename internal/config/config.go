// Package config loads framecast configuration from defaults plus an
// optional JSON config file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// WebsocketConfig holds the streaming sink settings.
type WebsocketConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// RecorderConfig holds the recording sink settings.
type RecorderConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Type        string `json:"type" mapstructure:"type"` // sqlite or postgres
	Path        string `json:"path" mapstructure:"path"`
	DSN         string `json:"dsn" mapstructure:"dsn"`
	FlushMillis int    `json:"flushMillis" mapstructure:"flushMillis"`
}

// Load reads configuration from a JSON file and sets default values.
// configDir is the directory containing the config file; an absent file is
// not an error, the defaults stand.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./framecastlogs")
	viper.SetDefault("nodeName", "framecast")

	viper.SetDefault("tickMillis", 20)
	viper.SetDefault("markerLifetimeSec", 2)
	viper.SetDefault("meshesDir", "./meshes")
	viper.SetDefault("scenarioDir", "./scenario")

	viper.SetDefault("sinks.websocket.enabled", false)
	viper.SetDefault("sinks.websocket.url", "ws://localhost:5001/stream")
	viper.SetDefault("sinks.websocket.secret", "")

	viper.SetDefault("sinks.recorder.enabled", false)
	viper.SetDefault("sinks.recorder.type", "sqlite")
	viper.SetDefault("sinks.recorder.path", "")
	viper.SetDefault("sinks.recorder.dsn", "")
	viper.SetDefault("sinks.recorder.flushMillis", 1000)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "framecast-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "framecast")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("framecast.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("error reading config file: %v", err)
		}
	}

	return nil
}

// TickInterval returns the render cadence.
func TickInterval() time.Duration {
	return time.Duration(viper.GetInt("tickMillis")) * time.Millisecond
}

// MarkerLifetime returns the lifetime applied to every marker.
func MarkerLifetime() time.Duration {
	return time.Duration(viper.GetInt("markerLifetimeSec")) * time.Second
}

// GetWebsocketConfig returns the streaming sink settings.
func GetWebsocketConfig() (WebsocketConfig, error) {
	var cfg WebsocketConfig
	if err := viper.UnmarshalKey("sinks.websocket", &cfg); err != nil {
		return cfg, fmt.Errorf("decoding websocket sink config: %w", err)
	}
	return cfg, nil
}

// GetRecorderConfig returns the recording sink settings.
func GetRecorderConfig() (RecorderConfig, error) {
	var cfg RecorderConfig
	if err := viper.UnmarshalKey("sinks.recorder", &cfg); err != nil {
		return cfg, fmt.Errorf("decoding recorder sink config: %w", err)
	}
	return cfg, nil
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/framecast/bridge/internal/config"
	"github.com/framecast/bridge/internal/influx"
	"github.com/framecast/bridge/internal/logging"
	"github.com/framecast/bridge/internal/monitor"
	intOtel "github.com/framecast/bridge/internal/otel"
	"github.com/framecast/bridge/internal/render"
	"github.com/framecast/bridge/internal/scenario"
	"github.com/framecast/bridge/internal/state"
)

// Version can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	ServiceName string = "framecast"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// GraylogWriter is the GELF writer, nil when Graylog is disabled
	GraylogWriter *gelf.Writer

	// InfluxManager writes performance points, nil when Influx is disabled
	InfluxManager *influx.Manager

	SessionStartTime time.Time = time.Now()

	LogFilePath string
	LogFile     *os.File

	monitorService *monitor.Service
)

func setupLogging() error {
	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs dir: %w", err)
		}
	}

	LogFilePath = logging.LogFilePath(logsDir, config.GetString("nodeName"), SessionStartTime)

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if config.GetBool("graylog.enabled") {
		GraylogWriter, err = gelf.NewWriter(config.GetString("graylog.address"))
		if err != nil {
			Logger.Warn("Failed to connect GELF writer, continuing without Graylog", "error", err)
			GraylogWriter = nil
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	// A typed nil *gelf.Writer must not reach the io.Writer parameter.
	var gelfWriter io.Writer
	if GraylogWriter != nil {
		gelfWriter = GraylogWriter
	}

	nodeName := config.GetString("nodeName")
	SlogManager.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{
			slog.String("node", nodeName),
			slog.String("version", Version),
		}
	})

	SlogManager.Setup(LogFile, gelfWriter, config.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
	return nil
}

func run() error {
	// Bootstrap logging to stderr until the config tells us where the log
	// file lives.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, nil, "info", nil)
	Logger = SlogManager.Logger()

	configDir := "."
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	if err := setupLogging(); err != nil {
		return err
	}
	defer LogFile.Close()
	Logger.Info("Starting up...", "version", Version, "buildDate", BuildDate)

	if config.GetBool("influx.enabled") {
		zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		backupPath := logging.LogFilePath(config.GetString("logsDir"), "influx_backup", SessionStartTime) + ".gz"
		InfluxManager = influx.NewManager(zlog, backupPath)
		if err := InfluxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, performance points disabled", "error", err)
			InfluxManager = nil
		}
	}

	loader := scenario.NewDirLoader(Logger)
	manager := state.NewManager(loader, Logger)
	defer manager.Close()

	scenarioDir := config.GetString("scenarioDir")
	if err := manager.LoadScenario(scenarioDir); err != nil {
		return fmt.Errorf("failed to load scenario from %s: %w", scenarioDir, err)
	}
	if n, err := manager.Len(); err == nil {
		Logger.Info("Scenario loaded", "dir", scenarioDir, "frames", n)
	}

	sink, recorderSink, err := createSinks()
	if err != nil {
		return fmt.Errorf("failed to create sinks: %w", err)
	}
	if err := sink.Init(); err != nil {
		return fmt.Errorf("failed to initialize sinks: %w", err)
	}
	defer sink.Close()

	pipeline, err := render.New(render.Config{
		TickInterval:   config.TickInterval(),
		MeshBaseDir:    config.GetString("meshesDir"),
		MarkerLifetime: config.MarkerLifetime(),
	}, manager, sink, Logger)
	if err != nil {
		return fmt.Errorf("failed to create render pipeline: %w", err)
	}

	// A typed nil must not reach the interface field.
	var queueReporter monitor.QueueReporter
	if recorderSink != nil {
		queueReporter = recorderSink
	}

	monitorService = monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Pipeline:   pipeline,
		Recorder:   queueReporter,
		Influx:     InfluxManager,
		StatusDir:  config.GetString("logsDir"),
		Node:       config.GetString("nodeName"),
	})
	monitorService.Start()
	defer monitorService.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	Logger.Info("Render pipeline running",
		"tickInterval", config.TickInterval(),
		"markerLifetime", config.MarkerLifetime())

	err = pipeline.Run(ctx)
	if errors.Is(err, context.Canceled) {
		Logger.Info("Shutdown signal received")
		err = nil
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if flushErr := OTelProvider.Flush(flushCtx); flushErr != nil {
			Logger.Warn("Failed to flush OTel data", "error", flushErr)
		}
		defer OTelProvider.Shutdown(flushCtx)
	}
	SlogManager.Flush(flushCtx)

	return err
}

func main() {
	if err := run(); err != nil {
		if Logger != nil {
			Logger.Error("Fatal error", "error", err)
		}
		fmt.Fprintf(os.Stderr, "framecast: %v\n", err)
		os.Exit(1)
	}
}

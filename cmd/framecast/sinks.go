package main

import (
	"time"

	"github.com/framecast/bridge/internal/config"
	"github.com/framecast/bridge/internal/publish"
	"github.com/framecast/bridge/internal/publish/recorder"
	wssink "github.com/framecast/bridge/internal/publish/websocket"
)

// createSinks builds the publish fan-out from the sink configuration. The
// recorder sink is returned separately so the monitor can report its queue
// state. With every sink disabled an in-memory sink keeps the pipeline
// running so the bridge still serves as a store health probe.
func createSinks() (publish.Sink, *recorder.Sink, error) {
	var sinks []publish.Sink
	var recorderSink *recorder.Sink

	wsCfg, err := config.GetWebsocketConfig()
	if err != nil {
		return nil, nil, err
	}
	if wsCfg.Enabled {
		Logger.Info("WebSocket sink enabled", "url", wsCfg.URL)
		sinks = append(sinks, wssink.New(wssink.Config{
			URL:    wsCfg.URL,
			Secret: wsCfg.Secret,
			Node:   config.GetString("nodeName"),
		}, Logger))
	}

	recCfg, err := config.GetRecorderConfig()
	if err != nil {
		return nil, nil, err
	}
	if recCfg.Enabled {
		Logger.Info("Recorder sink enabled", "type", recCfg.Type)
		recorderSink = recorder.New(recorder.Config{
			Type:          recCfg.Type,
			Path:          recCfg.Path,
			DSN:           recCfg.DSN,
			FlushInterval: time.Duration(recCfg.FlushMillis) * time.Millisecond,
		}, Logger)
		sinks = append(sinks, recorderSink)
	}

	if len(sinks) == 0 {
		Logger.Info("No sinks enabled, using in-memory sink")
		sinks = append(sinks, publish.NewMemory())
	}

	return publish.NewMulti(sinks...), recorderSink, nil
}

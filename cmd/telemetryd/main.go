// Command telemetryd runs a standalone foxglove.sdk.v1 WebSocket server,
// optionally recording every published message to an MCAP container file
// alongside fanning it out to connected clients.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/odin-telemetry/telemetry-sdk/internal/appconfig"
	"github.com/odin-telemetry/telemetry-sdk/internal/logging"
	"github.com/odin-telemetry/telemetry-sdk/logcontext"
	"github.com/odin-telemetry/telemetry-sdk/mcapsink"
	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
	"github.com/odin-telemetry/telemetry-sdk/wsserver"
)

func parseCapabilities(raw string) []wsprotocol.Capability {
	var caps []wsprotocol.Capability
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			caps = append(caps, wsprotocol.Capability(c))
		}
	}
	return caps
}

func main() {
	bootLogger := logging.New(logging.Config{Level: "info", Format: "console"})

	cfg, err := appconfig.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info().Msg("starting telemetryd")

	ctx := logcontext.Global()

	if cfg.McapOutputPath != "" {
		sink, err := mcapsink.Create(cfg.McapOutputPath, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.McapOutputPath).Msg("failed to open mcap sink")
		}
		defer sink.Close()
		ctx.AddSink(sink)
		logger.Info().Str("path", cfg.McapOutputPath).Msg("recording to mcap container file")
	}

	server, err := wsserver.NewServer(wsserver.ServerConfig{
		Addr:                    cfg.Addr,
		Name:                    cfg.ServerName,
		WriteTimeout:            cfg.WriteTimeout,
		PingInterval:            cfg.PingInterval,
		MaxConnections:          cfg.MaxConnections,
		DataQueueSize:           cfg.DataQueueSize,
		ControlQueueSize:        cfg.ControlQueueSize,
		ClientRateLimit:         cfg.ClientRateLimit,
		ClientRateBurst:         cfg.ClientRateBurst,
		Capabilities:            parseCapabilities(cfg.Capabilities),
		MaxInFlightServiceCalls: cfg.MaxInFlightServiceCalls,
		TimeBroadcastInterval:   cfg.TimeBroadcastInterval,
		CPURejectThreshold:      cfg.CPURejectThreshold,
		JWTPublicKeyPath:        cfg.JWTPublicKeyPath,
		Context:                 ctx,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct server")
	}

	ctx.AddSink(server)

	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}

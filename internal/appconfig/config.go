// Package appconfig loads telemetryd's runtime configuration from the
// environment, with an optional .env file for local development.
package appconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every environment-tunable setting for the telemetryd
// process. Tags:
//
//	env: environment variable name
//	envDefault: value used when the variable is unset
type Config struct {
	// WebSocket server
	Addr            string        `env:"TELEMETRYD_ADDR" envDefault:":8765"`
	ServerName      string        `env:"TELEMETRYD_SERVER_NAME" envDefault:"telemetry-sdk"`
	WriteTimeout    time.Duration `env:"TELEMETRYD_WRITE_TIMEOUT" envDefault:"5s"`
	PingInterval    time.Duration `env:"TELEMETRYD_PING_INTERVAL" envDefault:"20s"`
	MaxConnections  int           `env:"TELEMETRYD_MAX_CONNECTIONS" envDefault:"2000"`
	DataQueueSize   int           `env:"TELEMETRYD_DATA_QUEUE_SIZE" envDefault:"1024"`
	ControlQueueSize int          `env:"TELEMETRYD_CONTROL_QUEUE_SIZE" envDefault:"64"`

	// Per-client inbound rate limiting
	ClientRateLimit float64 `env:"TELEMETRYD_CLIENT_RATE_LIMIT" envDefault:"200"`
	ClientRateBurst int     `env:"TELEMETRYD_CLIENT_RATE_BURST" envDefault:"400"`

	// Capabilities, comma separated: clientPublish,parameters,parametersSubscribe,time,services,assets
	Capabilities string `env:"TELEMETRYD_CAPABILITIES" envDefault:"clientPublish,parameters,parametersSubscribe,services"`

	// Services
	MaxInFlightServiceCalls int `env:"TELEMETRYD_MAX_INFLIGHT_SERVICE_CALLS" envDefault:"32"`

	// Time capability
	TimeBroadcastInterval time.Duration `env:"TELEMETRYD_TIME_BROADCAST_INTERVAL" envDefault:"1s"`

	// Container-file sink
	McapOutputPath string `env:"TELEMETRYD_MCAP_PATH" envDefault:""`

	// Resource admission control
	CPURejectThreshold float64 `env:"TELEMETRYD_CPU_REJECT_THRESHOLD" envDefault:"85.0"`

	// Logging
	LogLevel  string `env:"TELEMETRYD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TELEMETRYD_LOG_FORMAT" envDefault:"json"`

	// Optional client-identity decorator (off by default: the SDK core has
	// no authentication of its own).
	JWTPublicKeyPath string `env:"TELEMETRYD_JWT_PUBLIC_KEY_PATH" envDefault:""`
}

// Load reads .env (if present) then parses environment variables into a
// Config, applying defaults for anything unset.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("appconfig: parse environment: %w", err)
	}
	return cfg, nil
}

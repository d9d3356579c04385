package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration, loaded from environment variables.
type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	// Store backend: memory, redis, or postgres.
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"memory"`
	StoreSnapshot string `env:"STORE_SNAPSHOT" envDefault:"data/records.json"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	PostgresConn string `env:"POSTGRES_CONN"`

	// JournalDir enables the ingest journal when non-empty. Replayed on
	// boot for the memory backend.
	JournalDir string `env:"JOURNAL_DIR" envDefault:"data/journal"`

	// NATS ingestion; disabled when NATSURL is empty.
	NATSURL      string `env:"NATS_URL"`
	NATSStream   string `env:"NATS_STREAM" envDefault:"VITALS"`
	NATSSubject  string `env:"NATS_SUBJECT" envDefault:"vitals.records.write"`
	NATSConsumer string `env:"NATS_CONSUMER" envDefault:"vitals-server"`

	// IngestRate caps POST /v1/records per second; burst is twice the rate.
	IngestRate float64 `env:"INGEST_RATE" envDefault:"100"`

	// Basic auth for /metrics; open when user is empty.
	MetricsUser string `env:"METRICS_USER"`
	MetricsPass string `env:"METRICS_PASS"`

	// OTLP gRPC endpoint; tracing disabled when empty.
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`

	// Analysis knobs.
	BaselineMinSamples int     `env:"BASELINE_MIN_SAMPLES" envDefault:"5"`
	BaselineK          float64 `env:"BASELINE_K" envDefault:"1.5"`
	AnomalyEvalDays    int     `env:"ANOMALY_EVAL_DAYS" envDefault:"30"`
	DriftThresholdStd  float64 `env:"DRIFT_THRESHOLD_STD" envDefault:"2.5"`
	SimCacheSize       int     `env:"SIM_CACHE_SIZE" envDefault:"256"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/vitalhub/vitals/internal/config"
	"github.com/vitalhub/vitals/internal/engine"
	"github.com/vitalhub/vitals/internal/ingest"
	"github.com/vitalhub/vitals/internal/metrics"
	"github.com/vitalhub/vitals/internal/store"
	"github.com/vitalhub/vitals/internal/wal"
	"github.com/vitalhub/vitals/pkg/otel"
)

type Server struct {
	engine  *engine.Engine
	metrics *metrics.Metrics
	limiter *rate.Limiter

	metricsAuth struct {
		enabled  bool
		user     string
		password string
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Tracing (optional)
	if cfg.OTLPEndpoint != "" {
		otelCfg := otel.DefaultConfig("vitals-server")
		otelCfg.CollectorEndpoint = cfg.OTLPEndpoint
		tp, err := otel.InitTracer(ctx, otelCfg)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer func() {
			if err := otel.Shutdown(context.Background(), tp); err != nil {
				log.Printf("Tracer shutdown error: %v", err)
			}
		}()
	}

	// Record store
	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemoryStore(cfg.StoreSnapshot)
	case "redis":
		st, err = store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to create Redis store: %v", err)
		}
	case "postgres":
		st, err = store.NewPostgresStore(cfg.PostgresConn)
		if err != nil {
			log.Fatalf("Failed to create Postgres store: %v", err)
		}
	default:
		log.Fatalf("Unknown STORE_BACKEND: %s", cfg.StoreBackend)
	}

	// Ingest journal + crash recovery. Replay is idempotent: the store
	// rejects dates it already has.
	var journal *wal.Journal
	if cfg.JournalDir != "" {
		entries, err := wal.Replay(cfg.JournalDir)
		if err != nil {
			log.Fatalf("Failed to replay ingest journal: %v", err)
		}
		replayed := 0
		for _, e := range entries {
			switch err := st.Append(ctx, e.Record); {
			case err == nil:
				replayed++
			case errors.Is(err, store.ErrDuplicateDate):
				// already persisted
			default:
				log.Fatalf("Journal replay failed for %s: %v", e.Record.Date, err)
			}
		}
		if replayed > 0 {
			log.Printf("Replayed %d journaled records", replayed)
		}

		journal, err = wal.NewJournal(cfg.JournalDir)
		if err != nil {
			log.Fatalf("Failed to open ingest journal: %v", err)
		}
	}

	m := metrics.New()

	engCfg := engine.DefaultConfig()
	engCfg.Baseline.MinSamples = cfg.BaselineMinSamples
	engCfg.Baseline.K = cfg.BaselineK
	engCfg.Anomaly.EvalDays = cfg.AnomalyEvalDays
	engCfg.Drift.ThresholdStd = cfg.DriftThresholdStd
	engCfg.SimCacheSize = cfg.SimCacheSize

	eng, err := engine.New(ctx, st, journal, m, engCfg)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	log.Printf("Engine ready: %d records in history", len(eng.Current().History))

	// NATS ingestion (optional)
	var consumer *ingest.Consumer
	if cfg.NATSURL != "" {
		consumer, err = ingest.NewConsumer(ctx, ingest.Config{
			URL:      cfg.NATSURL,
			Stream:   cfg.NATSStream,
			Subject:  cfg.NATSSubject,
			Consumer: cfg.NATSConsumer,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		if err := consumer.Start(ctx, eng); err != nil {
			log.Fatalf("Failed to start NATS consumer: %v", err)
		}
		log.Printf("NATS ingestion on %s", cfg.NATSSubject)
	}

	srv := &Server{
		engine:  eng,
		metrics: m,
		limiter: rate.NewLimiter(rate.Limit(cfg.IngestRate), int(cfg.IngestRate)*2),
	}
	srv.metricsAuth.enabled = cfg.MetricsUser != ""
	srv.metricsAuth.user = cfg.MetricsUser
	srv.metricsAuth.password = cfg.MetricsPass

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", srv.metricsHandler())
	mux.HandleFunc("/v1/records", srv.handleRecords)
	mux.HandleFunc("/v1/baselines", srv.handleBaselines)
	mux.HandleFunc("/v1/anomalies", srv.handleAnomalies)
	mux.HandleFunc("/v1/anomalies/timeline", srv.handleAnomalyTimeline)
	mux.HandleFunc("/v1/correlations", srv.handleCorrelations)
	mux.HandleFunc("/v1/simulate", srv.handleSimulate)
	mux.HandleFunc("/v1/model-info", srv.handleModelInfo)
	mux.HandleFunc("/v1/health-score", srv.handleHealthScore)
	mux.HandleFunc("/v1/trends", srv.handleTrends)
	mux.HandleFunc("/v1/latest", srv.handleLatest)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdown
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if consumer != nil {
		consumer.Close()
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			log.Printf("Error closing journal: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}

	log.Println("Server stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

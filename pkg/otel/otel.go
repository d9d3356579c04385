package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName       string
	ServiceVersion    string
	Environment       string
	CollectorEndpoint string
	SamplingRate      float64 // 0.0 to 1.0 (1.0 = always sample)
}

// DefaultConfig returns production defaults
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:       serviceName,
		ServiceVersion:    "0.1.0",
		Environment:       "production",
		CollectorEndpoint: "localhost:4317",
		SamplingRate:      1.0,
	}
}

// InitTracer initializes OpenTelemetry tracing
func InitTracer(ctx context.Context, config *Config) (*sdktrace.TracerProvider, error) {
	if config == nil {
		config = DefaultConfig("vitals")
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(config.CollectorEndpoint),
		otlptracegrpc.WithInsecure(), // Use WithTLSCredentials in production
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return tp.Shutdown(ctx)
}

// StartSpan is a convenience wrapper for starting a span with attributes
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName)

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	return ctx, span
}

// RecordError records an error on a span with optional message
func RecordError(span trace.Span, err error, message string) {
	if span == nil || err == nil {
		return
	}

	if message != "" {
		span.RecordError(err, trace.WithAttributes(
			attribute.String("error.message", message),
		))
	} else {
		span.RecordError(err)
	}

	span.SetStatus(codes.Error, err.Error())
}

// Common attribute keys
const (
	// Record attributes
	AttrRecordDate = attribute.Key("record.date")

	// Snapshot attributes
	AttrSnapshotVersion = attribute.Key("snapshot.version")
	AttrHistorySize     = attribute.Key("snapshot.history_size")
	AttrAnomalyCount    = attribute.Key("snapshot.anomaly_count")

	// Anomaly attributes
	AttrMetric   = attribute.Key("anomaly.metric")
	AttrSeverity = attribute.Key("anomaly.severity")

	// Correlation attributes
	AttrLagDays = attribute.Key("correlation.lag_days")

	// Simulation attributes
	AttrSleepDelta    = attribute.Key("simulate.sleep_hours_delta")
	AttrStepsDelta    = attribute.Key("simulate.steps_delta")
	AttrCaloriesDelta = attribute.Key("simulate.calories_in_delta")
	AttrDrift         = attribute.Key("simulate.out_of_domain")
	AttrCacheHit      = attribute.Key("simulate.cache_hit")
)

// SimulationAttributes builds the span attributes for one what-if query.
func SimulationAttributes(sleepDelta, stepsDelta, caloriesDelta float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSleepDelta.Float64(sleepDelta),
		AttrStepsDelta.Float64(stepsDelta),
		AttrCaloriesDelta.Float64(caloriesDelta),
	}
}

// SnapshotAttributes builds the span attributes for a rebuild.
func SnapshotAttributes(version uint64, historySize, anomalyCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSnapshotVersion.Int64(int64(version)),
		AttrHistorySize.Int(historySize),
		AttrAnomalyCount.Int(anomalyCount),
	}
}

package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const meterName = "github.com/searchforge/relevance"

// Metrics holds the application-level search metrics.
type Metrics struct {
	SearchCount        metric.Int64Counter
	SearchDuration     metric.Float64Histogram
	ZeroResultCount    metric.Int64Counter
	BreakerTransitions metric.Int64Counter
}

// Setup initializes OpenTelemetry
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		return tracerProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	searchCount, err := meter.Int64Counter(
		"search.request.count",
		metric.WithDescription("Number of search requests"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.request.duration",
		metric.WithDescription("Search request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	zeroResultCount, err := meter.Int64Counter(
		"search.zero_result.count",
		metric.WithDescription("Number of searches that matched nothing"),
	)
	if err != nil {
		return nil, err
	}

	breakerTransitions, err := meter.Int64Counter(
		"breaker.transition.count",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		SearchCount:        searchCount,
		SearchDuration:     searchDuration,
		ZeroResultCount:    zeroResultCount,
		BreakerTransitions: breakerTransitions,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(meterName)
	return tracer.Start(ctx, spanName)
}

// RecordSearchMetric records one completed search
func RecordSearchMetric(ctx context.Context, metrics *Metrics, intentType string, resultCount int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("search.intent", intentType),
	}

	metrics.SearchCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.SearchDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if resultCount == 0 {
		metrics.ZeroResultCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(ctx context.Context, metrics *Metrics, name, from, to string) {
	metrics.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.name", name),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	))
}

var (
	cacheCounterOnce sync.Once
	cacheHitCounter  metric.Int64Counter
	cacheMissCounter metric.Int64Counter
)

func initCacheCounters() {
	meter := otel.Meter(meterName)
	if hit, err := meter.Int64Counter(
		"cache.hit.count",
		metric.WithDescription("Number of cache hits"),
	); err == nil {
		cacheHitCounter = hit
	}
	if miss, err := meter.Int64Counter(
		"cache.miss.count",
		metric.WithDescription("Number of cache misses"),
	); err == nil {
		cacheMissCounter = miss
	}
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context) {
	cacheCounterOnce.Do(initCacheCounters)
	if cacheHitCounter != nil {
		cacheHitCounter.Add(ctx, 1)
	}
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context) {
	cacheCounterOnce.Do(initCacheCounters)
	if cacheMissCounter != nil {
		cacheMissCounter.Add(ctx, 1)
	}
}

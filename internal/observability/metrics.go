package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache kinds reported with lookup metrics.
const (
	CacheEntity        = "entity"
	CachePropertyPath  = "property_path"
	CacheAggregatePath = "aggregate_path"
)

// MappingMetrics holds metrics for mapping metadata resolution.
// A nil *MappingMetrics is valid and records nothing.
type MappingMetrics struct {
	cacheLookups     metric.Int64Counter
	entitiesBuilt    metric.Int64Counter
	entityBuildFails metric.Int64Counter
	evaluations      metric.Int64Counter
	pathLength       metric.Int64Histogram
}

// NewMappingMetrics creates the instruments on the given provider, or on the
// global provider when mp is nil.
func NewMappingMetrics(mp metric.MeterProvider) (*MappingMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("relmap/mapping")

	cacheLookups, err := meter.Int64Counter(
		"relmap.cache.lookups",
		metric.WithDescription("Mapping cache lookups by cache kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	entitiesBuilt, err := meter.Int64Counter(
		"relmap.entities.built",
		metric.WithDescription("Number of persistent entities built from Go types"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entities built counter: %w", err)
	}

	entityBuildFails, err := meter.Int64Counter(
		"relmap.entities.failed",
		metric.WithDescription("Number of Go types that failed to map to a persistent entity"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity failures counter: %w", err)
	}

	evaluations, err := meter.Int64Counter(
		"relmap.expressions.evaluated",
		metric.WithDescription("Table and schema name expression evaluations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression evaluations counter: %w", err)
	}

	pathLength, err := meter.Int64Histogram(
		"relmap.path.length",
		metric.WithDescription("Length of newly resolved property paths"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create path length histogram: %w", err)
	}

	return &MappingMetrics{
		cacheLookups:     cacheLookups,
		entitiesBuilt:    entitiesBuilt,
		entityBuildFails: entityBuildFails,
		evaluations:      evaluations,
		pathLength:       pathLength,
	}, nil
}

// RecordCacheLookup records a cache hit or miss for the given cache kind.
func (m *MappingMetrics) RecordCacheLookup(ctx context.Context, kind string, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", kind),
		attribute.Bool("hit", hit),
	))
}

// RecordEntityBuilt records the outcome of building an entity for a type.
func (m *MappingMetrics) RecordEntityBuilt(ctx context.Context, typeName string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", typeName))
	if err != nil {
		m.entityBuildFails.Add(ctx, 1, attrs)
		return
	}
	m.entitiesBuilt.Add(ctx, 1, attrs)
}

// RecordEvaluation records a name expression evaluation.
func (m *MappingMetrics) RecordEvaluation(ctx context.Context, target string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("outcome", outcome),
	))
}

// RecordPathLength records the length of a newly resolved property path.
func (m *MappingMetrics) RecordPathLength(ctx context.Context, length int) {
	if m == nil {
		return
	}
	m.pathLength.Record(ctx, int64(length))
}

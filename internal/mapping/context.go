package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"relmap/internal/expression"
	"relmap/internal/naming"
	"relmap/internal/observability"
	"relmap/internal/sqlutil"
)

const tracerName = "relmap/mapping"

// Config configures a Context. Nil NamingStrategy, Evaluator and Logger fall
// back to defaults. ForceQuote is taken as is, so start from DefaultConfig to
// quote names.
type Config struct {
	// NamingStrategy derives table, schema and column names.
	NamingStrategy naming.Strategy
	// Evaluator evaluates #{...} table and schema expressions.
	Evaluator expression.Evaluator
	// Variables supplies the expression variables at evaluation time.
	Variables func() map[string]any
	// ForceQuote quotes all derived and explicit names.
	ForceQuote bool
	Logger     *slog.Logger
	Metrics    *observability.MappingMetrics
}

// DefaultConfig returns a configuration that quotes all names.
func DefaultConfig() Config {
	return Config{ForceQuote: true}
}

// Context builds and caches persistent entities, property paths and
// aggregate paths. Every cache publishes the first instance computed for a
// key, so lookups with equal keys return the same pointer. Safe for
// concurrent use.
type Context struct {
	naming     naming.Strategy
	evaluator  expression.Evaluator
	variables  func() map[string]any
	forceQuote bool
	logger     *slog.Logger
	metrics    *observability.MappingMetrics
	tables     *naming.TableRegistry

	entities       sync.Map // reflect.Type -> *PersistentEntity
	propertyPaths  sync.Map // pathKey -> *PersistentPropertyPath
	aggregatePaths sync.Map // pathKey -> *AggregatePath
}

// pathKey identifies a path by root type and dot path; root paths use "".
type pathKey struct {
	root    reflect.Type
	dotPath string
}

// NewContext creates a mapping context.
func NewContext(cfg Config) *Context {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	strategy := cfg.NamingStrategy
	if strategy == nil {
		strategy = naming.New(naming.DefaultConfig(), logger)
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = expression.NewCELEvaluator(logger)
	}
	return &Context{
		naming:     strategy,
		evaluator:  evaluator,
		variables:  cfg.Variables,
		forceQuote: cfg.ForceQuote,
		logger:     logger,
		metrics:    cfg.Metrics,
		tables:     naming.NewTableRegistry(logger),
	}
}

// NamingStrategy returns the strategy used for derived names.
func (c *Context) NamingStrategy() naming.Strategy { return c.naming }

// PersistentEntity returns the entity for t, or nil without error when t is a
// simple value type such as int, string or time.Time. Pointer types resolve
// to their element type.
func (c *Context) PersistentEntity(t reflect.Type) (*PersistentEntity, error) {
	if t == nil {
		return nil, nil
	}
	t = indirect(t)
	if isSimpleType(t) {
		return nil, nil
	}

	ctx := context.Background()
	if cached, ok := c.entities.Load(t); ok {
		c.metrics.RecordCacheLookup(ctx, observability.CacheEntity, true)
		return cached.(*PersistentEntity), nil
	}
	c.metrics.RecordCacheLookup(ctx, observability.CacheEntity, false)

	entity, err := c.buildEntity(ctx, t)
	c.metrics.RecordEntityBuilt(ctx, t.String(), err)
	if err != nil {
		return nil, err
	}

	actual, loaded := c.entities.LoadOrStore(t, entity)
	if !loaded {
		c.registerTable(entity)
	}
	return actual.(*PersistentEntity), nil
}

// RequiredPersistentEntity is PersistentEntity failing with ErrNotAnEntity
// for simple value types.
func (c *Context) RequiredPersistentEntity(t reflect.Type) (*PersistentEntity, error) {
	entity, err := c.PersistentEntity(t)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnEntity, t)
	}
	return entity, nil
}

func (c *Context) buildEntity(ctx context.Context, t reflect.Type) (entity *PersistentEntity, err error) {
	_, span := observability.StartSpan(ctx, tracerName, "mapping.build_entity",
		attribute.String("type", t.String()),
	)
	defer func() {
		observability.RecordSpanError(span, err)
		span.End()
	}()

	entity, err = newEntity(c, t)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("persistent entity built",
		slog.String("type", t.String()),
		slog.Int("properties", len(entity.properties)),
	)
	return entity, nil
}

// registerTable reports entities sharing a table. Expression names are not
// evaluated here since their variables may not be available yet.
func (c *Context) registerTable(e *PersistentEntity) {
	if expression.IsTemplate(e.tableOverride) || expression.IsTemplate(e.schemaOverride) {
		return
	}
	name, err := e.QualifiedTableName()
	if err != nil {
		return
	}
	c.tables.Register(name.ToSQL(sqlutil.Processing{}), e.Name())
}

// PersistentPropertyPath resolves a dot path such as "lineItems.sku" against
// the root type.
func (c *Context) PersistentPropertyPath(dotPath string, root reflect.Type) (*PersistentPropertyPath, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root type", ErrResolution)
	}
	root = indirect(root)
	key := pathKey{root: root, dotPath: dotPath}

	ctx := context.Background()
	if cached, ok := c.propertyPaths.Load(key); ok {
		c.metrics.RecordCacheLookup(ctx, observability.CachePropertyPath, true)
		return cached.(*PersistentPropertyPath), nil
	}
	c.metrics.RecordCacheLookup(ctx, observability.CachePropertyPath, false)

	if strings.TrimSpace(dotPath) == "" {
		return nil, fmt.Errorf("%w: empty property path on %s", ErrResolution, root)
	}
	entity, err := c.RequiredPersistentEntity(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %q on %s: %w", ErrResolution, dotPath, root, err)
	}

	segments := strings.Split(dotPath, ".")
	props := make([]*PersistentProperty, 0, len(segments))
	current := entity
	for i, segment := range segments {
		if current == nil {
			return nil, fmt.Errorf("%w: %q on %s: %s is not an entity", ErrResolution, dotPath, root, props[i-1])
		}
		prop, ok := current.Property(segment)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %s: no property %q on %s", ErrResolution, dotPath, root, segment, current.Name())
		}
		props = append(props, prop)
		if i < len(segments)-1 {
			if current, err = c.PersistentEntity(prop.ActualType()); err != nil {
				return nil, err
			}
		}
	}

	c.metrics.RecordPathLength(ctx, len(props))
	actual, _ := c.propertyPaths.LoadOrStore(key, &PersistentPropertyPath{
		root:       root,
		properties: props,
		dotPath:    dotPath,
	})
	return actual.(*PersistentPropertyPath), nil
}

// RootPath returns the aggregate path denoting the entity itself.
func (c *Context) RootPath(e *PersistentEntity) *AggregatePath {
	key := pathKey{root: e.typ}
	if cached, ok := c.aggregatePaths.Load(key); ok {
		c.metrics.RecordCacheLookup(context.Background(), observability.CacheAggregatePath, true)
		return cached.(*AggregatePath)
	}
	c.metrics.RecordCacheLookup(context.Background(), observability.CacheAggregatePath, false)
	actual, _ := c.aggregatePaths.LoadOrStore(key, &AggregatePath{context: c, rootType: e})
	return actual.(*AggregatePath)
}

// AggregatePath returns the aggregate path wrapping p.
func (c *Context) AggregatePath(p *PersistentPropertyPath) *AggregatePath {
	key := pathKey{root: p.root, dotPath: p.dotPath}
	if cached, ok := c.aggregatePaths.Load(key); ok {
		c.metrics.RecordCacheLookup(context.Background(), observability.CacheAggregatePath, true)
		return cached.(*AggregatePath)
	}
	c.metrics.RecordCacheLookup(context.Background(), observability.CacheAggregatePath, false)

	canonical, _ := c.propertyPaths.LoadOrStore(key, p)
	actual, _ := c.aggregatePaths.LoadOrStore(key, &AggregatePath{
		context: c,
		path:    canonical.(*PersistentPropertyPath),
	})
	return actual.(*AggregatePath)
}

// PathOf resolves dotPath against root; an empty dotPath yields the root path.
func (c *Context) PathOf(root reflect.Type, dotPath string) (*AggregatePath, error) {
	if dotPath == "" {
		entity, err := c.RequiredPersistentEntity(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolution, err)
		}
		return c.RootPath(entity), nil
	}
	pp, err := c.PersistentPropertyPath(dotPath, root)
	if err != nil {
		return nil, err
	}
	return c.AggregatePath(pp), nil
}

// evaluateName evaluates a table or schema name expression. A null or blank
// result fails instead of falling back to the derived name.
func (c *Context) evaluateName(target, template string) (string, error) {
	vars := make(map[string]any)
	if c.variables != nil {
		maps.Copy(vars, c.variables())
	}

	value, ok, err := c.evaluator.Evaluate(template, vars)
	c.metrics.RecordEvaluation(context.Background(), target, err)
	if err != nil {
		return "", fmt.Errorf("%w: %s name %q: %w", ErrResolution, target, template, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s name %q evaluated to null", ErrResolution, target, template)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %s name %q evaluated to an empty name", ErrResolution, target, template)
	}
	return value, nil
}

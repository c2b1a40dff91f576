package mapping

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/internal/naming"
	"relmap/internal/sqlutil"
)

type countingEvaluator struct {
	calls atomic.Int32
	fail  atomic.Bool
	value string
}

func (e *countingEvaluator) Evaluate(string, map[string]any) (string, bool, error) {
	e.calls.Add(1)
	if e.fail.Load() {
		return "", false, errors.New("variables unavailable")
	}
	return e.value, true, nil
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name     string
		tag      string
		expected propertyOptions
		wantErr  bool
	}{
		{name: "empty", tag: "", expected: propertyOptions{}},
		{name: "transient", tag: "-", expected: propertyOptions{transient: true}},
		{name: "id with column", tag: "id,column=invoice_no", expected: propertyOptions{id: true, column: "invoice_no"}},
		{name: "embedded prefix", tag: "embedded=ship_", expected: propertyOptions{embedded: true, prefix: "ship_"}},
		{name: "embedded without prefix", tag: "embedded", expected: propertyOptions{embedded: true}},
		{name: "set and idcolumn", tag: " set , idcolumn=order_ref ", expected: propertyOptions{set: true, idColumn: "order_ref"}},
		{name: "readonly keycolumn", tag: "readonly,keycolumn=pos", expected: propertyOptions{readOnly: true, keyColumn: "pos"}},
		{name: "missing value", tag: "column=", wantErr: true},
		{name: "unknown", tag: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, opts)
		})
	}
}

func TestPersistentEntitySimpleTypes(t *testing.T) {
	ctx, _ := newTestContext(t, nil)

	for _, typ := range []reflect.Type{
		reflect.TypeOf(0),
		reflect.TypeOf(""),
		reflect.TypeOf(time.Time{}),
		reflect.TypeOf(&time.Time{}),
		nil,
	} {
		entity, err := ctx.PersistentEntity(typ)
		require.NoError(t, err)
		assert.Nil(t, entity)
	}

	_, err := ctx.RequiredPersistentEntity(reflect.TypeOf(0))
	assert.ErrorIs(t, err, ErrNotAnEntity)
}

func TestPersistentEntityProperties(t *testing.T) {
	ctx, _ := newTestContext(t, nil)

	entity, err := ctx.RequiredPersistentEntity(reflect.TypeOf(&Order{}))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(Order{}), entity.Type())
	assert.Equal(t, "mapping.Order", entity.Name())
	assert.Equal(t, "PersistentEntity<mapping.Order>", entity.String())

	var names []string
	for _, p := range entity.Properties() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{
		"id", "customer", "shipping", "lineItems", "notes", "tags",
		"invoice", "created", "signature", "audit",
	}, names)

	id, err := entity.RequiredIDProperty()
	require.NoError(t, err)
	assert.Equal(t, "ID", id.FieldName())
	assert.True(t, id.IsIDProperty())

	tests := []struct {
		name       string
		entity     bool
		embedded   bool
		collection bool
		isMap      bool
		qualified  bool
		ordered    bool
		writable   bool
		actual     reflect.Type
	}{
		{name: "customer", actual: reflect.TypeOf(""), writable: false},
		{name: "shipping", entity: true, embedded: true, writable: true, actual: reflect.TypeOf(Address{})},
		{name: "lineItems", entity: true, collection: true, qualified: true, ordered: true, writable: true, actual: reflect.TypeOf(LineItem{})},
		{name: "notes", entity: true, isMap: true, qualified: true, writable: true, actual: reflect.TypeOf(Note{})},
		{name: "tags", entity: true, collection: true, writable: true, actual: reflect.TypeOf(Tag{})},
		{name: "invoice", entity: true, writable: true, actual: reflect.TypeOf(Invoice{})},
		{name: "created", writable: true, actual: reflect.TypeOf(time.Time{})},
		{name: "signature", writable: true, actual: reflect.TypeOf([]byte(nil))},
		{name: "audit", entity: true, embedded: true, writable: true, actual: reflect.TypeOf(Audit{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := entity.Property(tt.name)
			require.True(t, ok)
			assert.Same(t, entity, p.Owner())
			assert.Equal(t, tt.entity, p.IsEntity(), "entity")
			assert.Equal(t, tt.embedded, p.IsEmbedded(), "embedded")
			assert.Equal(t, tt.collection, p.IsCollectionLike(), "collection")
			assert.Equal(t, tt.isMap, p.IsMap(), "map")
			assert.Equal(t, tt.qualified, p.IsQualified(), "qualified")
			assert.Equal(t, tt.ordered, p.IsOrdered(), "ordered")
			assert.Equal(t, tt.writable, p.IsWritable(), "writable")
			assert.Equal(t, tt.actual, p.ActualType())
		})
	}

	_, ok := entity.Property("ignored")
	assert.False(t, ok)
	_, ok = entity.Property("internal")
	assert.False(t, ok)
}

func TestPersistentEntityInvalidMappings(t *testing.T) {
	ctx, _ := newTestContext(t, nil)

	for _, typ := range []reflect.Type{
		reflect.TypeOf(BadTag{}),
		reflect.TypeOf(BadEmbedded{}),
		reflect.TypeOf(TwoIDs{}),
	} {
		t.Run(typ.Name(), func(t *testing.T) {
			_, err := ctx.PersistentEntity(typ)
			assert.ErrorIs(t, err, ErrInvalidMapping)
		})
	}
}

func TestEntityTableNames(t *testing.T) {
	tests := []struct {
		name       string
		typ        reflect.Type
		forceQuote bool
		schema     string
		expected   sqlutil.Identifier
		postgres   string
	}{
		{
			name:       "derived quoted",
			typ:        reflect.TypeOf(Order{}),
			forceQuote: true,
			expected:   sqlutil.Derived("order", true),
			postgres:   `"order"`,
		},
		{
			name:     "derived unquoted",
			typ:      reflect.TypeOf(LineItem{}),
			expected: sqlutil.Derived("line_item", false),
			postgres: "line_item",
		},
		{
			name:       "expression",
			typ:        reflect.TypeOf(FooTable{}),
			forceQuote: true,
			expected:   sqlutil.Quoted("foo"),
			postgres:   `"foo"`,
		},
		{
			name:     "expression unquoted",
			typ:      reflect.TypeOf(FooTable{}),
			expected: sqlutil.Unquoted("foo"),
			postgres: "foo",
		},
		{
			name:       "plain override with schema",
			typ:        reflect.TypeOf(PlainTable{}),
			forceQuote: true,
			expected:   sqlutil.From(sqlutil.Quoted("archive"), sqlutil.Quoted("orders")),
			postgres:   `"archive"."orders"`,
		},
		{
			name:       "default schema",
			typ:        reflect.TypeOf(Invoice{}),
			forceQuote: true,
			schema:     "sales",
			expected:   sqlutil.From(sqlutil.Derived("sales", true), sqlutil.Derived("invoice", true)),
			postgres:   `"sales"."invoice"`,
		},
		{
			name:       "schema expression",
			typ:        reflect.TypeOf(TenantOrder{}),
			forceQuote: true,
			expected:   sqlutil.From(sqlutil.Quoted("acme"), sqlutil.Derived("tenant_order", true)),
			postgres:   `"acme"."tenant_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newTestContext(t, func(cfg *Config) {
				cfg.ForceQuote = tt.forceQuote
				cfg.NamingStrategy = naming.New(naming.Config{Schema: tt.schema}, quietLogger())
				cfg.Variables = func() map[string]any { return map[string]any{"tenant": "acme"} }
			})

			entity, err := ctx.RequiredPersistentEntity(tt.typ)
			require.NoError(t, err)
			qualified, err := entity.QualifiedTableName()
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(qualified), "got %s", qualified)
			assert.Equal(t, tt.postgres, qualified.ToSQL(sqlutil.Postgres))
			assert.Equal(t, tt.forceQuote, entity.IsForceQuote())
		})
	}
}

func TestEntityTableNameNullExpression(t *testing.T) {
	ctx, _ := newTestContext(t, nil)

	entity, err := ctx.RequiredPersistentEntity(reflect.TypeOf(NullTable{}))
	require.NoError(t, err)

	_, err = entity.TableName()
	assert.ErrorIs(t, err, ErrResolution)
	assert.Contains(t, err.Error(), "null")
}

func TestEntityTableNameExpressionEvaluatedPerCall(t *testing.T) {
	evaluator := &countingEvaluator{value: "tenant_orders"}
	evaluator.fail.Store(true)
	ctx, _ := newTestContext(t, func(cfg *Config) { cfg.Evaluator = evaluator })

	entity, err := ctx.RequiredPersistentEntity(reflect.TypeOf(FooTable{}))
	require.NoError(t, err)

	_, err = entity.TableName()
	assert.ErrorIs(t, err, ErrResolution)

	evaluator.fail.Store(false)
	first, err := entity.TableName()
	require.NoError(t, err)
	second, err := entity.TableName()
	require.NoError(t, err)

	assert.Equal(t, "tenant_orders", first.Reference())
	assert.True(t, first.Equal(second))
	assert.Equal(t, int32(3), evaluator.calls.Load())
}

func TestEntityTableNameFollowsVariables(t *testing.T) {
	var tenant atomic.Value
	tenant.Store("a")
	ctx, _ := newTestContext(t, func(cfg *Config) {
		cfg.Variables = func() map[string]any { return map[string]any{"tenant": tenant.Load()} }
	})

	entity, err := ctx.RequiredPersistentEntity(reflect.TypeOf(TenantTable{}))
	require.NoError(t, err)

	first, err := entity.TableName()
	require.NoError(t, err)
	assert.Equal(t, "orders_a", first.Reference())

	tenant.Store("b")
	second, err := entity.TableName()
	require.NoError(t, err)
	assert.Equal(t, "orders_b", second.Reference())

	qualified, err := entity.QualifiedTableName()
	require.NoError(t, err)
	assert.Equal(t, `"orders_b"`, qualified.ToSQL(sqlutil.Postgres))
}

func TestEntitySchemaNameCached(t *testing.T) {
	var tenant atomic.Value
	tenant.Store("acme")
	ctx, _ := newTestContext(t, func(cfg *Config) {
		cfg.Variables = func() map[string]any { return map[string]any{"tenant": tenant.Load()} }
	})

	entity, err := ctx.RequiredPersistentEntity(reflect.TypeOf(TenantOrder{}))
	require.NoError(t, err)

	first, err := entity.SchemaName()
	require.NoError(t, err)
	tenant.Store("globex")
	second, err := entity.SchemaName()
	require.NoError(t, err)

	assert.Equal(t, "acme", first.Reference())
	assert.Equal(t, "acme", second.Reference())
}

func TestContextForceQuoteTakenAsIs(t *testing.T) {
	zero := NewContext(Config{Logger: quietLogger()})
	entity, err := zero.RequiredPersistentEntity(reflect.TypeOf(ORDER{}))
	require.NoError(t, err)
	table, err := entity.TableName()
	require.NoError(t, err)
	assert.False(t, table.IsQuoted())

	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	quoted, err := NewContext(cfg).RequiredPersistentEntity(reflect.TypeOf(ORDER{}))
	require.NoError(t, err)
	table, err = quoted.TableName()
	require.NoError(t, err)
	assert.True(t, table.IsQuoted())
}

func TestEntityIDColumn(t *testing.T) {
	ctx, _ := newTestContext(t, nil)

	order, err := ctx.RequiredPersistentEntity(reflect.TypeOf(Order{}))
	require.NoError(t, err)
	column, err := order.IDColumn()
	require.NoError(t, err)
	assert.True(t, sqlutil.Derived("id", true).Equal(column))

	invoice, err := ctx.RequiredPersistentEntity(reflect.TypeOf(Invoice{}))
	require.NoError(t, err)
	column, err = invoice.IDColumn()
	require.NoError(t, err)
	assert.True(t, sqlutil.Quoted("invoice_no").Equal(column))

	item, err := ctx.RequiredPersistentEntity(reflect.TypeOf(LineItem{}))
	require.NoError(t, err)
	assert.False(t, item.HasIDProperty())
	assert.Nil(t, item.IDProperty())
	_, err = item.IDColumn()
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}

func TestTableCollisionWarning(t *testing.T) {
	ctx, buf := newTestContext(t, nil)

	_, err := ctx.RequiredPersistentEntity(reflect.TypeOf(Order{}))
	require.NoError(t, err)
	_, err = ctx.RequiredPersistentEntity(reflect.TypeOf(ORDER{}))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "table name collision detected")
	assert.Contains(t, buf.String(), "existing_source=mapping.Order")
}

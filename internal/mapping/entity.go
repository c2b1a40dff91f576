package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"relmap/internal/expression"
	"relmap/internal/sqlutil"
)

// PersistentEntity is the mapping metadata of a struct type: its properties,
// identifier and table.
type PersistentEntity struct {
	context        *Context
	typ            reflect.Type
	properties     []*PersistentProperty
	byName         map[string]*PersistentProperty
	idProperty     *PersistentProperty
	tableOverride  string
	schemaOverride string
	forceQuote     bool

	tableName  lazy[sqlutil.Identifier]
	schemaName lazy[sqlutil.Identifier]
}

func newEntity(c *Context, t reflect.Type) (*PersistentEntity, error) {
	e := &PersistentEntity{
		context:    c,
		typ:        t,
		byName:     make(map[string]*PersistentProperty),
		forceQuote: c.forceQuote,
	}

	var tagged []*PersistentProperty
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Name == "_" {
			if v, ok := field.Tag.Lookup(tableTagName); ok {
				e.tableOverride = v
			}
			if v, ok := field.Tag.Lookup(schemaTagName); ok {
				e.schemaOverride = v
			}
			continue
		}
		if !field.IsExported() {
			continue
		}

		opts, err := parseTag(field.Tag.Get(tagName))
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidMapping, t, field.Name, err)
		}
		if opts.transient {
			continue
		}

		prop, err := newProperty(e, field, opts)
		if err != nil {
			return nil, err
		}
		if _, dup := e.byName[prop.name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate property %q", ErrInvalidMapping, t, prop.name)
		}
		e.properties = append(e.properties, prop)
		e.byName[prop.name] = prop
		if prop.options.id {
			tagged = append(tagged, prop)
		}
	}

	switch len(tagged) {
	case 0:
		if prop, ok := e.byName["id"]; ok && prop.field.Name == "ID" {
			prop.options.id = true
			e.idProperty = prop
		}
	case 1:
		e.idProperty = tagged[0]
	default:
		return nil, fmt.Errorf("%w: %s: more than one id property", ErrInvalidMapping, t)
	}
	if e.idProperty != nil && (e.idProperty.isList || e.idProperty.isMap || e.idProperty.options.embedded) {
		return nil, fmt.Errorf("%w: %s: id property %s must be a single value", ErrInvalidMapping, t, e.idProperty.field.Name)
	}
	return e, nil
}

// Type returns the mapped struct type.
func (e *PersistentEntity) Type() reflect.Type { return e.typ }

// Name returns the package-qualified type name, e.g. "shop.Order".
func (e *PersistentEntity) Name() string { return e.typ.String() }

// IsForceQuote reports whether derived names of the entity are quoted.
func (e *PersistentEntity) IsForceQuote() bool { return e.forceQuote }

// Properties returns the mapped properties in declaration order.
func (e *PersistentEntity) Properties() []*PersistentProperty {
	out := make([]*PersistentProperty, len(e.properties))
	copy(out, e.properties)
	return out
}

// Property looks up a property by name.
func (e *PersistentEntity) Property(name string) (*PersistentProperty, bool) {
	p, ok := e.byName[name]
	return p, ok
}

// HasIDProperty reports whether the entity declares an identifier.
func (e *PersistentEntity) HasIDProperty() bool { return e.idProperty != nil }

// IDProperty returns the identifier property, or nil.
func (e *PersistentEntity) IDProperty() *PersistentProperty { return e.idProperty }

// RequiredIDProperty returns the identifier property or ErrMissingIdentifier.
func (e *PersistentEntity) RequiredIDProperty() (*PersistentProperty, error) {
	if e.idProperty == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingIdentifier, e.Name())
	}
	return e.idProperty, nil
}

// IDColumn returns the column of the identifier property.
func (e *PersistentEntity) IDColumn() (sqlutil.Identifier, error) {
	prop, err := e.RequiredIDProperty()
	if err != nil {
		return sqlutil.Identifier{}, err
	}
	return prop.ColumnName(), nil
}

// TableName returns the table of the entity. An explicit `table` tag wins over
// the naming strategy. Tags containing #{...} are evaluated as expressions on
// every call; derived and literal names are computed once.
func (e *PersistentEntity) TableName() (sqlutil.Identifier, error) {
	if expression.IsTemplate(e.tableOverride) {
		name, err := e.context.evaluateName("table", e.tableOverride)
		if err != nil {
			return sqlutil.Identifier{}, err
		}
		return e.explicitIdentifier(name), nil
	}
	return e.tableName.get(func() (sqlutil.Identifier, error) {
		if strings.TrimSpace(e.tableOverride) == "" {
			return sqlutil.Derived(e.context.naming.TableName(e.typ), e.forceQuote), nil
		}
		return e.explicitIdentifier(e.tableOverride), nil
	})
}

// SchemaName returns the schema of the entity, or an empty identifier when
// neither a `schema` tag nor a default schema is configured. The first
// successful result is cached, expressions included.
func (e *PersistentEntity) SchemaName() (sqlutil.Identifier, error) {
	return e.schemaName.get(func() (sqlutil.Identifier, error) {
		if strings.TrimSpace(e.schemaOverride) == "" {
			if schema := strings.TrimSpace(e.context.naming.Schema()); schema != "" {
				return sqlutil.Derived(schema, e.forceQuote), nil
			}
			return sqlutil.Identifier{}, nil
		}
		name, err := e.resolveOverride("schema", e.schemaOverride)
		if err != nil {
			return sqlutil.Identifier{}, err
		}
		return e.explicitIdentifier(name), nil
	})
}

// QualifiedTableName returns schema.table, or the bare table without a schema.
func (e *PersistentEntity) QualifiedTableName() (sqlutil.Identifier, error) {
	schema, err := e.SchemaName()
	if err != nil {
		return sqlutil.Identifier{}, err
	}
	table, err := e.TableName()
	if err != nil {
		return sqlutil.Identifier{}, err
	}
	if schema.IsEmpty() {
		return table, nil
	}
	return sqlutil.From(schema, table), nil
}

func (e *PersistentEntity) resolveOverride(target, value string) (string, error) {
	if !expression.IsTemplate(value) {
		return value, nil
	}
	return e.context.evaluateName(target, value)
}

// explicitIdentifier turns a user-supplied name into an identifier, quoted
// when the entity quotes its names.
func (e *PersistentEntity) explicitIdentifier(name string) sqlutil.Identifier {
	if e.forceQuote {
		return sqlutil.Quoted(name)
	}
	return sqlutil.Unquoted(name)
}

func (e *PersistentEntity) String() string {
	return "PersistentEntity<" + e.Name() + ">"
}

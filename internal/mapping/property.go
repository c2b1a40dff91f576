package mapping

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"

	"relmap/internal/naming"
	"relmap/internal/sqlutil"
)

// Struct tags read from mapped types.
const (
	tagName       = "rel"
	tableTagName  = "table"
	schemaTagName = "schema"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// PersistentProperty is one mapped struct field of a PersistentEntity.
type PersistentProperty struct {
	owner    *PersistentEntity
	field    reflect.StructField
	name     string
	actual   reflect.Type
	options  propertyOptions
	isList   bool
	isMap    bool
	isEntity bool
	column   sqlutil.Identifier
}

type propertyOptions struct {
	transient bool
	id        bool
	readOnly  bool
	embedded  bool
	set       bool
	prefix    string
	column    string
	idColumn  string
	keyColumn string
}

// parseTag parses a `rel` struct tag such as `rel:"column=sku_code,readonly"`.
func parseTag(tag string) (propertyOptions, error) {
	var opts propertyOptions
	if strings.TrimSpace(tag) == "" {
		return opts, nil
	}
	for _, raw := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(strings.TrimSpace(raw), "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "":
			continue
		case "-":
			opts.transient = true
		case "id":
			opts.id = true
		case "readonly":
			opts.readOnly = true
		case "set":
			opts.set = true
		case "embedded":
			opts.embedded = true
			opts.prefix = value
		case "column", "idcolumn", "keycolumn":
			if !hasValue || value == "" {
				return opts, fmt.Errorf("option %q requires a value", key)
			}
			switch key {
			case "column":
				opts.column = value
			case "idcolumn":
				opts.idColumn = value
			default:
				opts.keyColumn = value
			}
		default:
			return opts, fmt.Errorf("unknown option %q", key)
		}
	}
	return opts, nil
}

// isSimpleType reports whether t maps to a single column rather than an entity.
func isSimpleType(t reflect.Type) bool {
	t = indirect(t)
	if t.Kind() != reflect.Struct {
		return true
	}
	if t == timeType {
		return true
	}
	return t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType)
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// elementType unwraps pointers, slices, arrays and maps down to the element
// type. Byte slices are binary values, not collections.
func elementType(t reflect.Type) (actual reflect.Type, list, isMap bool) {
	t = indirect(t)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return t, false, false
		}
		return indirect(t.Elem()), true, false
	case reflect.Map:
		return indirect(t.Elem()), false, true
	}
	return t, false, false
}

func newProperty(owner *PersistentEntity, field reflect.StructField, opts propertyOptions) (*PersistentProperty, error) {
	actual, list, isMap := elementType(field.Type)
	p := &PersistentProperty{
		owner:   owner,
		field:   field,
		name:    naming.ToLowerCamel(field.Name),
		actual:  actual,
		options: opts,
		isList:  list,
		isMap:   isMap,
	}
	p.isEntity = !isSimpleType(actual)

	if field.Anonymous && p.isEntity && !list && !isMap {
		p.options.embedded = true
	}
	if p.options.embedded {
		if !p.isEntity || list || isMap {
			return nil, fmt.Errorf("%w: %s.%s: only single struct values can be embedded", ErrInvalidMapping, owner.Name(), field.Name)
		}
	}
	if p.options.set && !list {
		return nil, fmt.Errorf("%w: %s.%s: set applies to slices and arrays only", ErrInvalidMapping, owner.Name(), field.Name)
	}
	if p.options.keyColumn != "" && !p.IsQualified() {
		return nil, fmt.Errorf("%w: %s.%s: keycolumn applies to maps and ordered lists only", ErrInvalidMapping, owner.Name(), field.Name)
	}

	if p.options.column != "" {
		p.column = owner.explicitIdentifier(p.options.column)
	} else {
		p.column = sqlutil.Derived(owner.context.naming.ColumnName(p.name), owner.forceQuote)
	}
	return p, nil
}

// Name returns the property name: the field name with a lowercased leading word.
func (p *PersistentProperty) Name() string { return p.name }

// FieldName returns the Go struct field name.
func (p *PersistentProperty) FieldName() string { return p.field.Name }

// Index returns the field index sequence for reflect.Value.FieldByIndex.
func (p *PersistentProperty) Index() []int { return p.field.Index }

// Owner returns the entity declaring the property.
func (p *PersistentProperty) Owner() *PersistentEntity { return p.owner }

// Type returns the declared field type.
func (p *PersistentProperty) Type() reflect.Type { return p.field.Type }

// ActualType returns the element type for collections and maps, the declared
// type otherwise. Pointers are dereferenced.
func (p *PersistentProperty) ActualType() reflect.Type { return p.actual }

// IsEntity reports whether the actual type maps to an entity rather than a column.
func (p *PersistentProperty) IsEntity() bool { return p.isEntity }

// IsEmbedded reports whether the property's columns live in the owner's table.
func (p *PersistentProperty) IsEmbedded() bool { return p.options.embedded }

// EmbeddedPrefix returns the column prefix of an embedded property.
func (p *PersistentProperty) EmbeddedPrefix() string {
	if !p.options.embedded {
		return ""
	}
	return p.options.prefix
}

// IsCollectionLike reports slices and arrays other than byte slices.
func (p *PersistentProperty) IsCollectionLike() bool { return p.isList }

// IsMap reports map-typed properties.
func (p *PersistentProperty) IsMap() bool { return p.isMap }

// IsQualified reports properties whose elements carry a key: maps and lists.
func (p *PersistentProperty) IsQualified() bool {
	return p.isMap || (p.isList && !p.options.set)
}

// IsOrdered reports lists whose element order is persisted.
func (p *PersistentProperty) IsOrdered() bool {
	return p.isList && !p.options.set
}

// IsIDProperty reports whether the property is the entity identifier.
func (p *PersistentProperty) IsIDProperty() bool { return p.options.id }

// IsWritable reports whether the property is written on insert and update.
func (p *PersistentProperty) IsWritable() bool { return !p.options.readOnly }

// ColumnName returns the column the property maps to, without embedded prefixes.
func (p *PersistentProperty) ColumnName() sqlutil.Identifier { return p.column }

// Equal reports whether both properties are the same field of the same type.
func (p *PersistentProperty) Equal(other *PersistentProperty) bool {
	if p == other {
		return true
	}
	if p == nil || other == nil {
		return false
	}
	return p.owner.typ == other.owner.typ && p.name == other.name
}

func (p *PersistentProperty) String() string {
	return p.owner.Name() + "." + p.name
}

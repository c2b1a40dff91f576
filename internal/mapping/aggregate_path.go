package mapping

import (
	"fmt"

	"relmap/internal/sqlutil"
)

// AggregatePath is a position inside an aggregate: either the root entity
// itself or a property path starting at the root. Exactly one of rootType
// and path is set. Obtain instances from a Context, which returns the same
// pointer for equal paths.
type AggregatePath struct {
	context  *Context
	rootType *PersistentEntity
	path     *PersistentPropertyPath
}

// IsRoot reports whether the path denotes the aggregate root.
func (a *AggregatePath) IsRoot() bool { return a.path == nil }

// Length returns the number of properties in the path; 0 for the root.
func (a *AggregatePath) Length() int {
	if a.IsRoot() {
		return 0
	}
	return a.path.Len()
}

// ParentPath returns the path without its leaf property. For a path of
// length one that is the root path of the owning entity.
func (a *AggregatePath) ParentPath() (*AggregatePath, error) {
	if a.IsRoot() {
		return nil, fmt.Errorf("%w: the parent path of a root path is not defined", ErrInvalidState)
	}
	return a.parent(), nil
}

func (a *AggregatePath) parent() *AggregatePath {
	if a.path.Len() == 1 {
		return a.context.RootPath(a.path.Leaf().Owner())
	}
	return a.context.AggregatePath(a.path.Parent())
}

// LeafEntity returns the entity at the end of the path: the root entity for
// root paths, the entity of the leaf's actual type otherwise. It returns nil
// without error when the leaf is a simple value.
func (a *AggregatePath) LeafEntity() (*PersistentEntity, error) {
	if a.IsRoot() {
		return a.rootType, nil
	}
	return a.context.PersistentEntity(a.path.Leaf().ActualType())
}

// RequiredLeafEntity is LeafEntity failing with ErrInvalidState when the leaf
// is not an entity.
func (a *AggregatePath) RequiredLeafEntity() (*PersistentEntity, error) {
	entity, err := a.LeafEntity()
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: couldn't resolve leaf persistent entity for type %s", ErrInvalidState, a.path.Leaf().ActualType())
	}
	return entity, nil
}

// RequiredIDProperty returns the identifier property of the leaf entity.
func (a *AggregatePath) RequiredIDProperty() (*PersistentProperty, error) {
	if a.IsRoot() {
		return a.rootType.RequiredIDProperty()
	}
	entity, err := a.RequiredLeafEntity()
	if err != nil {
		return nil, err
	}
	return entity.RequiredIDProperty()
}

// IsEmbedded reports whether the leaf is an embedded property.
func (a *AggregatePath) IsEmbedded() bool {
	return !a.IsRoot() && a.path.Leaf().IsEmbedded()
}

// IsEntity reports whether the path points at an entity. Root paths always do.
func (a *AggregatePath) IsEntity() bool {
	return a.IsRoot() || a.path.Leaf().IsEntity()
}

// IsMap reports whether the leaf is a map.
func (a *AggregatePath) IsMap() bool {
	return !a.IsRoot() && a.path.Leaf().IsMap()
}

// IsQualified reports whether the leaf elements carry a key (map or list).
func (a *AggregatePath) IsQualified() bool {
	return !a.IsRoot() && a.path.Leaf().IsQualified()
}

// IsCollectionLike reports whether the leaf is a slice or array.
func (a *AggregatePath) IsCollectionLike() bool {
	return !a.IsRoot() && a.path.Leaf().IsCollectionLike()
}

// IsOrdered reports whether the leaf is an ordered list.
func (a *AggregatePath) IsOrdered() bool {
	return !a.IsRoot() && a.path.Leaf().IsOrdered()
}

// IsMultiValued reports whether the path can yield more than one value per
// aggregate root, i.e. whether the leaf or any ancestor is a collection or
// qualified property.
func (a *AggregatePath) IsMultiValued() bool {
	if a.IsRoot() {
		return false
	}
	leaf := a.path.Leaf()
	return leaf.IsCollectionLike() || leaf.IsQualified() || a.parent().IsMultiValued()
}

// IsWritable reports whether every property along the path is writable.
func (a *AggregatePath) IsWritable() bool {
	return a.IsRoot() || IsWritable(a.path)
}

// Append extends the path by a property of its leaf entity.
func (a *AggregatePath) Append(p *PersistentProperty) (*AggregatePath, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: cannot append a nil property to %s", ErrResolution, a)
	}

	var (
		pp  *PersistentPropertyPath
		err error
	)
	if a.IsRoot() {
		pp, err = a.context.PersistentPropertyPath(p.Name(), a.rootType.Type())
	} else {
		pp, err = a.context.PersistentPropertyPath(a.path.DotPath()+"."+p.Name(), a.path.Root())
	}
	if err != nil {
		return nil, err
	}
	if !pp.Leaf().Equal(p) {
		return nil, fmt.Errorf("%w: %s does not belong to the leaf of %s", ErrResolution, p, a)
	}
	return a.context.AggregatePath(pp), nil
}

// RequiredLeafProperty returns the last property of the path.
func (a *AggregatePath) RequiredLeafProperty() (*PersistentProperty, error) {
	if a.IsRoot() {
		return nil, fmt.Errorf("%w: root path has no leaf property", ErrInvalidState)
	}
	return a.path.Leaf(), nil
}

// BaseProperty returns the first property of the path.
func (a *AggregatePath) BaseProperty() (*PersistentProperty, error) {
	if a.IsRoot() {
		return nil, fmt.Errorf("%w: root path has no base property", ErrInvalidState)
	}
	return a.path.Base(), nil
}

// RequiredPersistentPropertyPath returns the underlying property path.
func (a *AggregatePath) RequiredPersistentPropertyPath() (*PersistentPropertyPath, error) {
	if a.IsRoot() {
		return nil, fmt.Errorf("%w: root path has no property path", ErrInvalidState)
	}
	return a.path, nil
}

// DotPath returns the dot path of the properties, "" for the root.
func (a *AggregatePath) DotPath() string {
	if a.IsRoot() {
		return ""
	}
	return a.path.DotPath()
}

// String renders "AggregatePath[<root type>]/" for root paths and
// "AggregatePath[<root type>]<dot path>" otherwise.
func (a *AggregatePath) String() string {
	if a.IsRoot() {
		return "AggregatePath[" + a.rootType.Type().String() + "]/"
	}
	return "AggregatePath[" + a.path.Root().String() + "]" + a.path.DotPath()
}

// Equal reports whether both paths belong to the same context and denote the
// same position.
func (a *AggregatePath) Equal(other *AggregatePath) bool {
	if a == other {
		return true
	}
	if a == nil || other == nil || a.context != other.context {
		return false
	}
	if a.IsRoot() != other.IsRoot() {
		return false
	}
	if a.IsRoot() {
		return a.rootType.Type() == other.rootType.Type()
	}
	return a.path.Equal(other.path)
}

// TableOwningAncestor returns the nearest path, starting with this one, that
// owns a table: the root or a non-embedded entity.
func (a *AggregatePath) TableOwningAncestor() *AggregatePath {
	if a.IsRoot() || (a.IsEntity() && !a.IsEmbedded()) {
		return a
	}
	return a.parent().TableOwningAncestor()
}

// IDDefiningParentPath returns the nearest strict ancestor whose entity has
// an identifier, falling back to the root.
func (a *AggregatePath) IDDefiningParentPath() (*AggregatePath, error) {
	if a.IsRoot() {
		return nil, fmt.Errorf("%w: root path has no id defining parent", ErrInvalidState)
	}
	parent := a.parent()
	for !parent.IsRoot() {
		if !parent.IsEmbedded() {
			entity, err := parent.LeafEntity()
			if err != nil {
				return nil, err
			}
			if entity != nil && entity.HasIDProperty() {
				return parent, nil
			}
		}
		parent = parent.parent()
	}
	return parent, nil
}

// EmbeddedPrefix returns the accumulated column prefix of nested embedded
// properties ending at this path.
func (a *AggregatePath) EmbeddedPrefix() string {
	if !a.IsEmbedded() {
		return ""
	}
	return a.parent().EmbeddedPrefix() + a.path.Leaf().EmbeddedPrefix()
}

// ColumnName returns the leaf column including prefixes of enclosing embedded
// properties.
func (a *AggregatePath) ColumnName() (sqlutil.Identifier, error) {
	if a.IsRoot() {
		return sqlutil.Identifier{}, fmt.Errorf("%w: root path has no column", ErrInvalidState)
	}
	column := a.path.Leaf().ColumnName()
	prefix := a.parent().EmbeddedPrefix()
	if prefix == "" {
		return column, nil
	}
	return column.Transform(func(name string) string { return prefix + name }), nil
}

// ReverseColumnName returns the column in the leaf's table that references
// the id defining parent. Without an idcolumn tag it is derived from the
// strategy's table name for the parent type, ignoring table tags.
func (a *AggregatePath) ReverseColumnName() (sqlutil.Identifier, error) {
	if a.IsRoot() {
		return sqlutil.Identifier{}, fmt.Errorf("%w: root path has no reverse column", ErrInvalidState)
	}
	leaf := a.path.Leaf()
	if leaf.options.idColumn != "" {
		return leaf.owner.explicitIdentifier(leaf.options.idColumn), nil
	}

	idParent, err := a.IDDefiningParentPath()
	if err != nil {
		return sqlutil.Identifier{}, err
	}
	entity, err := idParent.RequiredLeafEntity()
	if err != nil {
		return sqlutil.Identifier{}, err
	}
	table := a.context.naming.TableName(entity.Type())
	return sqlutil.Derived(a.context.naming.ReverseColumnName(table), entity.IsForceQuote()), nil
}

// QualifierColumnName returns the column holding list indexes or map keys.
func (a *AggregatePath) QualifierColumnName() (sqlutil.Identifier, error) {
	if !a.IsQualified() {
		return sqlutil.Identifier{}, fmt.Errorf("%w: %s is not qualified", ErrInvalidState, a)
	}
	leaf := a.path.Leaf()
	if leaf.options.keyColumn != "" {
		return leaf.owner.explicitIdentifier(leaf.options.keyColumn), nil
	}
	reverse, err := a.ReverseColumnName()
	if err != nil {
		return sqlutil.Identifier{}, err
	}
	return sqlutil.Derived(a.context.naming.KeyColumnName(reverse.Reference()), reverse.IsQuoted()), nil
}

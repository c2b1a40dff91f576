// Package mapping maps Go aggregate types onto relational tables. It resolves
// property paths from an aggregate root to nested properties and derives the
// relational metadata (table, schema and column names, multi-valuedness,
// ordering) that query building needs.
package mapping

import "errors"

var (
	// ErrInvalidState reports an operation that is undefined for the path or
	// entity it was called on, such as the parent of a root path.
	ErrInvalidState = errors.New("invalid state")

	// ErrResolution reports a property path or name that cannot be resolved.
	ErrResolution = errors.New("resolution failed")

	// ErrMissingIdentifier reports an entity without an identifier property.
	ErrMissingIdentifier = errors.New("missing identifier property")

	// ErrNotAnEntity reports a type that cannot be mapped as an entity.
	ErrNotAnEntity = errors.New("not a persistent entity")

	// ErrInvalidMapping reports malformed mapping declarations on a struct.
	ErrInvalidMapping = errors.New("invalid mapping")
)

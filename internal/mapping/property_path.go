package mapping

import (
	"reflect"
	"strings"
)

// PersistentPropertyPath is a non-empty chain of properties starting at a
// root entity type. Obtain instances from a Context.
type PersistentPropertyPath struct {
	root       reflect.Type
	properties []*PersistentProperty
	dotPath    string
}

// Root returns the entity type the path starts at.
func (p *PersistentPropertyPath) Root() reflect.Type { return p.root }

// Len returns the number of properties in the path.
func (p *PersistentPropertyPath) Len() int { return len(p.properties) }

// Base returns the first property.
func (p *PersistentPropertyPath) Base() *PersistentProperty { return p.properties[0] }

// Leaf returns the last property.
func (p *PersistentPropertyPath) Leaf() *PersistentProperty { return p.properties[len(p.properties)-1] }

// Properties returns the properties from base to leaf.
func (p *PersistentPropertyPath) Properties() []*PersistentProperty {
	out := make([]*PersistentProperty, len(p.properties))
	copy(out, p.properties)
	return out
}

// DotPath returns the property names joined by dots, e.g. "lineItems.sku".
func (p *PersistentPropertyPath) DotPath() string { return p.dotPath }

// Parent returns the path without its leaf, or nil for a single-property path.
func (p *PersistentPropertyPath) Parent() *PersistentPropertyPath {
	if len(p.properties) <= 1 {
		return nil
	}
	props := p.properties[:len(p.properties)-1]
	return &PersistentPropertyPath{
		root:       p.root,
		properties: props,
		dotPath:    joinNames(props),
	}
}

// Equal reports whether both paths start at the same type and traverse the
// same properties.
func (p *PersistentPropertyPath) Equal(other *PersistentPropertyPath) bool {
	if p == other {
		return true
	}
	if p == nil || other == nil {
		return false
	}
	if p.root != other.root || len(p.properties) != len(other.properties) {
		return false
	}
	for i := range p.properties {
		if !p.properties[i].Equal(other.properties[i]) {
			return false
		}
	}
	return true
}

func (p *PersistentPropertyPath) String() string {
	return p.root.String() + "." + p.dotPath
}

// IsWritable reports whether every property along the path is writable.
// A nil path is writable.
func IsWritable(p *PersistentPropertyPath) bool {
	return p == nil || (p.Leaf().IsWritable() && IsWritable(p.Parent()))
}

func joinNames(props []*PersistentProperty) string {
	names := make([]string, len(props))
	for i, prop := range props {
		names[i] = prop.name
	}
	return strings.Join(names, ".")
}

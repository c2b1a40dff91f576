package sqlutil

import "strings"

type identifierKind int

const (
	kindUnquoted identifierKind = iota
	kindQuoted
	kindDerived
)

type identifierPart struct {
	name   string
	kind   identifierKind
	quoted bool
}

// Identifier is an immutable SQL name, optionally qualified (schema.table).
// The zero value is the empty identifier.
type Identifier struct {
	parts []identifierPart
}

// Quoted returns an explicit identifier that is always quoted and never case-normalized.
func Quoted(name string) Identifier {
	return Identifier{parts: []identifierPart{{name: name, kind: kindQuoted, quoted: true}}}
}

// Unquoted returns an explicit identifier rendered exactly as given.
func Unquoted(name string) Identifier {
	return Identifier{parts: []identifierPart{{name: name, kind: kindUnquoted}}}
}

// Derived returns an identifier computed by a naming strategy. Derived names
// follow the dialect's letter casing and are quoted when quote is true.
func Derived(name string, quote bool) Identifier {
	return Identifier{parts: []identifierPart{{name: name, kind: kindDerived, quoted: quote}}}
}

// From joins identifiers into one qualified identifier. Empty identifiers are skipped.
func From(ids ...Identifier) Identifier {
	var parts []identifierPart
	for _, id := range ids {
		parts = append(parts, id.parts...)
	}
	return Identifier{parts: parts}
}

// IsEmpty reports whether the identifier has no parts.
func (id Identifier) IsEmpty() bool {
	return len(id.parts) == 0
}

// IsComposite reports whether the identifier is qualified.
func (id Identifier) IsComposite() bool {
	return len(id.parts) > 1
}

// IsQuoted reports whether the last part is rendered with quotes.
func (id Identifier) IsQuoted() bool {
	if id.IsEmpty() {
		return false
	}
	return id.parts[len(id.parts)-1].quoted
}

// IsDerived reports whether the last part was computed by a naming strategy.
func (id Identifier) IsDerived() bool {
	if id.IsEmpty() {
		return false
	}
	return id.parts[len(id.parts)-1].kind == kindDerived
}

// Reference returns the raw name of the last part, without quoting or casing.
func (id Identifier) Reference() string {
	if id.IsEmpty() {
		return ""
	}
	return id.parts[len(id.parts)-1].name
}

// Parts splits a qualified identifier into its single-part components.
func (id Identifier) Parts() []Identifier {
	out := make([]Identifier, len(id.parts))
	for i, p := range id.parts {
		out[i] = Identifier{parts: []identifierPart{p}}
	}
	return out
}

// Transform returns a copy whose last part name is replaced by fn(name).
func (id Identifier) Transform(fn func(string) string) Identifier {
	if id.IsEmpty() {
		return id
	}
	parts := make([]identifierPart, len(id.parts))
	copy(parts, id.parts)
	last := &parts[len(parts)-1]
	last.name = fn(last.name)
	return Identifier{parts: parts}
}

// ToSQL renders the identifier for the given dialect processing.
func (id Identifier) ToSQL(p Processing) string {
	rendered := make([]string, len(id.parts))
	for i, part := range id.parts {
		name := part.name
		if part.kind == kindDerived {
			name = p.LetterCasing.Apply(name)
		}
		if part.quoted {
			name = p.Quoting.Apply(name)
		}
		rendered[i] = name
	}
	return strings.Join(rendered, ".")
}

// Equal reports structural equality.
func (id Identifier) Equal(other Identifier) bool {
	if len(id.parts) != len(other.parts) {
		return false
	}
	for i := range id.parts {
		if id.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// String renders the identifier with ANSI quoting and no case change.
func (id Identifier) String() string {
	return id.ToSQL(Processing{Quoting: QuotingANSI, LetterCasing: AsIs})
}

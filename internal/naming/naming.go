package naming

import (
	"log/slog"
	"reflect"
	"strings"
	"unicode"
)

// Strategy converts Go types and property names into their default relational names.
type Strategy interface {
	// TableName returns the table name for a struct type.
	TableName(t reflect.Type) string
	// Schema returns the default schema, or "" for none.
	Schema() string
	// ColumnName returns the column name for a property name.
	ColumnName(propertyName string) string
	// ReverseColumnName returns the column in a child table that references
	// the owning table.
	ReverseColumnName(ownerTable string) string
	// KeyColumnName returns the column holding list indexes or map keys.
	KeyColumnName(reverseColumn string) string
}

// Namer is the default Strategy: snake_case names, optional pluralized tables.
type Namer struct {
	config   Config
	logger   *slog.Logger
	reserved map[string]bool
}

var _ Strategy = (*Namer)(nil)

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	reserved := make(map[string]bool, len(cfg.ReservedWords))
	for _, word := range cfg.ReservedWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			reserved[word] = true
		}
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		reserved: reserved,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// TableName converts a type name to a table name.
// Example: OrderItem -> "order_item", or "order_items" when pluralizing.
func (n *Namer) TableName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := ToSnakeCase(typeBaseName(t))
	if n.config.PluralizeTables {
		name = n.Pluralize(name)
	}
	n.warnIfReserved("table", name)
	return name
}

// Schema returns the configured default schema.
func (n *Namer) Schema() string {
	return n.config.Schema
}

// ColumnName converts a property name to a column name.
// Example: "lineItems" -> "line_items"
func (n *Namer) ColumnName(propertyName string) string {
	name := ToSnakeCase(propertyName)
	n.warnIfReserved("column", name)
	return name
}

// ReverseColumnName names the back-reference column after the owning table.
func (n *Namer) ReverseColumnName(ownerTable string) string {
	return ownerTable
}

// KeyColumnName appends "_key" to the reverse column name.
func (n *Namer) KeyColumnName(reverseColumn string) string {
	return reverseColumn + "_key"
}

// IsReserved reports whether name is an SQL keyword or a configured reserved word.
func (n *Namer) IsReserved(name string) bool {
	lower := strings.ToLower(name)
	return isSQLKeyword(lower) || n.reserved[lower]
}

func (n *Namer) warnIfReserved(kind, name string) {
	if n.IsReserved(name) {
		n.logger.Warn("derived name is a reserved SQL word and must be quoted",
			slog.String("kind", kind),
			slog.String("name", name),
		)
	}
}

// typeBaseName drops package qualifiers and generic arguments: Page[pkg.Order] -> Page.
func typeBaseName(t reflect.Type) string {
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

// ToSnakeCase converts PascalCase or camelCase to snake_case.
// Acronyms stay together: "URLPath" -> "url_path", "OrderID" -> "order_id".
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToLowerCamel lowercases the leading word of a Go identifier.
// Example: "LineItems" -> "lineItems", "ID" -> "id", "URLPath" -> "urlPath"
func ToLowerCamel(s string) string {
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		// Keep the last capital of an acronym when it starts the next word.
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

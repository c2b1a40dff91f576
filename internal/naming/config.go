// Package naming provides the naming strategy that derives relational names
// (tables, schema, columns) from Go types and property names, including
// pluralization, reserved word detection and table collision tracking.
package naming

// Config holds naming customization options
type Config struct {
	// Schema is the default schema for all derived table names. Empty means none.
	Schema string `mapstructure:"schema"`

	// PluralizeTables derives plural table names ("order_item" -> "order_items").
	PluralizeTables bool `mapstructure:"pluralize_tables"`

	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// ReservedWords extends the built-in SQL keyword list.
	ReservedWords []string `mapstructure:"reserved_words"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides: make(map[string]string),
	}
}

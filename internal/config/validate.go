package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"

	"relmap/internal/expression"
	"relmap/internal/naming"
	"relmap/internal/sqlutil"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Mapping.validate(result)
	c.Database.validate(result, c.Mapping)
	validateNamingConfig(result, c.Naming)
	c.Observability.validate(result)

	return result
}

var variableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func (m *MappingConfig) validate(result *ValidationResult) {
	if _, err := m.Processing(); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "mapping.dialect",
			Message: err.Error(),
			Hint:    fmt.Sprintf("valid values are: %s", joinDialects()),
		})
	}

	validPlaceholders := map[string]bool{PlaceholderQuestion: true, PlaceholderDollar: true}
	if !validPlaceholders[m.Placeholder] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "mapping.placeholder",
			Message: fmt.Sprintf("invalid placeholder format %q", m.Placeholder),
			Hint:    "valid values are: question, dollar",
		})
	}

	for name, value := range m.ExpressionVariables {
		if !variableNamePattern.MatchString(name) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "mapping.expression_variables",
				Message: fmt.Sprintf("variable name %q is not a valid expression identifier", name),
				Hint:    "use lower case letters, digits and underscores",
			})
		}
		if expression.IsTemplate(value) {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "mapping.expression_variables",
				Message: fmt.Sprintf("variable %q contains an expression marker and is used verbatim", name),
			})
		}
	}

	if !m.ForceQuote && m.Dialect == string(sqlutil.DialectANSI) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "mapping.force_quote",
			Message: "unquoted names are folded to upper case by ANSI databases",
			Hint:    "enable force_quote or pick the postgres or mysql dialect",
		})
	}
}

func (d *DatabaseConfig) validate(result *ValidationResult, mapping MappingConfig) {
	if !d.Enabled() {
		return
	}

	if _, err := mysql.ParseDSN(d.DSN); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.dsn",
			Message: err.Error(),
			Hint:    "expected user:password@tcp(host:port)/database",
		})
	}

	if d.ConnectionTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_timeout",
			Message: "connection timeout must be positive",
		})
	}

	if d.Pool.MaxOpen < 0 || d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool",
			Message: "pool sizes cannot be negative",
		})
	} else if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: fmt.Sprintf("max_idle (%d) exceeds max_open (%d) and will be capped", d.Pool.MaxIdle, d.Pool.MaxOpen),
		})
	}

	if mapping.Dialect != string(sqlutil.DialectMySQL) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "mapping.dialect",
			Message: fmt.Sprintf("database connections use the mysql driver but the dialect is %q", mapping.Dialect),
		})
	}
	if mapping.Placeholder != PlaceholderQuestion {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "mapping.placeholder",
			Message: "the mysql driver only accepts question mark placeholders",
			Hint:    "set mapping.placeholder to question",
		})
	}
}

func joinDialects() string {
	names := make([]string, 0, len(sqlutil.Dialects()))
	for _, d := range sqlutil.Dialects() {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for singular, plural := range cfg.PluralOverrides {
		if strings.TrimSpace(singular) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.plural_overrides",
				Message: "singular name cannot be empty",
			})
			continue
		}
		if strings.TrimSpace(plural) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.plural_overrides",
				Message: fmt.Sprintf("plural override for %q cannot be empty", singular),
			})
		}
	}

	for _, word := range cfg.ReservedWords {
		if strings.TrimSpace(word) == "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "naming.reserved_words",
				Message: "empty reserved word is ignored",
			})
		}
	}

	if expression.IsTemplate(cfg.Schema) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "naming.schema",
			Message: "default schema cannot be an expression",
			Hint:    "use a schema tag with #{...} on the entity instead",
		})
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.MetricsEnabled && strings.TrimSpace(o.ServiceName) == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.service_name",
			Message: "metrics are enabled without a service name",
		})
	}
}

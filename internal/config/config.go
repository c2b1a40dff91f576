// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"time"

	"relmap/internal/naming"
	"relmap/internal/sqlutil"
)

// Config holds the application configuration.
type Config struct {
	Mapping       MappingConfig       `mapstructure:"mapping"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Naming        naming.Config       `mapstructure:"naming"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Placeholder formats accepted by mapping.placeholder.
const (
	PlaceholderQuestion = "question" // ?
	PlaceholderDollar   = "dollar"   // $1, $2, ...
)

// MappingConfig holds mapping context and SQL rendering parameters.
type MappingConfig struct {
	ForceQuote  bool   `mapstructure:"force_quote"`
	Dialect     string `mapstructure:"dialect"`     // ansi, postgres, mysql
	Placeholder string `mapstructure:"placeholder"` // question, dollar
	// ExpressionVariables are available to #{...} table and schema expressions.
	// Keys are lowercased by viper.
	ExpressionVariables map[string]string `mapstructure:"expression_variables"`
}

// Processing returns the identifier processing preset of the configured dialect.
func (m MappingConfig) Processing() (sqlutil.Processing, error) {
	return sqlutil.ProcessingFor(sqlutil.Dialect(m.Dialect))
}

// Variables returns the expression variables as an evaluation map.
func (m MappingConfig) Variables() map[string]any {
	vars := make(map[string]any, len(m.ExpressionVariables))
	for k, v := range m.ExpressionVariables {
		vars[k] = v
	}
	return vars
}

// DatabaseConfig holds the optional connection used by loaders.
// An empty DSN leaves the runtime without a database.
type DatabaseConfig struct {
	DSN               string        `mapstructure:"dsn"` // MySQL driver format
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	Pool              PoolConfig    `mapstructure:"pool"`
}

// Enabled reports whether a connection is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.DSN != ""
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
	Logging        LoggingConfig `mapstructure:"logging"`
}

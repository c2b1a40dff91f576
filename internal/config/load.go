package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Load loads configuration from the process arguments. See LoadArgs.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs loads configuration with the following precedence:
// 1. Command line flags in args
// 2. Environment variables (RELMAP_ prefix)
// 3. Config file
// 4. Default values
func LoadArgs(args []string) (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Flags ---
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	// --- Config file ---
	cfgPath, _ := flags.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("relmap")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/relmap/")
		v.AddConfigPath("$HOME/.relmap")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: RELMAP_MAPPING_FORCE_QUOTE
	v.SetEnvPrefix("RELMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest priority) ---
	bindChangedFlagsToViper(v, flags)

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := unmarshal(v, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func unmarshal(v *viper.Viper, cfg *Config) error {
	return v.UnmarshalExact(
		cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	)
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := flags.GetString(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := flags.GetBool(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := flags.GetInt(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := flags.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := flags.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		case "stringToString":
			val, _ := flags.GetStringToString(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// newFlagSet defines all command line flags using canonical snake_case keys.
func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("relmap", pflag.ContinueOnError)

	// Mapping flags
	flags.Bool("mapping.force_quote", false, "Quote all table, schema and column names")
	flags.String("mapping.dialect", "", "Identifier dialect (ansi, postgres, mysql)")
	flags.String("mapping.placeholder", "", "Bind parameter format (question, dollar)")
	flags.StringToString("mapping.expression_variables", nil, "Variables for #{...} name expressions (key=value,...)")

	// Database flags
	flags.String("database.dsn", "", "MySQL data source name (user:pass@tcp(host:port)/db)")
	flags.Duration("database.connection_timeout", 0, "Time to wait for the database at startup")
	flags.Int("database.pool.max_open", 0, "Maximum open connections")
	flags.Int("database.pool.max_idle", 0, "Maximum idle connections")
	flags.Duration("database.pool.max_lifetime", 0, "Maximum connection lifetime")

	// Naming flags
	flags.String("naming.schema", "", "Default schema for derived table names")
	flags.Bool("naming.pluralize_tables", false, "Pluralize derived table names")
	flags.StringSlice("naming.reserved_words", nil, "Additional reserved words (comma-separated or repeated)")

	// Observability flags
	flags.String("observability.service_name", "", "Service name for observability")
	flags.String("observability.service_version", "", "Service version for observability")
	flags.String("observability.environment", "", "Environment name (dev, staging, prod)")
	flags.Bool("observability.metrics_enabled", false, "Enable metrics collection")

	// Logging flags (under observability)
	flags.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	flags.String("observability.logging.format", "", "Log format (json, text)")

	// Config file flag
	flags.StringP("config", "c", "", "Config file path")

	return flags
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	// Mapping defaults
	v.SetDefault("mapping.force_quote", true)
	v.SetDefault("mapping.dialect", "ansi")
	v.SetDefault("mapping.placeholder", PlaceholderQuestion)
	v.SetDefault("mapping.expression_variables", map[string]string{})

	// Database defaults
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.connection_timeout", 10*time.Second)
	v.SetDefault("database.pool.max_open", 10)
	v.SetDefault("database.pool.max_idle", 5)
	v.SetDefault("database.pool.max_lifetime", 30*time.Minute)

	// Naming defaults
	v.SetDefault("naming.schema", "")
	v.SetDefault("naming.pluralize_tables", false)
	v.SetDefault("naming.plural_overrides", map[string]string{})
	v.SetDefault("naming.reserved_words", []string{})

	// Observability defaults
	v.SetDefault("observability.service_name", "relmap")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)

	// Logging defaults (under observability)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}

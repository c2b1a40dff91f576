package naming

import (
	"log/slog"
	"sync"
)

// TableRegistry tracks which source type claimed each qualified table name and
// reports collisions. Safe for concurrent use.
type TableRegistry struct {
	mu     sync.Mutex
	seen   map[string]string // table name -> source type
	logger *slog.Logger
}

// NewTableRegistry creates an empty registry.
func NewTableRegistry(logger *slog.Logger) *TableRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableRegistry{
		seen:   make(map[string]string),
		logger: logger,
	}
}

// Register records that source maps to table. It returns false and logs a
// warning when a different source already claimed the same table.
func (r *TableRegistry) Register(table, source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.seen[table]
	if !exists {
		r.seen[table] = source
		return true
	}
	if existing == source {
		return true
	}

	r.logger.Warn("table name collision detected",
		slog.String("table", table),
		slog.String("existing_source", existing),
		slog.String("new_source", source),
	)
	return false
}

// Source returns the type that claimed table, if any.
func (r *TableRegistry) Source(table string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.seen[table]
	return source, ok
}

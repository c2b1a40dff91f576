// Package sqlgen builds SELECT statements for aggregates from mapping
// metadata and loads the resulting rows.
package sqlgen

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"relmap/internal/mapping"
	"relmap/internal/sqlutil"
)

// QualifierKey is the row key holding the list index or map key of a
// qualified path.
const QualifierKey = "@key"

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
	// Keys names the selected columns in order: property dot paths relative
	// to the queried path, plus QualifierKey for qualified paths.
	Keys []string
}

// Column is a selected column and the path it was derived from.
type Column struct {
	Path *mapping.AggregatePath
	Name sqlutil.Identifier
	Key  string
}

// Planner renders queries for one dialect and placeholder format.
type Planner struct {
	processing  sqlutil.Processing
	placeholder sq.PlaceholderFormat
}

// ParsePlaceholder maps a placeholder name ("question", "dollar") to a
// squirrel placeholder format. The empty name is "question".
func ParsePlaceholder(name string) (sq.PlaceholderFormat, error) {
	switch strings.ToLower(name) {
	case "", "question":
		return sq.Question, nil
	case "dollar":
		return sq.Dollar, nil
	default:
		return nil, fmt.Errorf("unknown placeholder format %q", name)
	}
}

// NewPlanner creates a planner rendering identifiers with processing.
func NewPlanner(processing sqlutil.Processing, placeholder sq.PlaceholderFormat) *Planner {
	if placeholder == nil {
		placeholder = sq.Question
	}
	return &Planner{processing: processing, placeholder: placeholder}
}

// Columns enumerates the columns stored in the table owned by path: simple
// properties of the leaf entity, with embedded entities flattened. Entity
// references and collections live in other tables and are skipped.
func (p *Planner) Columns(path *mapping.AggregatePath) ([]Column, error) {
	return p.columns(path, path)
}

func (p *Planner) columns(owner, path *mapping.AggregatePath) ([]Column, error) {
	entity, err := path.RequiredLeafEntity()
	if err != nil {
		return nil, err
	}

	var out []Column
	for _, prop := range entity.Properties() {
		child, err := path.Append(prop)
		if err != nil {
			return nil, err
		}
		if child.IsEmbedded() {
			nested, err := p.columns(owner, child)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		if child.IsEntity() || prop.IsCollectionLike() || prop.IsMap() {
			continue
		}
		name, err := child.ColumnName()
		if err != nil {
			return nil, err
		}
		out = append(out, Column{Path: child, Name: name, Key: relativeKey(owner, child)})
	}
	return out, nil
}

func relativeKey(owner, path *mapping.AggregatePath) string {
	if owner.IsRoot() {
		return path.DotPath()
	}
	return strings.TrimPrefix(path.DotPath(), owner.DotPath()+".")
}

// SelectRoot builds the query loading the aggregate root row with the given id.
func (p *Planner) SelectRoot(root *mapping.AggregatePath, id any) (SQLQuery, error) {
	if !root.IsRoot() {
		return SQLQuery{}, fmt.Errorf("%w: %s is not a root path", mapping.ErrInvalidState, root)
	}
	entity, err := root.RequiredLeafEntity()
	if err != nil {
		return SQLQuery{}, err
	}
	table, err := entity.QualifiedTableName()
	if err != nil {
		return SQLQuery{}, err
	}
	idColumn, err := entity.IDColumn()
	if err != nil {
		return SQLQuery{}, err
	}
	columns, err := p.Columns(root)
	if err != nil {
		return SQLQuery{}, err
	}

	selects, keys := p.render(columns)
	query, args, err := sq.Select(selects...).
		From(table.ToSQL(p.processing)).
		Where(sq.Eq{idColumn.ToSQL(p.processing): id}).
		PlaceholderFormat(p.placeholder).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args, Keys: keys}, nil
}

// SelectPath builds the query loading the rows of an entity-valued path that
// reference the given parent id. Qualified paths also select the qualifier
// column; ordered paths are sorted by it.
func (p *Planner) SelectPath(path *mapping.AggregatePath, parentID any) (SQLQuery, error) {
	if path.IsRoot() {
		return SQLQuery{}, fmt.Errorf("%w: use SelectRoot for root paths", mapping.ErrInvalidState)
	}
	if !path.IsEntity() || path.IsEmbedded() {
		return SQLQuery{}, fmt.Errorf("%w: %s does not own a table", mapping.ErrInvalidState, path)
	}
	entity, err := path.RequiredLeafEntity()
	if err != nil {
		return SQLQuery{}, err
	}
	table, err := entity.QualifiedTableName()
	if err != nil {
		return SQLQuery{}, err
	}
	reverse, err := path.ReverseColumnName()
	if err != nil {
		return SQLQuery{}, err
	}
	columns, err := p.Columns(path)
	if err != nil {
		return SQLQuery{}, err
	}

	selects, keys := p.render(columns)
	var qualifier string
	if path.IsQualified() {
		key, err := path.QualifierColumnName()
		if err != nil {
			return SQLQuery{}, err
		}
		qualifier = key.ToSQL(p.processing)
		selects = append(selects, qualifier)
		keys = append(keys, QualifierKey)
	}

	builder := sq.Select(selects...).
		From(table.ToSQL(p.processing)).
		Where(sq.Eq{reverse.ToSQL(p.processing): parentID})
	if path.IsOrdered() {
		builder = builder.OrderBy(qualifier)
	}

	query, args, err := builder.PlaceholderFormat(p.placeholder).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args, Keys: keys}, nil
}

func (p *Planner) render(columns []Column) (selects, keys []string) {
	selects = make([]string, len(columns))
	keys = make([]string, len(columns))
	for i, col := range columns {
		selects[i] = col.Name.ToSQL(p.processing)
		keys[i] = col.Key
	}
	return selects, keys
}

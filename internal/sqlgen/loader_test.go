package sqlgen

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/internal/dbexec"
	"relmap/internal/sqlutil"
)

func newTestLoader(t *testing.T) (*Loader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	planner := NewPlanner(sqlutil.Postgres, sq.Dollar)
	return NewLoader(planner, dbexec.NewStandardExecutor(db), nil), mock
}

func TestLoaderLoadRoot(t *testing.T) {
	loader, mock := newTestLoader(t)
	ctx := newMappingContext(true)

	mock.ExpectQuery(`SELECT "id", "customer", "ship_street", "ship_city" FROM "order" WHERE "id" = $1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer", "ship_street", "ship_city"}).
			AddRow(int64(7), "ada", "Main St", "Springfield"))

	row, found, err := loader.LoadRoot(context.Background(), pathOf(t, ctx, Order{}, ""), int64(7))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Row{
		"id":              int64(7),
		"customer":        "ada",
		"shipping.street": "Main St",
		"shipping.city":   "Springfield",
	}, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoaderLoadRootMissing(t *testing.T) {
	loader, mock := newTestLoader(t)
	ctx := newMappingContext(true)

	mock.ExpectQuery(`SELECT "id", "total" FROM "invoice" WHERE "id" = $1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "total"}))

	_, found, err := loader.LoadRoot(context.Background(), pathOf(t, ctx, Invoice{}, ""), int64(9))
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoaderLoadPath(t *testing.T) {
	loader, mock := newTestLoader(t)
	ctx := newMappingContext(true)

	mock.ExpectQuery(`SELECT "sku", "quantity", "order_key" FROM "line_item" WHERE "order" = $1 ORDER BY "order_key"`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"sku", "quantity", "order_key"}).
			AddRow("A-1", int64(2), int64(0)).
			AddRow("B-2", int64(1), int64(1)))

	rows, err := loader.LoadPath(context.Background(), pathOf(t, ctx, Order{}, "lineItems"), int64(7))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"sku": "A-1", "quantity": int64(2), QualifierKey: int64(0)}, rows[0])
	assert.Equal(t, "B-2", rows[1]["sku"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoaderQueryError(t *testing.T) {
	loader, mock := newTestLoader(t)
	ctx := newMappingContext(true)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT "label" FROM "tag" WHERE "order" = $1`).
		WithArgs(int64(7)).
		WillReturnError(boom)

	_, err := loader.LoadPath(context.Background(), pathOf(t, ctx, Order{}, "tags"), int64(7))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

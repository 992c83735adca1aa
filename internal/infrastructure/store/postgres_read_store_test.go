package store

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/readmodel"
)

func newMockReadStore(t *testing.T) (*PostgresReadStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresReadStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresReadStore_Set(t *testing.T) {
	rs, mock := newMockReadStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO read_models")).
		WithArgs(readmodel.Orders, "o-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := rs.Set(readmodel.Orders, "o-1", &readmodel.OrderReadModel{ID: "o-1", Status: "draft"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadStore_Get_DecodesTypedModel(t *testing.T) {
	rs, mock := newMockReadStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM read_models")).
		WithArgs(readmodel.Orders, "o-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"o-1","status":"confirmed","amount_total":"220"}`)))

	got, ok, err := rs.Get(readmodel.Orders, "o-1")

	require.NoError(t, err)
	require.True(t, ok)
	o := got.(*readmodel.OrderReadModel)
	assert.Equal(t, "confirmed", o.Status)
	assert.Equal(t, "220", o.AmountTotal.String())
}

func TestPostgresReadStore_Get_Missing(t *testing.T) {
	rs, mock := newMockReadStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM read_models")).
		WithArgs(readmodel.Orders, "nope").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, ok, err := rs.Get(readmodel.Orders, "nope")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresReadStore_Get_UnknownCollection(t *testing.T) {
	rs, mock := newMockReadStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM read_models")).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{}`)))

	_, _, err := rs.Get("carts", "c-1")

	assert.Error(t, err)
}

func TestPostgresReadStore_Update_LocksAndWrites(t *testing.T) {
	rs, mock := newMockReadStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(readmodel.Inventory, "p-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"product_id":"p-1","on_hand":5}`)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE read_models SET data = $3")).
		WithArgs(readmodel.Inventory, "p-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := rs.Update(readmodel.Inventory, "p-1", func(current any) any {
		inv := current.(*readmodel.InventoryReadModel)
		inv.OnHand -= 2
		return inv
	})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headQuery = "SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1"

func newMockPostgresStore(t *testing.T) (*PostgresEventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresEventStore(db, nil), mock
}

func TestPostgresEventStore_Commit_InsertsInOneTransaction(t *testing.T) {
	es, mock := newMockPostgresStore(t)

	b := NewBatch()
	record(t, b, "order-1", 2, "OrderConfirmed")
	record(t, b, "stock-1", 5, "StockReserved")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(headQuery)).WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(headQuery)).WithArgs("stock-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs(sqlmock.AnyArg(), "order-1", "Test", "OrderConfirmed", sqlmock.AnyArg(), 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs(sqlmock.AnyArg(), "stock-1", "Test", "StockReserved", sqlmock.AnyArg(), 6, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, es.Commit(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_Commit_StaleHeadRollsBack(t *testing.T) {
	es, mock := newMockPostgresStore(t)

	b := NewBatch()
	record(t, b, "stock-1", 5, "StockReserved")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(headQuery)).WithArgs("stock-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(6))
	mock.ExpectRollback()

	err := es.Commit(context.Background(), b)

	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_Commit_UniqueViolationIsConflict(t *testing.T) {
	es, mock := newMockPostgresStore(t)

	b := NewBatch()
	record(t, b, "stock-1", 0, "StockAdded")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(headQuery)).WithArgs("stock-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := es.Commit(context.Background(), b)

	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_GetEvents(t *testing.T) {
	es, mock := newMockPostgresStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "aggregate_type", "event_type", "data", "version", "created_at"}).
		AddRow("e-1", "order-1", "Order", "OrderCreated", []byte(`{"order_id":"order-1"}`), 1, now).
		AddRow("e-2", "order-1", "Order", "OrderConfirmed", []byte(`{}`), 2, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE aggregate_id = $1 ORDER BY version ASC")).
		WithArgs("order-1").
		WillReturnRows(rows)

	events, err := es.GetEvents(context.Background(), "order-1")

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "OrderConfirmed", events[1].EventType)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(events[0].Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_GetSnapshot_NoneStored(t *testing.T) {
	es, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM snapshots WHERE aggregate_id = $1")).
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"aggregate_id", "aggregate_type", "version", "state", "created_at"}))

	s, err := es.GetSnapshot(context.Background(), "order-1")

	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestPostgresEventStore_SaveSnapshot_Upserts(t *testing.T) {
	es, mock := newMockPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshots")).
		WithArgs("order-1", "Order", 10, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := es.SaveSnapshot(context.Background(), &Snapshot{
		AggregateID:   "order-1",
		AggregateType: "Order",
		Version:       10,
		State:         []byte(`{}`),
		CreatedAt:     time.Now(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

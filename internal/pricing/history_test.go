package pricing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStore_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := NewHistoryStore(db)
	store.now = func() time.Time { return fixed }

	req := BuildRequest(Selection{ServiceID: 3, AreaID: 7, CustomerID: ptr(int64(42)), FabricType: ptr(FabricSilk)})
	res := successResult(850)
	res.BasePrice = ptr(800.0)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO price_quote_history")).
		WithArgs(
			sqlmock.AnyArg(), // id
			"ORD-1",
			int64(3),
			int64(7),
			int64(42),
			sqlmock.AnyArg(), // order_context JSON
			800.0,
			850.0,
			nil,
			nil,
			fixed,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := store.Record(context.Background(), "ORD-1", req, res)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 850.0, rec.CalculatedPrice)
	assert.Equal(t, FabricSilk, *rec.OrderContext.FabricType)
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_RecordRejectsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewHistoryStore(db).Record(context.Background(), "ORD-2", BuildRequest(Selection{ServiceID: 1, AreaID: 2}), errorResult("boom"))
	assert.ErrorIs(t, err, ErrDatabaseInsertFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_RecordInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO price_quote_history").WillReturnError(errors.New("connection refused"))

	_, err = NewHistoryStore(db).Record(context.Background(), "ORD-3", BuildRequest(Selection{ServiceID: 1, AreaID: 2}), successResult(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabaseInsertFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHistoryStore_Recent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "order_id", "service_id", "area_id", "customer_id", "order_context",
		"base_price", "calculated_price", "price_multiplier", "confidence_score", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM price_quote_history WHERE service_id = $1 AND area_id = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs(int64(3), int64(7), 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "ORD-1", 3, 7, 42, []byte(`{"quantity":1,"urgency":"normal","fabric_cost":0}`), 800.0, 850.0, nil, 0.9, created).
			AddRow("a0", "ORD-0", 3, 7, nil, []byte(`{"quantity":2,"urgency":"rush"}`), nil, 1200.0, 1.5, nil, created.Add(-time.Hour)))

	recs, err := NewHistoryStore(db).Recent(context.Background(), 3, 7, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "ORD-1", recs[0].OrderID)
	require.NotNil(t, recs[0].CustomerID)
	assert.Equal(t, int64(42), *recs[0].CustomerID)
	require.NotNil(t, recs[0].OrderContext.FabricCost)
	assert.Equal(t, 0.0, *recs[0].OrderContext.FabricCost)
	assert.Equal(t, 800.0, *recs[0].BasePrice)
	assert.Nil(t, recs[0].PriceMultiplier)

	assert.Nil(t, recs[1].CustomerID)
	assert.Nil(t, recs[1].BasePrice)
	assert.Equal(t, UrgencyRush, recs[1].OrderContext.Urgency)
	assert.Equal(t, 1.5, *recs[1].PriceMultiplier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_RecentWithoutFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM price_quote_history ORDER BY created_at DESC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	recs, err := NewHistoryStore(db).Recent(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS price_quote_history")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewHistoryStore(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

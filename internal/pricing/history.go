package pricing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrDatabaseQueryFailed  = errors.New("DATABASE_QUERY_FAILED")
)

const historySchema = `
CREATE TABLE IF NOT EXISTS price_quote_history (
	id               UUID PRIMARY KEY,
	order_id         TEXT NOT NULL,
	service_id       BIGINT NOT NULL,
	area_id          BIGINT NOT NULL,
	customer_id      BIGINT,
	order_context    JSONB NOT NULL,
	base_price       DOUBLE PRECISION,
	calculated_price DOUBLE PRECISION NOT NULL,
	price_multiplier DOUBLE PRECISION,
	confidence_score DOUBLE PRECISION,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_quote_history_service_area
	ON price_quote_history (service_id, area_id, created_at DESC)`

// HistoryRecord is one quote issued for an order.
type HistoryRecord struct {
	ID              string       `json:"id"`
	OrderID         string       `json:"orderId"`
	ServiceID       int64        `json:"serviceId"`
	AreaID          int64        `json:"areaId"`
	CustomerID      *int64       `json:"customerId,omitempty"`
	OrderContext    OrderContext `json:"orderContext"`
	BasePrice       *float64     `json:"basePrice,omitempty"`
	CalculatedPrice float64      `json:"calculatedPrice"`
	PriceMultiplier *float64     `json:"priceMultiplier,omitempty"`
	ConfidenceScore *float64     `json:"confidenceScore,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// HistoryStore persists quotes to PostgreSQL.
type HistoryStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db, now: time.Now}
}

func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, historySchema); err != nil {
		return fmt.Errorf("create price_quote_history: %w", err)
	}
	return nil
}

// Record stores a successful quote against an order. Error results are
// rejected since they carry no price.
func (s *HistoryStore) Record(ctx context.Context, orderID string, req QuoteRequest, res QuoteResult) (*HistoryRecord, error) {
	price, ok := res.Price()
	if !ok {
		return nil, fmt.Errorf("%w: quote for order %s has no price", ErrDatabaseInsertFailed, orderID)
	}

	rec := &HistoryRecord{
		ID:              uuid.New().String(),
		OrderID:         orderID,
		ServiceID:       req.ServiceID,
		AreaID:          req.AreaID,
		CustomerID:      req.CustomerID,
		OrderContext:    req.OrderContext,
		BasePrice:       res.BasePrice,
		CalculatedPrice: price,
		PriceMultiplier: res.PriceMultiplier,
		ConfidenceScore: res.ConfidenceScore,
		CreatedAt:       s.now().UTC(),
	}

	contextJSON, err := json.Marshal(rec.OrderContext)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal order context: %v", ErrDatabaseInsertFailed, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO price_quote_history (
			id, order_id, service_id, area_id, customer_id, order_context,
			base_price, calculated_price, price_multiplier, confidence_score, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID,
		rec.OrderID,
		rec.ServiceID,
		rec.AreaID,
		nullInt64(rec.CustomerID),
		contextJSON,
		nullFloat64(rec.BasePrice),
		rec.CalculatedPrice,
		nullFloat64(rec.PriceMultiplier),
		nullFloat64(rec.ConfidenceScore),
		rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseInsertFailed, err)
	}
	return rec, nil
}

// Recent returns the latest quotes, newest first. A zero serviceID or
// areaID matches any value.
func (s *HistoryStore) Recent(ctx context.Context, serviceID, areaID int64, limit int) ([]HistoryRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var (
		where []string
		args  []interface{}
	)
	if serviceID > 0 {
		args = append(args, serviceID)
		where = append(where, fmt.Sprintf("service_id = $%d", len(args)))
	}
	if areaID > 0 {
		args = append(args, areaID)
		where = append(where, fmt.Sprintf("area_id = $%d", len(args)))
	}
	args = append(args, limit)

	query := `SELECT id, order_id, service_id, area_id, customer_id, order_context,
		base_price, calculated_price, price_multiplier, confidence_score, created_at
		FROM price_quote_history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseQueryFailed, err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			rec         HistoryRecord
			customerID  sql.NullInt64
			contextJSON []byte
			base        sql.NullFloat64
			multiplier  sql.NullFloat64
			confidence  sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.ServiceID, &rec.AreaID, &customerID, &contextJSON,
			&base, &rec.CalculatedPrice, &multiplier, &confidence, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrDatabaseQueryFailed, err)
		}
		if err := json.Unmarshal(contextJSON, &rec.OrderContext); err != nil {
			return nil, fmt.Errorf("%w: order_context: %v", ErrDatabaseQueryFailed, err)
		}
		if customerID.Valid {
			rec.CustomerID = &customerID.Int64
		}
		rec.BasePrice = floatPtr(base)
		rec.PriceMultiplier = floatPtr(multiplier)
		rec.ConfidenceScore = floatPtr(confidence)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseQueryFailed, err)
	}
	return out, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

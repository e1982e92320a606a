// Package fulfillment keeps the authoritative record of each payment's outcome.
//
// Rows are created as pending when an intent is issued and only move to a terminal
// status from verified webhook events. Client-observed success never writes here.
package fulfillment

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Status is the fulfillment state of a payment intent
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when no record exists for a payment intent
var ErrNotFound = errors.New("fulfillment record not found")

// Record is one row of the ledger
type Record struct {
	PaymentIntentID string
	Status          Status
	Amount          int64
	Currency        string
	BusinessName    string
	Email           string
	MonthlyPlan     int
	LastEventID     string
	FailureMessage  string
	Flagged         bool
	FlagReason      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Outcome is a webhook-reported result for a payment intent
type Outcome struct {
	PaymentIntentID string
	Status          Status
	Amount          int64
	Currency        string
	BusinessName    string
	Email           string
	MonthlyPlan     int
	EventID         string
	FailureMessage  string
}

// Cursor positions a ListStalePending page after the last row already seen.
// The zero value starts from the oldest row.
type Cursor struct {
	CreatedAt       time.Time
	PaymentIntentID string
}

const table = "fulfillments"

var recordColumns = []string{
	"payment_intent_id", "status", "amount", "currency", "business_name", "email", "monthly_plan",
	"last_event_id", "failure_message", "flagged", "flag_reason", "created_at", "updated_at",
}

// Ledger stores fulfillment records in Postgres
type Ledger struct {
	drv *entsql.Driver
	now func() time.Time
}

// NewLedger creates a ledger on an open database handle
func NewLedger(db *stdsql.DB) *Ledger {
	return &Ledger{drv: entsql.OpenDB(dialect.Postgres, db), now: time.Now}
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

// CreatePending inserts a pending row for a newly issued intent. Re-issuing the same
// intent (idempotent replay) leaves the existing row untouched.
func (l *Ledger) CreatePending(ctx context.Context, rec Record) error {
	now := l.now().UTC()
	query, args := builder().
		Insert(table).
		Columns("payment_intent_id", "status", "amount", "currency", "business_name", "email", "monthly_plan", "created_at", "updated_at").
		Values(rec.PaymentIntentID, string(StatusPending), rec.Amount, rec.Currency, rec.BusinessName, rec.Email, rec.MonthlyPlan, now, now).
		OnConflict(entsql.ConflictColumns("payment_intent_id"), entsql.DoNothing()).
		Query()

	if err := l.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to create pending fulfillment: %w", err)
	}
	return nil
}

// RecordOutcome applies a webhook outcome. A succeeded row is terminal and is never
// downgraded by a later failure event for the same intent.
func (l *Ledger) RecordOutcome(ctx context.Context, o Outcome) (bool, error) {
	if o.Status != StatusSucceeded && o.Status != StatusFailed {
		return false, fmt.Errorf("invalid outcome status %q", o.Status)
	}

	now := l.now().UTC()
	query, args := builder().
		Insert(table).
		Columns("payment_intent_id", "status", "amount", "currency", "business_name", "email", "monthly_plan", "last_event_id", "failure_message", "created_at", "updated_at").
		Values(o.PaymentIntentID, string(o.Status), o.Amount, o.Currency, o.BusinessName, o.Email, o.MonthlyPlan, o.EventID, o.FailureMessage, now, now).
		OnConflict(
			entsql.ConflictColumns("payment_intent_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("status")
				u.SetExcluded("last_event_id")
				u.SetExcluded("failure_message")
				u.SetExcluded("updated_at")
			}),
			entsql.UpdateWhere(entsql.ExprP(table+".status <> 'succeeded'")),
		).
		Query()

	var res stdsql.Result
	if err := l.drv.Exec(ctx, query, args, &res); err != nil {
		return false, fmt.Errorf("failed to record fulfillment outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Get returns the record for a payment intent
func (l *Ledger) Get(ctx context.Context, paymentIntentID string) (*Record, error) {
	query, args := builder().
		Select(recordColumns...).
		From(entsql.Table(table)).
		Where(entsql.EQ("payment_intent_id", paymentIntentID)).
		Query()

	var rows entsql.Rows
	if err := l.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to get fulfillment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get fulfillment: %w", err)
		}
		return nil, ErrNotFound
	}
	rec, err := scanRecord(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get fulfillment: %w", err)
	}
	return rec, nil
}

// ListStalePending returns up to limit unflagged pending rows created before the
// cutoff, oldest first, starting after the cursor.
func (l *Ledger) ListStalePending(ctx context.Context, createdBefore time.Time, after Cursor, limit int) ([]Record, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("status", string(StatusPending)),
		entsql.EQ("flagged", false),
		entsql.LT("created_at", createdBefore.UTC()),
	}
	if !after.CreatedAt.IsZero() {
		at := after.CreatedAt.UTC()
		preds = append(preds, entsql.Or(
			entsql.GT("created_at", at),
			entsql.And(entsql.EQ("created_at", at), entsql.GT("payment_intent_id", after.PaymentIntentID)),
		))
	}

	query, args := builder().
		Select(recordColumns...).
		From(entsql.Table(table)).
		Where(entsql.And(preds...)).
		OrderBy("created_at", "payment_intent_id").
		Limit(limit).
		Query()

	var rows entsql.Rows
	if err := l.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to list pending fulfillments: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(&rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fulfillment: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Flag marks a record for manual follow-up without changing its status
func (l *Ledger) Flag(ctx context.Context, paymentIntentID, reason string) error {
	query, args := builder().
		Update(table).
		Set("flagged", true).
		Set("flag_reason", reason).
		Set("updated_at", l.now().UTC()).
		Where(entsql.EQ("payment_intent_id", paymentIntentID)).
		Query()

	var res stdsql.Result
	if err := l.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("failed to flag fulfillment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var status string
	err := s.Scan(
		&rec.PaymentIntentID, &status, &rec.Amount, &rec.Currency, &rec.BusinessName, &rec.Email,
		&rec.MonthlyPlan, &rec.LastEventID, &rec.FailureMessage, &rec.Flagged, &rec.FlagReason,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}

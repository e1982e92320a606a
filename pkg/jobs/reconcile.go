package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stripe/stripe-go/v76"

	"github.com/verdantdigital/expressbuild/pkg/fulfillment"
	"github.com/verdantdigital/expressbuild/pkg/logger"
	"github.com/verdantdigital/expressbuild/pkg/metrics"
)

// Discrepancy reasons recorded on flagged ledger rows
const (
	ReasonSucceededWithoutWebhook = "succeeded_without_webhook"
	ReasonFailedWithoutWebhook    = "failed_without_webhook"
	ReasonCanceled                = "canceled"
	ReasonAbandoned               = "abandoned"
)

const (
	defaultBatchSize    = 100
	defaultAbandonAfter = 72 * time.Hour
)

// PendingLedger is the part of the fulfillment ledger the reconciler needs
type PendingLedger interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, after fulfillment.Cursor, limit int) ([]fulfillment.Record, error)
	Flag(ctx context.Context, paymentIntentID, reason string) error
}

// IntentReader retrieves payment intents from the processor
type IntentReader interface {
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// DiscrepancyNotifier alerts the team about flagged payments
type DiscrepancyNotifier interface {
	NotifyDiscrepancy(ctx context.Context, paymentIntentID, ledgerStatus, processorStatus, reason string) error
}

// Report summarises one reconciliation pass
type Report struct {
	Checked int
	Flagged int
	Errors  int
}

// Reconciler compares ledger rows stuck in pending with the processor and flags
// the ones whose webhook never arrived. It never changes a row's status.
type Reconciler struct {
	ledger   PendingLedger
	gateway  IntentReader
	notifier DiscrepancyNotifier
	metrics  *metrics.Metrics
	log      logger.Logger

	gracePeriod  time.Duration
	abandonAfter time.Duration
	batchSize    int
	clock        clockwork.Clock
}

// NewReconciler creates a reconciler that leaves rows younger than gracePeriod alone
func NewReconciler(ledger PendingLedger, gateway IntentReader, gracePeriod time.Duration, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{
		ledger:       ledger,
		gateway:      gateway,
		log:          log,
		gracePeriod:  gracePeriod,
		abandonAfter: defaultAbandonAfter,
		batchSize:    defaultBatchSize,
		clock:        clockwork.NewRealClock(),
	}
}

// SetNotifier sets the discrepancy notifier.
func (r *Reconciler) SetNotifier(n DiscrepancyNotifier) {
	r.notifier = n
}

// SetClock replaces the wall clock.
func (r *Reconciler) SetClock(c clockwork.Clock) {
	r.clock = c
}

// SetMetrics sets the metrics sink.
func (r *Reconciler) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// RunOnce performs a single reconciliation pass over every stale pending row,
// one page at a time.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	now := r.clock.Now()
	cutoff := now.Add(-r.gracePeriod)

	var after fulfillment.Cursor
	for {
		rows, err := r.ledger.ListStalePending(ctx, cutoff, after, r.batchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list pending fulfillments: %w", err)
		}

		for _, rec := range rows {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			r.check(ctx, rec, now, &report)
		}

		if len(rows) < r.batchSize {
			return report, nil
		}
		last := rows[len(rows)-1]
		after = fulfillment.Cursor{CreatedAt: last.CreatedAt, PaymentIntentID: last.PaymentIntentID}
	}
}

func (r *Reconciler) check(ctx context.Context, rec fulfillment.Record, now time.Time, report *Report) {
	report.Checked++

	log := r.log.With("payment_intent_id", rec.PaymentIntentID)

	pi, err := r.gateway.GetPaymentIntent(ctx, rec.PaymentIntentID)
	if err != nil {
		report.Errors++
		log.Error("failed to retrieve payment intent", "error", err.Error())
		return
	}

	reason := r.discrepancy(pi, rec, now)
	if reason == "" {
		return
	}

	if err := r.ledger.Flag(ctx, rec.PaymentIntentID, reason); err != nil {
		report.Errors++
		log.Error("failed to flag fulfillment", "reason", reason, "error", err.Error())
		return
	}

	report.Flagged++
	r.metrics.RecordReconciliationFlag(reason)
	log.Warn("fulfillment flagged for review", "reason", reason, "processor_status", string(pi.Status))

	if r.notifier != nil && reason != ReasonAbandoned {
		if err := r.notifier.NotifyDiscrepancy(ctx, rec.PaymentIntentID, string(rec.Status), string(pi.Status), reason); err != nil {
			log.Warn("failed to send discrepancy alert", "error", err.Error())
		}
	}
}

func (r *Reconciler) discrepancy(pi *stripe.PaymentIntent, rec fulfillment.Record, now time.Time) string {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return ReasonSucceededWithoutWebhook
	case stripe.PaymentIntentStatusCanceled:
		return ReasonCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return ReasonFailedWithoutWebhook
		}
	}
	// Still in progress at the processor
	if now.Sub(rec.CreatedAt) > r.abandonAfter {
		return ReasonAbandoned
	}
	return ""
}

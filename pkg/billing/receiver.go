package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/verdantdigital/expressbuild/pkg/fulfillment"
	"github.com/verdantdigital/expressbuild/pkg/logger"
	"github.com/verdantdigital/expressbuild/pkg/metrics"
)

const sideEffectTimeout = 30 * time.Second

// EventStore de-duplicates webhook deliveries.
type EventStore interface {
	ClaimEvent(ctx context.Context, eventID string) (bool, error)
	ReleaseEvent(ctx context.Context, eventID string) error
}

// OutcomeRecorder writes webhook outcomes to the fulfillment ledger.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o fulfillment.Outcome) (bool, error)
}

// EmailSender abstracts email sending for receipts.
type EmailSender interface {
	SendEmail(toEmail, toName, subject, htmlBody, plainTextBody string) error
}

// OpsNotifier tells the team about paid and failed orders.
type OpsNotifier interface {
	NotifyPaymentSucceeded(ctx context.Context, businessName, email, amount, monthlyPlan, paymentIntentID string) error
	NotifyPaymentFailed(ctx context.Context, businessName, email, reason, paymentIntentID string) error
}

// Receiver authenticates and dispatches processor webhook events
type Receiver struct {
	webhookSecret string
	log           logger.Logger

	events   EventStore
	ledger   OutcomeRecorder
	email    EmailSender
	notifier OpsNotifier
	metrics  *metrics.Metrics

	wg sync.WaitGroup
}

// NewReceiver creates a receiver verifying payloads against webhookSecret
func NewReceiver(webhookSecret string, log logger.Logger) *Receiver {
	if log == nil {
		log = logger.Nop()
	}
	return &Receiver{
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// SetEventStore sets the delivery de-duplication store.
func (r *Receiver) SetEventStore(s EventStore) {
	r.events = s
}

// SetLedger sets the fulfillment ledger.
func (r *Receiver) SetLedger(l OutcomeRecorder) {
	r.ledger = l
}

// SetEmailSender sets the receipt email sender.
func (r *Receiver) SetEmailSender(e EmailSender) {
	r.email = e
}

// SetNotifier sets the ops notifier.
func (r *Receiver) SetNotifier(n OpsNotifier) {
	r.notifier = n
}

// SetMetrics sets the metrics sink.
func (r *Receiver) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Wait blocks until every queued side effect has finished
func (r *Receiver) Wait() {
	r.wg.Wait()
}

// Handle verifies payload against the Stripe-Signature header and processes the event.
// A *SignatureError means nothing was processed. Any other error means the event should
// be redelivered.
func (r *Receiver) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, r.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		r.log.Warn("webhook signature verification failed", "error", err.Error())
		return &SignatureError{Err: err}
	}

	eventType := string(event.Type)
	log := r.log.With("event_id", event.ID, "event_type", eventType)
	log.Info("webhook received")

	claimed := false
	if r.events != nil {
		ok, err := r.events.ClaimEvent(ctx, event.ID)
		if err != nil {
			// Without the store a redelivery may repeat side effects; the ledger stays correct.
			log.Warn("event de-duplication unavailable", "error", err.Error())
		} else if !ok {
			log.Info("duplicate webhook delivery ignored")
			r.metrics.RecordWebhookEvent(eventType, "duplicate")
			return nil
		} else {
			claimed = true
		}
	}

	result, err := r.dispatch(ctx, log, event)
	if err != nil {
		if claimed {
			if relErr := r.events.ReleaseEvent(context.WithoutCancel(ctx), event.ID); relErr != nil {
				log.Error("failed to release event claim", "error", relErr.Error())
			}
		}
		r.metrics.RecordWebhookEvent(eventType, "error")
		log.Error("webhook processing failed", "error", err.Error())
		return err
	}

	r.metrics.RecordWebhookEvent(eventType, result)
	return nil
}

func (r *Receiver) dispatch(ctx context.Context, log logger.Logger, event stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return "processed", r.handleSucceeded(ctx, log, event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return "processed", r.handleFailed(ctx, log, event)
	default:
		log.Info("unhandled webhook event type")
		return "ignored", nil
	}
}

func (r *Receiver) handleSucceeded(ctx context.Context, log logger.Logger, event stripe.Event) error {
	pi, err := decodePaymentIntent(event)
	if err != nil {
		return err
	}

	log = log.With("payment_intent_id", pi.ID)
	log.Info("payment succeeded",
		"amount", pi.Amount,
		"currency", string(pi.Currency),
		"receipt_email", pi.ReceiptEmail,
		"business", pi.Metadata["businessName"],
	)

	applied, err := r.record(ctx, event, pi, fulfillment.StatusSucceeded, "")
	if err != nil {
		return err
	}
	if !applied {
		log.Info("fulfillment already recorded, skipping side effects")
		return nil
	}

	amount := FormatAmount(pi.Amount, string(pi.Currency))
	recipient := pi.ReceiptEmail
	if recipient == "" {
		recipient = pi.Metadata["email"]
	}

	if r.email != nil && recipient != "" {
		receipt := newReceipt(pi, amount)
		r.runAsync(ctx, log, "receipt email", func(context.Context) error {
			subject, html, plain := buildReceiptEmail(receipt)
			return r.email.SendEmail(recipient, receipt.ContactName, subject, html, plain)
		})
	}

	if r.notifier != nil {
		r.runAsync(ctx, log, "slack paid notification", func(ctx context.Context) error {
			return r.notifier.NotifyPaymentSucceeded(ctx, pi.Metadata["businessName"], recipient, amount, pi.Metadata["monthlyPlan"], pi.ID)
		})
	}

	return nil
}

func (r *Receiver) handleFailed(ctx context.Context, log logger.Logger, event stripe.Event) error {
	pi, err := decodePaymentIntent(event)
	if err != nil {
		return err
	}

	reason := ""
	if pi.LastPaymentError != nil {
		reason = pi.LastPaymentError.Msg
	}

	log = log.With("payment_intent_id", pi.ID)
	log.Warn("payment failed", "reason", reason)

	applied, err := r.record(ctx, event, pi, fulfillment.StatusFailed, reason)
	if err != nil {
		return err
	}
	if !applied {
		log.Info("payment already fulfilled, failure not recorded")
		return nil
	}

	if r.notifier != nil {
		r.runAsync(ctx, log, "slack failed notification", func(ctx context.Context) error {
			return r.notifier.NotifyPaymentFailed(ctx, pi.Metadata["businessName"], pi.Metadata["email"], reason, pi.ID)
		})
	}

	return nil
}

func (r *Receiver) record(ctx context.Context, event stripe.Event, pi *stripe.PaymentIntent, status fulfillment.Status, reason string) (bool, error) {
	if r.ledger == nil {
		return true, nil
	}

	plan, _ := strconv.Atoi(pi.Metadata["monthlyPlan"])
	email := pi.ReceiptEmail
	if email == "" {
		email = pi.Metadata["email"]
	}

	applied, err := r.ledger.RecordOutcome(ctx, fulfillment.Outcome{
		PaymentIntentID: pi.ID,
		Status:          status,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		BusinessName:    pi.Metadata["businessName"],
		Email:           email,
		MonthlyPlan:     plan,
		EventID:         event.ID,
		FailureMessage:  reason,
	})
	if err != nil {
		return false, fmt.Errorf("failed to record %s outcome: %w", status, err)
	}
	return applied, nil
}

// runAsync runs a side effect after the acknowledgement path. Failures are reported
// but never change the webhook response.
func (r *Receiver) runAsync(ctx context.Context, log logger.Logger, name string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Error("side effect failed", "side_effect", name, "error", err.Error())
			sentry.CaptureException(fmt.Errorf("%s: %w", name, err))
		}
	}()
}

func decodePaymentIntent(event stripe.Event) (*stripe.PaymentIntent, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	if pi.Metadata == nil {
		pi.Metadata = map[string]string{}
	}
	return &pi, nil
}

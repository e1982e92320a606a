// Package checkout holds the client side of the Express Build purchase: the
// five-step wizard, the modal orchestrator around it, and the clients the wizard
// uses to reach the issuer and the payment processor.
package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/verdantdigital/expressbuild/pkg/billing"
	"github.com/verdantdigital/expressbuild/pkg/models"
	"github.com/verdantdigital/expressbuild/pkg/phone"
)

// State is a step of the checkout wizard
type State string

const (
	StateScopeCheck   State = "scope-check"
	StateAdsUpsell    State = "ads-upsell"
	StateBusinessInfo State = "business-info"
	StatePayment      State = "payment"
	StateConfirmation State = "confirmation"
)

// Exit tells the orchestrator why the wizard closed itself
type Exit int

const (
	// ExitCustomFeatures is the scope-check "I need custom features" exit
	ExitCustomFeatures Exit = iota
	// ExitCompleted follows Done on the confirmation step
	ExitCompleted
)

// Selection is the upsell decision
type Selection struct {
	WantsGoogleAds bool
}

// MonthlyPlan returns the monthly price shown and recorded for the selection.
func (s Selection) MonthlyPlan() int {
	return billing.MonthlyPlan(s.WantsGoogleAds)
}

// IntentIssuer creates payment intents on the server
type IntentIssuer interface {
	CreatePaymentIntent(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.CreatePaymentIntentResponse, error)
}

// PaymentConfirmer confirms a payment intent with the processor using card details
type PaymentConfirmer interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card Card, details BillingDetails) error
}

// BillingDetails are sent to the processor with the card
type BillingDetails struct {
	Name         string
	Email        string
	Phone        string
	AddressLine1 string
}

func billingDetailsFor(info models.BusinessInfo) BillingDetails {
	return BillingDetails{
		Name:         info.ContactName,
		Email:        info.Email,
		Phone:        phone.BillingPhone(info.Phone),
		AddressLine1: info.Address,
	}
}

// Wizard is one checkout session. All methods are safe for concurrent use; a
// payment submission releases the lock while it waits on the network.
type Wizard struct {
	mu sync.Mutex

	issuer    IntentIssuer
	confirmer PaymentConfirmer
	newKey    func() string
	onExit    func(Exit)

	state           State
	info            models.BusinessInfo
	selection       Selection
	idempotencyKey  string
	paymentIntentID string
	lastErr         error
	inFlight        bool
	generation      uint64
}

// NewWizard creates a wizard at scope-check
func NewWizard(issuer IntentIssuer, confirmer PaymentConfirmer) *Wizard {
	return &Wizard{
		issuer:    issuer,
		confirmer: confirmer,
		newKey:    uuid.NewString,
		state:     StateScopeCheck,
	}
}

// SetExitHandler registers fn to run after the wizard closes itself.
// fn is called without the wizard lock held.
func (w *Wizard) SetExitHandler(fn func(Exit)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onExit = fn
}

// State returns the current step
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// BusinessInfo returns a copy of the captured business info
func (w *Wizard) BusinessInfo() models.BusinessInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info
}

// Selection returns the upsell decision
func (w *Wizard) Selection() Selection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection
}

// LastError returns the recoverable error of the last payment attempt
func (w *Wizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// IdempotencyKey returns the key used for this visit to the payment step
func (w *Wizard) IdempotencyKey() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.idempotencyKey
}

// PaymentIntentID returns the intent confirmed on success
func (w *Wizard) PaymentIntentID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paymentIntentID
}

// InFlight reports whether a payment submission is pending
func (w *Wizard) InFlight() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// ConfirmFit moves from scope-check to the ads upsell.
func (w *Wizard) ConfirmFit() error {
	return w.transition(StateScopeCheck, StateAdsUpsell)
}

// RequestCustomFeatures closes the wizard and hands over to the consultation modal.
func (w *Wizard) RequestCustomFeatures() error {
	return w.exit(StateScopeCheck, ExitCustomFeatures)
}

// ChooseAds records the upsell decision and moves on to business info.
func (w *Wizard) ChooseAds(wantsGoogleAds bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateAdsUpsell {
		return ErrInvalidTransition
	}
	w.selection = Selection{WantsGoogleAds: wantsGoogleAds}
	w.state = StateBusinessInfo
	return nil
}

// SubmitBusinessInfo stores info and advances to payment when every required
// field is present. Fields are trimmed; formats are not checked.
func (w *Wizard) SubmitBusinessInfo(info models.BusinessInfo) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateBusinessInfo {
		return ErrInvalidTransition
	}

	info = trimInfo(info)
	w.info = info

	if missing := missingFields(info); len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}

	w.state = StatePayment
	w.idempotencyKey = w.newKey()
	w.paymentIntentID = ""
	w.lastErr = nil
	return nil
}

// Back returns from payment to business info with the info kept.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StatePayment {
		return ErrInvalidTransition
	}
	if w.inFlight {
		return ErrPaymentInFlight
	}
	w.state = StateBusinessInfo
	w.lastErr = nil
	return nil
}

// SubmitPayment creates a payment intent and confirms it with card. On success the
// wizard moves to confirmation; otherwise it stays on payment with LastError set.
// If the wizard is closed while the calls are pending the result is dropped and
// ErrSessionClosed is returned. A retry keeps the idempotency key unless the issuer
// last failed with a server error.
func (w *Wizard) SubmitPayment(ctx context.Context, card Card) error {
	w.mu.Lock()
	if w.state != StatePayment {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	if w.inFlight {
		w.mu.Unlock()
		return ErrPaymentInFlight
	}

	// The processor replays a stored 5xx for a reused key
	var issuerErr *IssuerError
	if errors.As(w.lastErr, &issuerErr) && issuerErr.Status >= http.StatusInternalServerError {
		w.idempotencyKey = w.newKey()
	}

	w.inFlight = true
	w.lastErr = nil
	generation := w.generation

	amount := billing.ExpressBuildAmount
	info := w.info
	req := models.CreatePaymentIntentRequest{
		Amount:         &amount,
		BusinessInfo:   &info,
		WantsGoogleAds: w.selection.WantsGoogleAds,
		IdempotencyKey: w.idempotencyKey,
	}
	details := billingDetailsFor(info)
	w.mu.Unlock()

	intentID, err := w.pay(ctx, req, card, details)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.generation != generation {
		return ErrSessionClosed
	}

	w.inFlight = false
	if err != nil {
		w.lastErr = err
		return err
	}

	w.paymentIntentID = intentID
	w.state = StateConfirmation
	return nil
}

func (w *Wizard) pay(ctx context.Context, req models.CreatePaymentIntentRequest, card Card, details BillingDetails) (string, error) {
	resp, err := w.issuer.CreatePaymentIntent(ctx, req)
	if err != nil {
		return "", err
	}

	if err := w.confirmer.ConfirmCardPayment(ctx, resp.ClientSecret, card, details); err != nil {
		return "", err
	}

	return resp.PaymentIntentID, nil
}

// Done closes the wizard after a successful payment.
func (w *Wizard) Done() error {
	return w.exit(StateConfirmation, ExitCompleted)
}

// Close abandons the session from any step, clearing info and selection.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

func (w *Wizard) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != from {
		return ErrInvalidTransition
	}
	w.state = to
	return nil
}

func (w *Wizard) exit(from State, reason Exit) error {
	w.mu.Lock()
	if w.state != from {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	w.reset()
	onExit := w.onExit
	w.mu.Unlock()

	if onExit != nil {
		onExit(reason)
	}
	return nil
}

// reset must be called with mu held.
func (w *Wizard) reset() {
	w.state = StateScopeCheck
	w.info = models.BusinessInfo{}
	w.selection = Selection{}
	w.idempotencyKey = ""
	w.paymentIntentID = ""
	w.lastErr = nil
	w.inFlight = false
	w.generation++
}

func trimInfo(info models.BusinessInfo) models.BusinessInfo {
	return models.BusinessInfo{
		BusinessName:   strings.TrimSpace(info.BusinessName),
		ContactName:    strings.TrimSpace(info.ContactName),
		Email:          strings.TrimSpace(info.Email),
		Phone:          strings.TrimSpace(info.Phone),
		Trade:          strings.TrimSpace(info.Trade),
		Website:        strings.TrimSpace(info.Website),
		Address:        strings.TrimSpace(info.Address),
		AdditionalInfo: strings.TrimSpace(info.AdditionalInfo),
	}
}

func missingFields(info models.BusinessInfo) []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"businessName", info.BusinessName},
		{"contactName", info.ContactName},
		{"email", info.Email},
		{"phone", info.Phone},
		{"trade", info.Trade},
		{"address", info.Address},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

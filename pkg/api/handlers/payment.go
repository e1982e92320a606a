package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierrors "github.com/verdantdigital/expressbuild/pkg/api/errors"
	"github.com/verdantdigital/expressbuild/pkg/billing"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

const maxPaymentRequestBody = 16 << 10

// IntentCreator issues payment intents
type IntentCreator interface {
	Create(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.CreatePaymentIntentResponse, error)
}

// StatusLooker reads the state of a payment intent
type StatusLooker interface {
	Lookup(ctx context.Context, paymentIntentID string) (*models.PaymentStatusResponse, error)
}

// PaymentHandler handles payment intent requests
type PaymentHandler struct {
	issuer IntentCreator
	status StatusLooker
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(issuer IntentCreator, status StatusLooker) *PaymentHandler {
	return &PaymentHandler{
		issuer: issuer,
		status: status,
	}
}

// CreatePaymentIntent godoc
// @Summary Create Express Build payment intent
// @Description Creates a payment intent for the fixed-price Express Build. The amount must be 29900 (AUD cents).
// @Tags Payments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Key reused on retries of the same checkout attempt"
// @Param request body models.CreatePaymentIntentRequest true "Amount, business info and add-on choice"
// @Success 200 {object} models.CreatePaymentIntentResponse
// @Failure 400 {object} models.ErrorResponse "Missing required fields or invalid amount"
// @Failure 405 {object} models.ErrorResponse "Method not allowed"
// @Failure 500 {object} models.ErrorResponse "Payment processor error"
// @Router /create-payment-intent [post]
func (h *PaymentHandler) CreatePaymentIntent(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPaymentRequestBody+1))
	if err != nil || len(body) > maxPaymentRequestBody {
		return apierrors.InvalidRequest(c, errors.New("unreadable or oversized body"))
	}

	// The amount is checked before the rest of the payload is decoded
	if amount, ok := peekAmount(body); ok {
		if amount != billing.ExpressBuildAmount {
			return apierrors.InvalidAmount(c, amount)
		}
		body = withAmount(body, amount)
	}

	var req models.CreatePaymentIntentRequest
	c.Request().Body = io.NopCloser(bytes.NewReader(body))
	if err := c.Bind(&req); err != nil {
		return apierrors.InvalidRequest(c, err)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Request().Header.Get("Idempotency-Key")
	}

	resp, err := h.issuer.Create(c.Request().Context(), req)
	if err != nil {
		var procErr *billing.ProcessorError
		switch {
		case errors.Is(err, billing.ErrInvalidAmount):
			return apierrors.InvalidAmount(c, *req.Amount)
		case errors.Is(err, billing.ErrInvalidRequest):
			return apierrors.InvalidRequest(c, err)
		case errors.As(err, &procErr):
			return apierrors.PaymentProcessorError(c, err)
		default:
			return apierrors.InternalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// peekAmount extracts the amount from a JSON object body. Any JSON number with an
// integral value counts, so 29900.0 and 2.99e4 equal 29900. A present amount that is
// not such a number is reported as -1 so it fails the price check.
func peekAmount(body []byte) (int64, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return 0, false
	}
	raw, ok := fields["amount"]
	if !ok || string(raw) == "null" {
		return 0, false
	}
	var amount float64
	if err := json.Unmarshal(raw, &amount); err != nil {
		return -1, true
	}
	if amount != math.Trunc(amount) || math.Abs(amount) > 1<<53 {
		return -1, true
	}
	return int64(amount), true
}

// withAmount rewrites the amount as a plain integer so the body binds into the request
func withAmount(body []byte, amount int64) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	fields["amount"] = json.RawMessage(strconv.FormatInt(amount, 10))
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}

// GetPaymentStatus godoc
// @Summary Get payment status
// @Description Returns the processor status, amount and metadata of a payment intent, plus the webhook-recorded fulfillment status when known
// @Tags Payments
// @Produce json
// @Param id path string true "Payment intent ID (pi_...)"
// @Success 200 {object} models.PaymentStatusResponse
// @Failure 400 {object} models.ErrorResponse "Invalid payment intent id"
// @Failure 500 {object} models.ErrorResponse "Payment processor error"
// @Router /payment-status/{id} [get]
func (h *PaymentHandler) GetPaymentStatus(c echo.Context) error {
	resp, err := h.status.Lookup(c.Request().Context(), c.Param("id"))
	if err != nil {
		var procErr *billing.ProcessorError
		switch {
		case errors.Is(err, billing.ErrInvalidPaymentIntentID):
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid payment intent id"})
		case errors.As(err, &procErr):
			return apierrors.PaymentProcessorError(c, err)
		default:
			return apierrors.InternalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/verdantdigital/expressbuild/pkg/api/errors"
	"github.com/verdantdigital/expressbuild/pkg/billing"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

// MaxWebhookBody caps the size of a webhook payload
const MaxWebhookBody = 64 << 10

// WebhookProcessor verifies and processes a raw webhook payload
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

// WebhookHandler receives payment processor webhooks
type WebhookHandler struct {
	receiver WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(receiver WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{
		receiver: receiver,
	}
}

// HandleStripeWebhook godoc
// @Summary Receive Stripe webhook
// @Description Verifies the Stripe-Signature header against the raw body and records the payment outcome
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} models.WebhookAck
// @Failure 400 {string} string "Webhook Error: <reason>"
// @Failure 500 {object} models.ErrorResponse "Event could not be recorded; Stripe retries"
// @Router /webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(c echo.Context) error {
	req := c.Request()

	// Read the raw body; it must reach signature verification untouched
	payload, err := io.ReadAll(io.LimitReader(req.Body, MaxWebhookBody+1))
	if err != nil {
		return apierrors.SignatureInvalid(c, errors.New("failed to read request body"))
	}
	if len(payload) > MaxWebhookBody {
		return c.String(http.StatusRequestEntityTooLarge, "Webhook Error: payload too large")
	}

	err = h.receiver.Handle(req.Context(), payload, req.Header.Get("Stripe-Signature"))
	if err != nil {
		var sigErr *billing.SignatureError
		if errors.As(err, &sigErr) {
			return apierrors.SignatureInvalid(c, sigErr)
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}

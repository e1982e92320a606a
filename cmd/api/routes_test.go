package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/verdantdigital/expressbuild/pkg/api/errors"
	"github.com/verdantdigital/expressbuild/pkg/api/handlers"
	custommiddleware "github.com/verdantdigital/expressbuild/pkg/middleware"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

type stubIssuer struct{}

func (stubIssuer) Create(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.CreatePaymentIntentResponse, error) {
	return &models.CreatePaymentIntentResponse{ClientSecret: "pi_1_secret_1", PaymentIntentID: "pi_1"}, nil
}

type stubStatus struct{}

func (stubStatus) Lookup(ctx context.Context, id string) (*models.PaymentStatusResponse, error) {
	return &models.PaymentStatusResponse{Status: "succeeded", Amount: 29900}, nil
}

type stubReceiver struct {
	payloads [][]byte
}

func (r *stubReceiver) Handle(ctx context.Context, payload []byte, signature string) error {
	r.payloads = append(r.payloads, payload)
	return nil
}

func newTestServer(t *testing.T) (*echo.Echo, *stubReceiver) {
	t.Helper()
	limiter := custommiddleware.NewRateLimiter(600, 100)
	t.Cleanup(limiter.Stop)

	receiver := &stubReceiver{}
	e := echo.New()
	e.HTTPErrorHandler = apierrors.HTTPErrorHandler
	e.Use(middleware.BodyLimit(bodyLimit))

	registerRoutes(e, routes{
		environment:  "test",
		payments:     handlers.NewPaymentHandler(stubIssuer{}, stubStatus{}),
		webhook:      handlers.NewWebhookHandler(receiver),
		health:       handlers.NewHealthHandler(nil, nil),
		globalLimit:  limiter.Middleware(),
		intentLimit:  limiter.Middleware(),
		webhookLimit: limiter.Middleware(),
	})
	return e, receiver
}

func serve(e *echo.Echo, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const intentBody = `{"amount": 29900, "businessInfo": {"businessName": "Smith Plumbing", "contactName": "Jo Smith",
	"email": "jo@smithplumbing.com.au", "phone": "0412 345 678", "trade": "Plumber", "address": "1 George St"}}`

func TestRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"root", http.MethodGet, "/", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"create intent", http.MethodPost, "/create-payment-intent", intentBody, http.StatusOK},
		{"create intent alias", http.MethodPost, "/api/create-payment-intent", intentBody, http.StatusOK},
		{"payment status", http.MethodGet, "/payment-status/pi_1", "", http.StatusOK},
		{"webhook", http.MethodPost, "/webhook", `{"id": "evt_1"}`, http.StatusOK},
		{"webhook alias", http.MethodPost, "/api/webhook", `{"id": "evt_1"}`, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/checkout", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestServer(t)
			rec := serve(e, tt.method, tt.path, []byte(tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRoutes_WrongMethod(t *testing.T) {
	for _, path := range []string{"/create-payment-intent", "/api/create-payment-intent", "/webhook"} {
		t.Run(path, func(t *testing.T) {
			e, _ := newTestServer(t)
			rec := serve(e, http.MethodGet, path, nil)

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, apierrors.MsgMethodNotAllowed, resp.Error)
		})
	}
}

func TestRoutes_WebhookBodyLimit(t *testing.T) {
	e, receiver := newTestServer(t)

	full := []byte(`{"pad":"` + strings.Repeat("x", handlers.MaxWebhookBody-10) + `"}`)
	require.Len(t, full, handlers.MaxWebhookBody)
	rec := serve(e, http.MethodPost, "/webhook", full)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, receiver.payloads, 1)
	assert.Equal(t, full, receiver.payloads[0])

	over := append(full, ' ')
	rec = serve(e, http.MethodPost, "/api/webhook", over)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Len(t, receiver.payloads, 1)
}

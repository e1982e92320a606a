package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verdantdigital/expressbuild/pkg/models"
)

const maxErrorBody = 4096

// IssuerClient calls the payment intent endpoint of the API
type IssuerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIssuerClient creates a client for the API at baseURL
func NewIssuerClient(baseURL string) *IssuerClient {
	return &IssuerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePaymentIntent posts req to /create-payment-intent. The idempotency key is
// sent both in the body and as the Idempotency-Key header.
func (c *IssuerClient) CreatePaymentIntent(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.CreatePaymentIntentResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/create-payment-intent", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(body, &errResp)
		return nil, &IssuerError{Status: resp.StatusCode, Message: errResp.Error}
	}

	var out models.CreatePaymentIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.ClientSecret == "" {
		return nil, &IssuerError{Status: resp.StatusCode, Message: "response has no client secret"}
	}

	return &out, nil
}

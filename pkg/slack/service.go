package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrSlackSendFailed is returned when Slack API fails
	ErrSlackSendFailed = errors.New("failed to send Slack notification")
)

// Message represents a Slack message
type Message struct {
	Text string `json:"text"`
}

// SlackClient is an interface for sending Slack notifications
type SlackClient interface {
	SendMessage(ctx context.Context, msg Message) error
}

// WebhookClient implements SlackClient using Slack webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new Slack webhook client
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendMessage sends a message to Slack via webhook
func (c *WebhookClient) SendMessage(ctx context.Context, msg Message) error {
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrSlackSendFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrSlackSendFailed
	}

	return nil
}

// Service handles Slack notifications
type Service struct {
	client SlackClient
}

// NewService creates a new Slack service. A nil client disables notifications.
func NewService(client SlackClient) *Service {
	return &Service{
		client: client,
	}
}

// IsEnabled returns true if Slack notifications are enabled
func (s *Service) IsEnabled() bool {
	return s != nil && s.client != nil
}

// NotifyPaymentSucceeded announces a paid Express Build order
func (s *Service) NotifyPaymentSucceeded(ctx context.Context, businessName, email, amount, monthlyPlan, paymentIntentID string) error {
	if !s.IsEnabled() {
		return nil // Silently skip if not enabled
	}

	text := fmt.Sprintf("💰 *Express Build Paid*\n"+
		"• Business: %s\n"+
		"• Email: %s\n"+
		"• Amount: %s\n"+
		"• Monthly plan: $%s/mo\n"+
		"• Payment: %s",
		businessName, email, amount, monthlyPlan, paymentIntentID)

	return s.client.SendMessage(ctx, Message{Text: text})
}

// NotifyPaymentFailed reports a failed payment attempt
func (s *Service) NotifyPaymentFailed(ctx context.Context, businessName, email, reason, paymentIntentID string) error {
	if !s.IsEnabled() {
		return nil
	}

	text := fmt.Sprintf("⚠️ *Payment Failed*\n"+
		"• Business: %s\n"+
		"• Email: %s\n"+
		"• Payment: %s",
		businessName, email, paymentIntentID)

	if reason != "" {
		text += fmt.Sprintf("\n• Reason: %s", reason)
	}

	return s.client.SendMessage(ctx, Message{Text: text})
}

// NotifyDiscrepancy flags a payment whose processor state disagrees with the ledger
func (s *Service) NotifyDiscrepancy(ctx context.Context, paymentIntentID, ledgerStatus, processorStatus, reason string) error {
	if !s.IsEnabled() {
		return nil
	}

	text := fmt.Sprintf("🔎 *Payment Needs Review*\n"+
		"• Payment: %s\n"+
		"• Ledger: %s\n"+
		"• Processor: %s\n"+
		"• Reason: %s",
		paymentIntentID, ledgerStatus, processorStatus, reason)

	return s.client.SendMessage(ctx, Message{Text: text})
}

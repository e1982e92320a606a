package models

// BusinessInfo is the customer detail captured by the checkout wizard and
// forwarded verbatim to the payment intent as metadata.
type BusinessInfo struct {
	BusinessName   string `json:"businessName" validate:"required"`
	ContactName    string `json:"contactName" validate:"required"`
	Email          string `json:"email" validate:"required"`
	Phone          string `json:"phone" validate:"required"`
	Trade          string `json:"trade" validate:"required"`
	Website        string `json:"website,omitempty"`
	Address        string `json:"address" validate:"required"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// CreatePaymentIntentRequest represents a request to issue a payment intent.
// Amount and BusinessInfo are pointers so that absence can be told apart from zero values.
type CreatePaymentIntentRequest struct {
	Amount         *int64        `json:"amount"`
	BusinessInfo   *BusinessInfo `json:"businessInfo"`
	WantsGoogleAds bool          `json:"wantsGoogleAds"`
	IdempotencyKey string        `json:"idempotencyKey,omitempty"`
}

// CreatePaymentIntentResponse carries the client secret used for client-side confirmation
type CreatePaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// PaymentStatusResponse represents the processor-side state of a payment intent
type PaymentStatusResponse struct {
	Status      string            `json:"status"`
	Amount      int64             `json:"amount"`
	Metadata    map[string]string `json:"metadata"`
	Fulfillment *FulfillmentInfo  `json:"fulfillment,omitempty"`
}

// FulfillmentInfo is the webhook-driven view of a payment attached to status lookups
type FulfillmentInfo struct {
	Status     string `json:"status"`
	Flagged    bool   `json:"flagged"`
	FlagReason string `json:"flagReason,omitempty"`
	UpdatedAt  string `json:"updatedAt"`
}

// WebhookAck acknowledges receipt of a webhook event
type WebhookAck struct {
	Received bool `json:"received"`
}

package billing

import (
	"github.com/verdantdigital/expressbuild/pkg/email"
)

// EmailServiceAdapter adapts the email.Service to the EmailSender interface.
type EmailServiceAdapter struct {
	service *email.Service
}

// NewEmailServiceAdapter creates a new adapter wrapping the email service.
func NewEmailServiceAdapter(s *email.Service) *EmailServiceAdapter {
	return &EmailServiceAdapter{service: s}
}

// SendEmail sends an email using the underlying email service.
func (a *EmailServiceAdapter) SendEmail(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	return a.service.SendRawEmail(toEmail, toName, subject, htmlBody, plainTextBody)
}

package email

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	sendGridKey string
	sendGridURL string
	useSendGrid bool
}

// NewService creates a new email service
// If sendGridAPIKey is provided, emails will be sent via SendGrid
// Otherwise, emails will be logged to console (development mode)
func NewService(fromEmail, fromName, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
	}
}

// WithSendGridHost points the sender at a different SendGrid host
func (s *Service) WithSendGridHost(host string) *Service {
	s.sendGridURL = host
	return s
}

// IsLive reports whether emails are actually delivered
func (s *Service) IsLive() bool {
	return s.useSendGrid
}

// SendRawEmail sends an email with custom subject and body content.
// Uses SendGrid in production, logs to console in development.
func (s *Service) SendRawEmail(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	if toEmail == "" {
		return fmt.Errorf("recipient email is required")
	}

	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody)
	}

	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s <%s>", toName, toEmail)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   ⚠️  Email NOT sent (development mode)")
	return nil
}

// sendViaSendGrid sends email using SendGrid API
func (s *Service) sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainTextBody, htmlBody)

	request := sendgrid.GetRequest(s.sendGridKey, sendEndpoint, s.sendGridURL)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequest(request)
	if err != nil {
		log.Printf("❌ SendGrid error: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Printf("❌ SendGrid returned error status %d: %s", response.StatusCode, response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	log.Printf("✅ Email sent successfully to %s (SendGrid status: %d)", toEmail, response.StatusCode)
	return nil
}

package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verdantdigital/expressbuild/pkg/email"
	"github.com/verdantdigital/expressbuild/pkg/slack"
)

func TestEmailServiceAdapterImplementsInterface(t *testing.T) {
	var _ EmailSender = &EmailServiceAdapter{}
}

func TestSlackServiceImplementsNotifier(t *testing.T) {
	var _ OpsNotifier = &slack.Service{}
}

func TestEmailServiceAdapter_SendEmail(t *testing.T) {
	adapter := NewEmailServiceAdapter(email.NewService("hello@verdantdigital.com.au", "Verdant Digital", ""))

	assert.NoError(t, adapter.SendEmail("dave@smithplumbing.com.au", "Dave", "Receipt", "<p>x</p>", "x"))
}

package email

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_ConsoleMode(t *testing.T) {
	svc := NewService("hello@verdantdigital.com.au", "Verdant Digital", "")
	assert.False(t, svc.useSendGrid)
	assert.False(t, svc.IsLive())
	assert.Equal(t, "hello@verdantdigital.com.au", svc.fromEmail)
	assert.Equal(t, "Verdant Digital", svc.fromName)
}

func TestNewService_SendGridMode(t *testing.T) {
	svc := NewService("hello@verdantdigital.com.au", "Verdant Digital", "SG.test-key")
	assert.True(t, svc.useSendGrid)
	assert.Equal(t, "SG.test-key", svc.sendGridKey)
}

func TestSendRawEmail_ConsoleMode(t *testing.T) {
	svc := NewService("hello@verdantdigital.com.au", "Verdant Digital", "")

	err := svc.SendRawEmail("dave@smithplumbing.com.au", "Dave Smith", "Receipt", "<p>hi</p>", "hi")
	assert.NoError(t, err, "Console mode should not error")
}

func TestSendRawEmail_RequiresRecipient(t *testing.T) {
	svc := NewService("hello@verdantdigital.com.au", "Verdant Digital", "")

	assert.Error(t, svc.SendRawEmail("", "Nobody", "Receipt", "", ""))
}

func TestSendRawEmail_SendGrid(t *testing.T) {
	var gotAuth, gotPath string
	var payload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewService("hello@verdantdigital.com.au", "Verdant Digital", "SG.test-key").WithSendGridHost(srv.URL)

	err := svc.SendRawEmail("dave@smithplumbing.com.au", "Dave Smith", "Your Express Build receipt", "<p>Thanks</p>", "Thanks")
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.test-key", gotAuth)
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "Your Express Build receipt", payload["subject"])
}

func TestSendRawEmail_SendGridErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	svc := NewService("hello@verdantdigital.com.au", "Verdant Digital", "SG.bad").WithSendGridHost(srv.URL)

	err := svc.SendRawEmail("dave@smithplumbing.com.au", "Dave Smith", "Receipt", "<p>x</p>", "x")
	assert.ErrorContains(t, err, "401")
}

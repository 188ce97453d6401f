package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/config"
)

func TestNewPicksSender(t *testing.T) {
	assert.IsType(t, NoopService{}, New(config.SMTPConfig{}))
	assert.IsType(t, &SMTPService{}, New(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "clinic@example.com"}))
}

func TestMessageHeaders(t *testing.T) {
	svc := NewSMTPService(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "clinic@example.com"})
	m := svc.message("ana@example.com", "Appointment confirmed", "See you on 2024-05-20 at 09:00.")

	assert.Equal(t, []string{"clinic@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"ana@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Appointment confirmed"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2024-05-20 at 09:00")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	svc := NewSMTPService(config.SMTPConfig{Host: "smtp.invalid", Port: 25, From: "clinic@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Send(ctx, "ana@example.com", "x", "y"), context.Canceled)
}

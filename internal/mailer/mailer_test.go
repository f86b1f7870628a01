package mailer

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/config"
)

func TestSendPasswordReset(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)

	m := New(config.SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@example.com",
	}, nil)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendPasswordReset("user@example.com", "pwreset:abc123"))

	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.Equal(t, "noreply@example.com", gotFrom)
	require.Equal(t, []string{"user@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "pwreset:abc123")
	require.Contains(t, string(gotMsg), "Subject: Reset your Workboard password")
}

func TestSendPasswordResetFailureSurfaces(t *testing.T) {
	m := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, nil)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := m.SendPasswordReset("user@example.com", "pwreset:abc123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestDisabledMailerIsNoOp(t *testing.T) {
	m := New(config.SMTPConfig{}, nil)
	require.False(t, m.Enabled())

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called when mail is disabled")
		return nil
	}
	require.NoError(t, m.SendPasswordReset("user@example.com", "tok"))
}

func TestAuthOnlyWithUsername(t *testing.T) {
	var gotAuth smtp.Auth
	m := New(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587,
		Username: "mailer", Password: "secret",
	}, nil)
	m.send = func(_ string, a smtp.Auth, _ string, _ []string, _ []byte) error {
		gotAuth = a
		return nil
	}

	require.NoError(t, m.SendPasswordReset("user@example.com", "tok"))
	require.NotNil(t, gotAuth)
}

package mail

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/smtp"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	data := InstanceMailData{
		Name:         "Ada Lovelace",
		AppName:      "acme",
		URL:          "https://acme.example.com",
		DashboardURL: "https://geohost.example.com/#/dashboard?q=acme",
		SupportEmail: "support@example.com",
	}

	ready, err := Render(TemplateReady, data)
	require.NoError(t, err)
	assert.Contains(t, ready, "Ada Lovelace")
	assert.Contains(t, ready, "https://acme.example.com")
	assert.Contains(t, ready, "support@example.com")

	failed, err := Render(TemplateError, data)
	require.NoError(t, err)
	assert.Contains(t, failed, "could not prepare")
}

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := &smtpMailer{
		cfg: Config{Host: "smtp.example.com", Port: 2525, From: "noreply@example.com"},
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	err := m.Send(context.Background(), Message{To: []string{"owner@example.com"}, Subject: "acme is ready", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"owner@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(string(gotMsg), "From: noreply@example.com\r\n"))
	assert.Contains(t, string(gotMsg), "Subject: acme is ready\r\n")
	assert.True(t, strings.HasSuffix(string(gotMsg), "\r\n\r\n<p>hi</p>"))
}

func TestSMTPMailer_NotConfigured(t *testing.T) {
	err := NewSMTPMailer(Config{}).Send(context.Background(), Message{To: []string{"a@b.c"}})
	assert.Error(t, err)
}

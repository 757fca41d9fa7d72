package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"github.com/pkg/errors"
	"html/template"
	"net/smtp"
	"strconv"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	TemplateReady = "ready.html"
	TemplateError = "error.html"
)

type (
	Mailer interface {
		Send(ctx context.Context, msg Message) error
	}

	Message struct {
		To      []string
		Subject string
		HTML    string
	}

	// InstanceMailData feeds both instance notification templates.
	InstanceMailData struct {
		Name         string
		AppName      string
		URL          string
		DashboardURL string
		SupportEmail string
	}

	Config struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}

	smtpMailer struct {
		cfg  Config
		auth smtp.Auth
		send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	}
)

func NewSMTPMailer(cfg Config) Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &smtpMailer{cfg: cfg, auth: auth, send: smtp.SendMail}
}

// Render executes one of the embedded templates.
func Render(name string, data InstanceMailData) (string, error) {
	buf := bytes.Buffer{}
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Host == "" {
		return errors.New("smtp host is not configured")
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := m.send(addr, m.auth, m.cfg.From, msg.To, buildMessage(m.cfg.From, msg)); err != nil {
		return errors.Wrap(err, "failed to send mail")
	}
	return nil
}

func buildMessage(from string, msg Message) []byte {
	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(msg.To, ",")},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=\"utf-8\""},
	}

	var b strings.Builder
	for _, h := range headers {
		b.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	b.WriteString("\r\n" + msg.HTML)
	return []byte(b.String())
}

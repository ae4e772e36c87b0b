package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/illegalcall/thumbdesk/internal/models"
)

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, email models.Email) error
}

// HTTPMailer posts emails to a JSON email API such as Resend.
type HTTPMailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

func NewHTTPMailer(endpoint, apiKey, from string, timeout time.Duration) *HTTPMailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: timeout},
	}
}

type apiEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *HTTPMailer) Send(ctx context.Context, email models.Email) error {
	body, err := json.Marshal(apiEmail{From: m.from, To: email.To, Subject: email.Subject, HTML: email.HTML})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email request failed with status %d", resp.StatusCode)
	}
	return nil
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	From     string
	User     string
	Password string
	Host     string
	Port     int
}

// SMTPMailer sends HTML email through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, email models.Email) error {
	msg, err := buildMessage(m.cfg.From, email)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Password != "" {
		user := m.cfg.User
		if user == "" {
			user = m.cfg.From
		}
		auth = smtp.PlainAuth("", user, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, email.To, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, email models.Email) ([]byte, error) {
	var msg bytes.Buffer
	mw := multipart.NewWriter(&msg)

	msg.WriteString("MIME-version: 1.0;\r\n")
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeHeader(email.Subject)))
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s\r\n", mw.Boundary()))
	msg.WriteString("\r\n")

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", "text/html; charset=UTF-8")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create email body part: %w", err)
	}
	if _, err := pw.Write([]byte(email.HTML)); err != nil {
		return nil, fmt.Errorf("failed to write email body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return msg.Bytes(), nil
}

// sanitizeHeader strips line breaks so user-supplied titles cannot inject headers.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// NoopMailer only logs. It is used when no email transport is configured.
type NoopMailer struct {
	Logger *slog.Logger
}

func (m NoopMailer) Send(_ context.Context, email models.Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Email transport not configured; skipping", "to", email.To, "subject", email.Subject)
	return nil
}

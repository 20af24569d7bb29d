package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const brevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// BrevoConfig holds the transactional email settings.
type BrevoConfig struct {
	APIKey      string
	FromEmail   string
	FromName    string
	ResetURL    string // base link for password reset, e.g. https://portal.example.com/reset-password
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Brevo sends lifecycle emails through the Brevo (formerly Sendinblue) API.
type Brevo struct {
	cfg        BrevoConfig
	endpoint   string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	configured bool
}

var _ Dispatcher = (*Brevo)(nil)

func NewBrevo(cfg BrevoConfig, logger *zap.Logger) *Brevo {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "brevo",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Brevo{
		cfg:        cfg,
		endpoint:   brevoAPIURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
		configured: cfg.APIKey != "" && cfg.FromEmail != "" && cfg.FromName != "",
	}
}

func (b *Brevo) IsConfigured() bool {
	return b.configured
}

type sendEmailReq struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HtmlContent string              `json:"htmlContent"`
}

func (b *Brevo) Dispatch(ctx context.Context, n Notification) error {
	if !b.configured {
		return fmt.Errorf("brevo client not configured, %s email to %s skipped", n.Kind, n.Email)
	}
	subject, body, err := b.render(n)
	if err != nil {
		return err
	}
	_, err = b.cb.Execute(func() (interface{}, error) {
		return nil, b.send(ctx, n.Email, n.Name, subject, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("brevo unavailable: %w", err)
	}
	return err
}

func (b *Brevo) send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	to := map[string]string{"email": toEmail}
	if toName != "" {
		to["name"] = toName
	}
	payload, err := json.Marshal(sendEmailReq{
		Sender:      map[string]string{"email": b.cfg.FromEmail, "name": b.cfg.FromName},
		To:          []map[string]string{to},
		Subject:     subject,
		HtmlContent: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request for Brevo: %w", err)
	}
	req.Header.Set("api-key", b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo send email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errorBody); decodeErr != nil {
			return fmt.Errorf("brevo API error: status %d", resp.StatusCode)
		}
		return fmt.Errorf("brevo API error: status %d, body: %v", resp.StatusCode, errorBody)
	}
	return nil
}

func (b *Brevo) render(n Notification) (string, string, error) {
	name := html.EscapeString(n.Name)
	switch n.Kind {
	case KindVerificationOTP:
		return "Verify your email",
			fmt.Sprintf("<p>Hi %s,</p><p>Your verification code is <strong>%s</strong>. It expires in %s.</p>",
				name, html.EscapeString(n.Code), until(n.ExpiresAt, n.OccurredAt)), nil
	case KindPasswordReset:
		link := b.resetLink(n)
		return "Reset your password",
			fmt.Sprintf("<p>Hi %s,</p><p><a href=\"%s\">Reset your password</a>. The link expires in %s.</p><p>If you did not ask for this, ignore this email.</p>",
				name, html.EscapeString(link), until(n.ExpiresAt, n.OccurredAt)), nil
	case KindAccountApproved:
		return "Your account has been approved",
			fmt.Sprintf("<p>Hi %s,</p><p>Your placement portal account is now active.</p>", name), nil
	case KindAccountRejected:
		reason := "No reason was given."
		if n.Reason != "" {
			reason = "Reason: " + html.EscapeString(n.Reason)
		}
		return "Your account request was not approved",
			fmt.Sprintf("<p>Hi %s,</p><p>Your placement portal account was not approved. %s</p>", name, reason), nil
	}
	return "", "", fmt.Errorf("no email template for %q", n.Kind)
}

func (b *Brevo) resetLink(n Notification) string {
	base := b.cfg.ResetURL
	if base == "" {
		return n.Token
	}
	q := url.Values{}
	q.Set("email", n.Email)
	q.Set("token", n.Token)
	return base + "?" + q.Encode()
}

func until(expires *time.Time, from time.Time) string {
	if expires == nil {
		return "a short while"
	}
	return fmt.Sprintf("%d minutes", int(expires.Sub(from).Round(time.Minute).Minutes()))
}

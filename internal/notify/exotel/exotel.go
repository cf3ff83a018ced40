// Package exotel sends SMS through the Exotel REST API.
//
//	POST https://<subdomain>/v1/Accounts/<sid>/Sms/send
//	Authorization: Basic base64(<api_key>:<api_token>)
//	Content-Type: application/x-www-form-urlencoded
//
//	From=<sender>&To=<destination>&Body=<text>
package exotel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nadzzz/farmline/internal/config"
	"github.com/nadzzz/farmline/internal/notify"
)

// Sender implements notify.Sender for Exotel.
type Sender struct {
	cfg     config.ExotelConfig
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Option customizes a Sender.
type Option func(*Sender)

// WithBaseURL overrides "https://<subdomain>", e.g. for tests.
func WithBaseURL(u string) Option {
	return func(s *Sender) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

// New creates a Sender. An incomplete config is accepted; Send then returns
// notify.ErrNotConfigured.
func New(cfg config.ExotelConfig, opts ...Option) *Sender {
	subdomain := cfg.Subdomain
	if subdomain == "" {
		subdomain = "api.exotel.com"
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	s := &Sender{
		cfg:     cfg,
		baseURL: "https://" + subdomain,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !cfg.Complete() {
		slog.Warn("exotel credentials incomplete, SMS disabled",
			"has_api_key", cfg.APIKey != "",
			"has_api_token", cfg.APIToken != "",
			"has_account_sid", cfg.AccountSID != "",
			"has_sender", cfg.Sender != "")
	}
	return s
}

// Send delivers one SMS.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.cfg.Complete() {
		return notify.ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("exotel send: empty destination")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("exotel send: %w", err)
	}

	form := url.Values{
		"From": {s.cfg.Sender},
		"To":   {msg.To},
		"Body": {msg.Body},
	}
	endpoint := fmt.Sprintf("%s/v1/Accounts/%s/Sms/send", s.baseURL, url.PathEscape(s.cfg.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("exotel send: %w", err)
	}
	req.SetBasicAuth(s.cfg.APIKey, s.cfg.APIToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("exotel send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("exotel send: status %d: %s", resp.StatusCode, body)
	}

	slog.Debug("exotel send success", "to", notify.MaskPhone(msg.To), "status", resp.StatusCode)
	return nil
}

// Package webhook provides a notify.Sender that POSTs notifications as JSON
// to an HTTP endpoint, signed with HMAC-SHA256 and retried with exponential
// backoff. The receiving side is typically the bot process that owns the
// messaging channel.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xraph/topup/notify"
)

// Header names set on every delivery.
const (
	SignatureHeader = "X-Topup-Signature"
	EventHeader     = "X-Topup-Event"
	DeliveryHeader  = "X-Topup-Delivery"
)

var (
	ErrNoURL            = errors.New("webhook: url is required")
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)

// Config configures the webhook sender.
type Config struct {
	URL             string
	Secret          string
	MaxRetries      uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Client          *http.Client
	Logger          *slog.Logger
}

// Sender delivers notifications over HTTP.
type Sender struct {
	url             string
	secret          string
	maxRetries      uint
	initialInterval time.Duration
	maxInterval     time.Duration
	client          *http.Client
	logger          *slog.Logger
}

var _ notify.Sender = (*Sender)(nil)

// New creates a webhook sender.
func New(cfg Config) (*Sender, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sender{
		url:             cfg.URL,
		secret:          cfg.Secret,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		client:          cfg.Client,
		logger:          cfg.Logger,
	}, nil
}

// Send implements notify.Sender.
func (s *Sender) Send(ctx context.Context, n *notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("webhook: marshal notification: %w", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.initialInterval
	eb.MaxInterval = s.maxInterval

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, s.post(ctx, n, payload)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(s.maxRetries),
	)
	if err != nil {
		return fmt.Errorf("webhook: deliver %s after %d attempt(s): %w", n.ID, attempt, err)
	}

	s.logger.Debug("webhook delivered",
		"notification_id", n.ID.String(),
		"event", n.Event,
		"attempts", attempt,
	)
	return nil
}

func (s *Sender) post(ctx context.Context, n *notify.Notification, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(n.Event))
	req.Header.Set(DeliveryHeader, n.ID.String())
	if s.secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, s.secret, time.Now().Unix()))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	_ = resp.Body.Close()                 //nolint:errcheck // body fully read

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
		return fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
}

// Sign returns the signature header value "t={timestamp},v1={hex}" where the
// MAC covers "{timestamp}.{payload}".
func Sign(payload []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, computeSignature(timestamp, payload, secret))
}

// Verify checks a signature header produced by Sign. A zero tolerance
// disables the timestamp age check.
func Verify(payload []byte, header, secret string, tolerance time.Duration) error {
	var (
		timestamp int64
		sig       string
		err       error
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
		case "v1":
			sig = v
		}
	}
	if timestamp == 0 || sig == "" {
		return ErrInvalidSignature
	}
	if tolerance > 0 && time.Since(time.Unix(timestamp, 0)) > tolerance {
		return ErrInvalidSignature
	}

	expected := computeSignature(timestamp, payload, secret)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

func computeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

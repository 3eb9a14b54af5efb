// Package notify dispatches progress events to registered notification
// channels. The built-in driver POSTs events to a webhook URL with
// optional HMAC-SHA256 signing.
//
// Delivery is best-effort from the pipeline's point of view: the tracker
// swallows and logs sink errors. Within a single dispatch the webhook
// driver retries transient failures with exponential backoff.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/models"
)

// Service fans progress events out to all subscribed channels. It
// implements contracts.ProgressSink.
type Service struct {
	client    *http.Client
	onFailure func()

	chMu     sync.RWMutex
	channels []models.NotificationChannel
}

// Option configures the notification service.
type Option func(*Service)

// WithFailureHook registers fn to be called once per failed channel
// delivery, after retries are exhausted.
func WithFailureHook(fn func()) Option {
	return func(s *Service) { s.onFailure = fn }
}

// NewService creates a notification service with no channels registered.
func NewService(opts ...Option) *Service {
	s := &Service{
		client: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterChannel adds a notification channel.
func (s *Service) RegisterChannel(channel models.NotificationChannel) {
	s.chMu.Lock()
	s.channels = append(s.channels, channel)
	s.chMu.Unlock()
	log.Info().Str("channel", channel.Name).Str("url", channel.URL).Msg("Progress notification channel registered")
}

// Notify delivers the event to every active subscribed channel. Channels
// are independent: one channel failing does not stop the others, and the
// first failure is returned so the caller can log it.
func (s *Service) Notify(ctx context.Context, event models.ProgressEvent) error {
	s.chMu.RLock()
	channels := append([]models.NotificationChannel(nil), s.channels...)
	s.chMu.RUnlock()

	var firstErr error
	for _, ch := range channels {
		if !ch.Active || !subscribes(ch, string(event.Type)) {
			continue
		}
		if err := s.send(ctx, ch, event); err != nil {
			log.Warn().Str("channel", ch.Name).Str("type", string(event.Type)).Err(err).Msg("Progress notification failed")
			if s.onFailure != nil {
				s.onFailure()
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// send posts the event as JSON with HMAC signing and backoff retries.
func (s *Service) send(ctx context.Context, channel models.NotificationChannel, event models.ProgressEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "ContainerAssist-Webhook/1.0")
		req.Header.Set("X-Cassist-Event", string(event.Type))
		req.Header.Set("X-Cassist-Session", event.SessionID)

		if channel.Secret != "" {
			mac := hmac.New(sha256.New, []byte(channel.Secret))
			mac.Write(body)
			req.Header.Set("X-Cassist-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// Client errors won't heal on retry.
			return backoff.Permanent(fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, channel.URL))
		default:
			return fmt.Errorf("webhook HTTP %d from %s", resp.StatusCode, channel.URL)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}

func subscribes(ch models.NotificationChannel, eventType string) bool {
	if len(ch.Events) == 0 {
		return true // empty means all events
	}
	for _, e := range ch.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

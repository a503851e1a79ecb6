package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/kotodama/internal/webhook"
)

const (
	requestTimeout   = 10 * time.Second
	maxAttempts      = 3
	retryDelay       = 500 * time.Millisecond
	errorBodyMaxSize = 512
)

// HTTPSender posts exchanges as JSON. Server errors and transport failures
// are retried with a linear delay, client errors are not.
type HTTPSender struct {
	webhookURL string
	client     *http.Client
	retryDelay time.Duration
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: requestTimeout},
		retryDelay: retryDelay,
	}
}

// statusError is a non-2xx answer from the receiver.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("webhook returned status %d", e.code)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.code, e.body)
}

func (s *HTTPSender) SendExchange(ctx context.Context, payload webhook.ExchangePayload) error {
	if s.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal exchange payload: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = s.post(ctx, b)
		if err == nil || attempt == maxAttempts || !retryable(err) {
			return err
		}
		slog.Warn("webhook delivery failed; retrying", "error", err, "attempt", attempt, "guild_id", payload.GuildID)
		timer := time.NewTimer(time.Duration(attempt) * s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *HTTPSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyMaxSize))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return true
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

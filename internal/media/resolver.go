package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/kotodama/internal/observe"
)

const DefaultTimeout = 30 * time.Second

// Resolver tries strategies in order. The first success wins; when all fail
// the most specific error is returned.
type Resolver struct {
	strategies []Strategy
	timeout    time.Duration
	metrics    *observe.Metrics
}

func NewResolver(timeout time.Duration, metrics *observe.Metrics, strategies ...Strategy) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		strategies: strategies,
		timeout:    timeout,
		metrics:    metrics,
	}
}

func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resource, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var best error
	tried := 0
	for _, s := range r.strategies {
		if !s.Supports(req) {
			continue
		}
		tried++
		res, err := r.acquire(ctx, s, req)
		if err == nil {
			r.metrics.RecordMediaAcquisition(ctx, s.Name(), "ok")
			slog.Info("media acquired", "strategy", s.Name(), "title", res.Title)
			return res, nil
		}
		r.metrics.RecordMediaAcquisition(ctx, s.Name(), "error")
		slog.Warn("media strategy failed", "strategy", s.Name(), "error", err)
		if ctx.Err() != nil {
			return nil, err
		}
		if best == nil || specificity(err) > specificity(best) {
			best = err
		}
	}
	if tried == 0 {
		return nil, fmt.Errorf("%w: no strategy accepts %q", ErrUnsupportedFormat, req.target())
	}
	return nil, best
}

func (r *Resolver) acquire(ctx context.Context, s Strategy, req Request) (*Resource, error) {
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := s.Acquire(actx, req)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && specificity(err) == 0 {
			return nil, NewError(s.Name(), ErrTimeout, err)
		}
		return nil, err
	}
	if res == nil || res.Stream == nil {
		return nil, NewError(s.Name(), ErrEmptyStream, nil)
	}
	if res.Title == "" {
		res.Title = defaultTitle(req)
	}
	res.Source = s.Name()
	return res, nil
}

func defaultTitle(req Request) string {
	if req.URL == "" && req.Attachment != nil && req.Attachment.Filename != "" {
		return req.Attachment.Filename
	}
	if t := req.target(); t != "" {
		return t
	}
	return "audio"
}

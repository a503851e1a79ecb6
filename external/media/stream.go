package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	extaudio "github.com/foxseedlab/kotodama/external/audio"
	"github.com/foxseedlab/kotodama/internal/media"
)

const peekSize = 4096

// Launcher rate limits subprocess and fetch launches across every strategy.
type Launcher struct {
	limiter *rate.Limiter
}

func NewLauncher(perSecond float64, burst int) *Launcher {
	if burst < 1 {
		burst = 1
	}
	return &Launcher{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *Launcher) wait(ctx context.Context, strategy string) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return media.NewError(strategy, media.ErrTimeout, fmt.Errorf("launch rate limit: %w", err))
	}
	return nil
}

// lifetime owns the processes and requests behind a stream. It follows the
// acquisition ctx until detach, after which only Close ends it.
type lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
}

func newLifetime(acquisition context.Context) *lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	return &lifetime{
		ctx:    ctx,
		cancel: cancel,
		stop:   context.AfterFunc(acquisition, cancel),
	}
}

// detach reports false when the acquisition ctx already ended.
func (l *lifetime) detach() bool {
	return l.stop()
}

type pcmStream struct {
	io.Reader
	closers []io.Closer
	cancel  context.CancelFunc
	once    sync.Once
}

func (s *pcmStream) Close() error {
	s.once.Do(func() {
		for _, c := range s.closers {
			_ = c.Close()
		}
		s.cancel()
	})
	return nil
}

// awaitAudio blocks until the pipeline yields its first bytes, then hands the
// stream over to the caller. Failures are classified from the process stderr.
func awaitAudio(ctx context.Context, strategy string, life *lifetime, stream *extaudio.ProcessStream, extra ...io.Closer) (io.ReadCloser, error) {
	closers := append([]io.Closer{stream}, extra...)
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
		life.cancel()
	}

	buf := make([]byte, peekSize)
	n, readErr := io.ReadAtLeast(stream, buf, 1)
	if n == 0 {
		closeAll()
		if ctx.Err() != nil {
			return nil, media.NewError(strategy, media.ErrTimeout, ctx.Err())
		}
		return nil, classifyFailure(strategy, stream.Stderr(), readErr)
	}
	if !life.detach() {
		closeAll()
		return nil, media.NewError(strategy, media.ErrTimeout, ctx.Err())
	}
	return &pcmStream{
		Reader:  io.MultiReader(bytes.NewReader(buf[:n]), stream),
		closers: closers,
		cancel:  life.cancel,
	}, nil
}

var errCookieDatabase = errors.New("could not read browser cookies; close the browser or use a cookies.txt file")

func classifyFailure(strategy, stderr string, readErr error) error {
	detail := lastLine(stderr)
	switch {
	case strings.Contains(stderr, "HTTP Error 403"):
		return media.NewError(strategy, media.ErrAccessDenied, errors.New("HTTP 403 Forbidden; the video may be age-restricted, private, or region-locked"))
	case strings.Contains(stderr, "Could not copy Chrome cookie database"):
		return media.NewError(strategy, media.ErrAccessDenied, errCookieDatabase)
	case strings.Contains(stderr, "Unsupported URL"):
		return media.NewError(strategy, media.ErrUnsupportedFormat, errors.New(detail))
	case detail != "":
		return media.NewError(strategy, media.ErrEmptyStream, errors.New(detail))
	case readErr != nil && !errors.Is(readErr, io.EOF):
		return media.NewError(strategy, media.ErrEmptyStream, readErr)
	default:
		return media.NewError(strategy, media.ErrEmptyStream, nil)
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

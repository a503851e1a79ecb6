package media

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	extaudio "github.com/foxseedlab/kotodama/external/audio"
	"github.com/foxseedlab/kotodama/internal/media"
)

// DirectStrategy fetches a plain audio file or Discord attachment over HTTP
// and transcodes it with ffmpeg.
type DirectStrategy struct {
	client   *http.Client
	ffmpeg   *extaudio.FFmpeg
	launcher *Launcher
}

func NewDirectStrategy(ffmpeg *extaudio.FFmpeg, launcher *Launcher) *DirectStrategy {
	return &DirectStrategy{client: &http.Client{}, ffmpeg: ffmpeg, launcher: launcher}
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) Supports(req media.Request) bool { return req.IsDirect() }

func (s *DirectStrategy) Acquire(ctx context.Context, req media.Request) (*media.Resource, error) {
	target := req.URL
	if target == "" && req.Attachment != nil {
		target = req.Attachment.URL
	}
	if err := s.launcher.wait(ctx, s.Name()); err != nil {
		return nil, err
	}

	life := newLifetime(ctx)
	httpReq, err := http.NewRequestWithContext(life.ctx, http.MethodGet, target, nil)
	if err != nil {
		life.cancel()
		return nil, media.NewError(s.Name(), media.ErrInvalidURL, err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "*/*")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		life.cancel()
		if ctx.Err() != nil {
			return nil, media.NewError(s.Name(), media.ErrTimeout, err)
		}
		return nil, media.NewError(s.Name(), media.ErrEmptyStream, err)
	}
	if kind := statusKind(resp.StatusCode, resp.Header.Get("Content-Type")); kind != nil {
		_ = resp.Body.Close()
		life.cancel()
		return nil, media.NewError(s.Name(), kind, fmt.Errorf("fetch %s: %s", target, resp.Status))
	}

	cmd := s.ffmpeg.Command(life.ctx, "pipe:0")
	cmd.Stdin = resp.Body
	stream, err := extaudio.StartPipeline(cmd)
	if err != nil {
		_ = resp.Body.Close()
		life.cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	pcm, err := awaitAudio(ctx, s.Name(), life, stream, resp.Body)
	if err != nil {
		return nil, err
	}
	return &media.Resource{Stream: pcm}, nil
}

func statusKind(code int, contentType string) error {
	switch {
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return media.ErrAccessDenied
	case code >= 400:
		return media.ErrEmptyStream
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "text/html" {
		return media.ErrUnsupportedFormat
	}
	return nil
}

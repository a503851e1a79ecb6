package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kkdai/youtube/v2"

	extaudio "github.com/foxseedlab/kotodama/external/audio"
	"github.com/foxseedlab/kotodama/internal/media"
)

// LibraryStrategy fetches YouTube audio in-process, without yt-dlp.
type LibraryStrategy struct {
	client   *youtube.Client
	ffmpeg   *extaudio.FFmpeg
	launcher *Launcher
}

func NewLibraryStrategy(ffmpeg *extaudio.FFmpeg, launcher *Launcher) *LibraryStrategy {
	return &LibraryStrategy{client: &youtube.Client{}, ffmpeg: ffmpeg, launcher: launcher}
}

func (s *LibraryStrategy) Name() string { return "kkdai" }

func (s *LibraryStrategy) Supports(req media.Request) bool { return req.IsYouTube() }

func (s *LibraryStrategy) Acquire(ctx context.Context, req media.Request) (*media.Resource, error) {
	if err := s.launcher.wait(ctx, s.Name()); err != nil {
		return nil, err
	}
	video, err := s.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, media.NewError(s.Name(), media.ErrEmptyStream, errors.New("no audio formats found for video"))
	}

	life := newLifetime(ctx)
	body, _, err := s.client.GetStreamContext(life.ctx, video, &formats[0])
	if err != nil {
		life.cancel()
		return nil, s.classify(ctx, err)
	}
	cmd := s.ffmpeg.Command(life.ctx, "pipe:0")
	cmd.Stdin = body
	stream, err := extaudio.StartPipeline(cmd)
	if err != nil {
		_ = body.Close()
		life.cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	pcm, err := awaitAudio(ctx, s.Name(), life, stream, body)
	if err != nil {
		return nil, err
	}
	return &media.Resource{Title: video.Title, Stream: pcm}, nil
}

func (s *LibraryStrategy) classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return media.NewError(s.Name(), media.ErrTimeout, err)
	case errors.Is(err, youtube.ErrLoginRequired), errors.Is(err, youtube.ErrVideoPrivate):
		return media.NewError(s.Name(), media.ErrAccessDenied, err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID), errors.Is(err, youtube.ErrVideoIDMinLength):
		return media.NewError(s.Name(), media.ErrInvalidURL, err)
	case strings.Contains(err.Error(), "403"):
		return media.NewError(s.Name(), media.ErrAccessDenied, err)
	default:
		return media.NewError(s.Name(), media.ErrEmptyStream, err)
	}
}

package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type mockStrategy struct {
	name     string
	supports func(Request) bool
	acquire  func(ctx context.Context, req Request) (*Resource, error)
	calls    int
}

func (m *mockStrategy) Name() string { return m.name }

func (m *mockStrategy) Supports(req Request) bool {
	if m.supports == nil {
		return true
	}
	return m.supports(req)
}

func (m *mockStrategy) Acquire(ctx context.Context, req Request) (*Resource, error) {
	m.calls++
	return m.acquire(ctx, req)
}

func okStrategy(name, title string) *mockStrategy {
	return &mockStrategy{
		name: name,
		acquire: func(context.Context, Request) (*Resource, error) {
			return &Resource{Title: title, Stream: io.NopCloser(strings.NewReader("pcm"))}, nil
		},
	}
}

func failingStrategy(name string, kind error) *mockStrategy {
	return &mockStrategy{
		name: name,
		acquire: func(context.Context, Request) (*Resource, error) {
			return nil, NewError(name, kind, errors.New("boom"))
		},
	}
}

const ytURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestResolve_FirstSuccessWins(t *testing.T) {
	first := failingStrategy("link", ErrEmptyStream)
	second := okStrategy("pipe", "Never Gonna Give You Up")
	third := okStrategy("library", "unused")
	r := NewResolver(time.Second, nil, first, second, third)

	res, err := r.Resolve(context.Background(), Request{URL: ytURL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != "pipe" || res.Title != "Never Gonna Give You Up" {
		t.Fatalf("unexpected resource: %+v", res)
	}
	if third.calls != 0 {
		t.Fatal("strategies after the first success must not run")
	}
}

func TestResolve_ReportsMostSpecificError(t *testing.T) {
	r := NewResolver(time.Second, nil,
		failingStrategy("link", ErrEmptyStream),
		failingStrategy("pipe", ErrAccessDenied),
		failingStrategy("library", ErrTimeout),
	)

	_, err := r.Resolve(context.Background(), Request{URL: ytURL})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	var merr *Error
	if !errors.As(err, &merr) || merr.Strategy != "pipe" {
		t.Fatalf("unexpected error detail: %+v", err)
	}
}

func TestResolve_TimeoutIsTyped(t *testing.T) {
	slow := &mockStrategy{
		name: "slow",
		acquire: func(ctx context.Context, _ Request) (*Resource, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	r := NewResolver(20*time.Millisecond, nil, slow)

	_, err := r.Resolve(context.Background(), Request{URL: ytURL})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestResolve_Validation(t *testing.T) {
	r := NewResolver(time.Second, nil, okStrategy("any", "x"))
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{name: "empty", req: Request{}, want: ErrInvalidURL},
		{name: "not a url", req: Request{URL: "hello"}, want: ErrInvalidURL},
		{name: "ftp", req: Request{URL: "ftp://example.com/a.mp3"}, want: ErrInvalidURL},
		{name: "html page", req: Request{URL: "https://example.com/page.html"}, want: ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Resolve(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestResolve_SkipsUnsupportedStrategies(t *testing.T) {
	yt := okStrategy("youtube", "video")
	yt.supports = Request.IsYouTube
	direct := okStrategy("direct", "")
	direct.supports = Request.IsDirect
	r := NewResolver(time.Second, nil, yt, direct)

	res, err := r.Resolve(context.Background(), Request{Attachment: &Attachment{
		URL:      "https://cdn.discordapp.com/attachments/1/2/song.ogg",
		Filename: "song.ogg",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if yt.calls != 0 {
		t.Fatal("youtube strategy must not handle attachments")
	}
	if res.Source != "direct" || res.Title != "song.ogg" {
		t.Fatalf("unexpected resource: %+v", res)
	}
}

func TestURLClassification(t *testing.T) {
	if !IsYouTubeURL("https://youtu.be/abc") || !IsYouTubeURL("https://m.youtube.com/watch?v=x") {
		t.Fatal("expected youtube urls to match")
	}
	if IsYouTubeURL("https://example.com/watch?v=x") {
		t.Fatal("unexpected youtube match")
	}
	if !IsDirectAudioURL("https://example.com/a/b/Track.MP3?sig=1") {
		t.Fatal("expected direct audio match")
	}
	if IsDirectAudioURL("https://example.com/a.flac") {
		t.Fatal("flac is not a supported direct format")
	}
}

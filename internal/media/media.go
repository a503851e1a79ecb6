// Package media turns a URL or an uploaded attachment into a playable PCM
// stream by trying an ordered list of acquisition strategies.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrEmptyStream       = errors.New("empty stream")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTimeout           = errors.New("acquisition timed out")
	ErrInvalidURL        = errors.New("invalid url")
)

var directAudioExt = regexp.MustCompile(`(?i)\.(mp3|ogg|oga|wav|m4a|aac)$`)

var youTubeHosts = map[string]struct{}{
	"www.youtube.com": {},
	"youtube.com":     {},
	"youtu.be":        {},
	"m.youtube.com":   {},
}

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// Request names what to play. When both are set the URL wins.
type Request struct {
	URL        string
	Attachment *Attachment
}

func (r Request) target() string {
	if r.URL != "" {
		return r.URL
	}
	if r.Attachment != nil {
		return r.Attachment.URL
	}
	return ""
}

// IsYouTube reports whether the request URL points at YouTube.
func (r Request) IsYouTube() bool {
	return r.URL != "" && IsYouTubeURL(r.URL)
}

// IsDirect reports whether the request can be fetched as a plain audio file.
func (r Request) IsDirect() bool {
	if r.URL == "" {
		return r.Attachment != nil
	}
	return IsDirectAudioURL(r.URL)
}

func IsYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	_, ok := youTubeHosts[strings.ToLower(u.Hostname())]
	return ok
}

func IsDirectAudioURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return directAudioExt.MatchString(u.Path)
}

// Resource is an acquired stream of 48 kHz stereo s16le PCM. Closing the
// stream stops any process feeding it.
type Resource struct {
	Title  string
	Source string
	Stream io.ReadCloser
}

type Strategy interface {
	Name() string
	Supports(req Request) bool
	// Acquire must return once the first audio bytes are available. ctx only
	// bounds that phase, the returned stream outlives it.
	Acquire(ctx context.Context, req Request) (*Resource, error)
}

// Error is a strategy failure tagged with one of the Err* kinds.
type Error struct {
	Strategy string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Strategy, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Strategy, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(strategy string, kind, err error) *Error {
	return &Error{Strategy: strategy, Kind: kind, Err: err}
}

// specificity orders error kinds from least to most useful to a user.
func specificity(err error) int {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return 5
	case errors.Is(err, ErrEmptyStream):
		return 4
	case errors.Is(err, ErrTimeout):
		return 3
	case errors.Is(err, ErrUnsupportedFormat):
		return 2
	case errors.Is(err, ErrInvalidURL):
		return 1
	default:
		return 0
	}
}

func validate(req Request) error {
	target := req.target()
	if target == "" {
		return fmt.Errorf("%w: no url or attachment", ErrInvalidURL)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, target)
	}
	if req.URL != "" && !req.IsYouTube() && !req.IsDirect() {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path.Base(u.Path))
	}
	return nil
}

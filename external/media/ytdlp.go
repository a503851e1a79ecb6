package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"

	extaudio "github.com/foxseedlab/kotodama/external/audio"
	"github.com/foxseedlab/kotodama/internal/media"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
	youTubeReferer = "https://www.youtube.com/"
)

type YtDlpConfig struct {
	Path    string
	Cookies Cookies
}

func (c YtDlpConfig) path() string {
	if c.Path == "" {
		return "yt-dlp"
	}
	return c.Path
}

func commonArgs(cookies Cookies, skipCookies bool) []string {
	args := []string{
		"--no-playlist",
		"--force-ipv4",
		"--geo-bypass",
		"--user-agent", userAgent,
		"--referer", youTubeReferer,
	}
	if !skipCookies {
		args = append(args, cookies.args()...)
	}
	return args
}

func infoArgs(cookies Cookies, url string) []string {
	args := []string{"-f", "bestaudio[ext=webm]/bestaudio/best", "--no-warnings"}
	args = append(args, commonArgs(cookies, false)...)
	return append(args, "--dump-single-json", url)
}

func pipeArgs(cookies Cookies, skipCookies bool, url string) []string {
	args := []string{"-f", "bestaudio/best", "-o", "-"}
	args = append(args, commonArgs(cookies, skipCookies)...)
	return append(args, url)
}

type ytdlpFormat struct {
	URL    string  `json:"url"`
	ACodec string  `json:"acodec"`
	VCodec string  `json:"vcodec"`
	ABR    float64 `json:"abr"`
}

type ytdlpInfo struct {
	Title              string `json:"title"`
	URL                string `json:"url"`
	RequestedDownloads []struct {
		URL string `json:"url"`
	} `json:"requested_downloads"`
	Formats []ytdlpFormat `json:"formats"`
}

// mediaURL picks the selected format, then the best audio-only format.
func (i ytdlpInfo) mediaURL() string {
	if u := strings.TrimSpace(i.URL); u != "" {
		return u
	}
	if len(i.RequestedDownloads) > 0 && i.RequestedDownloads[0].URL != "" {
		return i.RequestedDownloads[0].URL
	}
	audioOnly := make([]ytdlpFormat, 0, len(i.Formats))
	for _, f := range i.Formats {
		if f.URL == "" || f.ACodec == "" || f.ACodec == "none" {
			continue
		}
		if f.VCodec != "" && f.VCodec != "none" {
			continue
		}
		audioOnly = append(audioOnly, f)
	}
	if len(audioOnly) == 0 {
		return ""
	}
	sort.SliceStable(audioOnly, func(a, b int) bool { return audioOnly[a].ABR > audioOnly[b].ABR })
	return audioOnly[0].URL
}

// LinkStrategy asks yt-dlp for the media URL and lets ffmpeg fetch it.
type LinkStrategy struct {
	cfg      YtDlpConfig
	ffmpeg   *extaudio.FFmpeg
	launcher *Launcher
}

func NewLinkStrategy(cfg YtDlpConfig, ffmpeg *extaudio.FFmpeg, launcher *Launcher) *LinkStrategy {
	return &LinkStrategy{cfg: cfg, ffmpeg: ffmpeg, launcher: launcher}
}

func (s *LinkStrategy) Name() string { return "ytdlp-link" }

func (s *LinkStrategy) Supports(req media.Request) bool { return req.IsYouTube() }

func (s *LinkStrategy) Acquire(ctx context.Context, req media.Request) (*media.Resource, error) {
	if err := s.launcher.wait(ctx, s.Name()); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, s.cfg.path(), infoArgs(s.cfg.Cookies, req.URL)...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, media.NewError(s.Name(), media.ErrTimeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, classifyFailure(s.Name(), string(exitErr.Stderr), err)
		}
		return nil, fmt.Errorf("run yt-dlp: %w", err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, media.NewError(s.Name(), media.ErrEmptyStream, fmt.Errorf("parse yt-dlp json: %w", err))
	}
	link := info.mediaURL()
	if link == "" {
		return nil, media.NewError(s.Name(), media.ErrEmptyStream, errors.New("no direct media url in yt-dlp output"))
	}
	slog.Debug("yt-dlp resolved media url", "title", info.Title)

	if err := s.launcher.wait(ctx, s.Name()); err != nil {
		return nil, err
	}
	life := newLifetime(ctx)
	stream, err := extaudio.StartPipeline(s.ffmpeg.Command(life.ctx, link))
	if err != nil {
		life.cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	pcm, err := awaitAudio(ctx, s.Name(), life, stream)
	if err != nil {
		return nil, err
	}
	return &media.Resource{Title: info.Title, Stream: pcm}, nil
}

// PipeStrategy streams yt-dlp's download straight into ffmpeg.
type PipeStrategy struct {
	cfg         YtDlpConfig
	skipCookies bool
	ffmpeg      *extaudio.FFmpeg
	launcher    *Launcher
}

func NewPipeStrategy(cfg YtDlpConfig, ffmpeg *extaudio.FFmpeg, launcher *Launcher) *PipeStrategy {
	return &PipeStrategy{cfg: cfg, ffmpeg: ffmpeg, launcher: launcher}
}

// NewAnonymousPipeStrategy retries the pipe without cookies, for public videos
// when the configured cookies are rejected or unreadable.
func NewAnonymousPipeStrategy(cfg YtDlpConfig, ffmpeg *extaudio.FFmpeg, launcher *Launcher) *PipeStrategy {
	return &PipeStrategy{cfg: cfg, skipCookies: true, ffmpeg: ffmpeg, launcher: launcher}
}

func (s *PipeStrategy) Name() string {
	if s.skipCookies {
		return "ytdlp-pipe-nocookies"
	}
	return "ytdlp-pipe"
}

func (s *PipeStrategy) Supports(req media.Request) bool {
	if s.skipCookies && !s.cfg.Cookies.Configured() {
		return false
	}
	return req.IsYouTube()
}

func (s *PipeStrategy) Acquire(ctx context.Context, req media.Request) (*media.Resource, error) {
	if err := s.launcher.wait(ctx, s.Name()); err != nil {
		return nil, err
	}
	life := newLifetime(ctx)
	ytdlp := exec.CommandContext(life.ctx, s.cfg.path(), pipeArgs(s.cfg.Cookies, s.skipCookies, req.URL)...)
	ffmpeg := s.ffmpeg.Command(life.ctx, "pipe:0")
	out, err := ytdlp.StdoutPipe()
	if err != nil {
		life.cancel()
		return nil, fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	ffmpeg.Stdin = out

	stream, err := extaudio.StartPipeline(ytdlp, ffmpeg)
	if err != nil {
		life.cancel()
		return nil, fmt.Errorf("start yt-dlp pipeline: %w", err)
	}
	pcm, err := awaitAudio(ctx, s.Name(), life, stream)
	if err != nil {
		return nil, err
	}
	return &media.Resource{Stream: pcm}, nil
}

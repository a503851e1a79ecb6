package media

import (
	"log/slog"

	extaudio "github.com/foxseedlab/kotodama/external/audio"
	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/media"
	"github.com/foxseedlab/kotodama/internal/observe"
	"github.com/samber/do/v2"
)

const (
	launchesPerSecond = 2
	launchBurst       = 4
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*media.Resolver, error) {
		c := do.MustInvoke[*config.Config](i)
		ffmpeg := do.MustInvoke[*extaudio.FFmpeg](i)
		metrics := do.MustInvoke[*observe.Metrics](i)

		ytdlp := YtDlpConfig{
			Path:    c.YtDlpPath,
			Cookies: Cookies{File: c.YtDlpCookiesFile, Browser: c.YtDlpCookiesBrowser},
		}
		if ytdlp.Cookies.File != "" {
			if err := CheckCookiesFile(ytdlp.Cookies.File); err != nil {
				slog.Warn("yt-dlp cookies file looks unusable; export Netscape-format cookies from a logged-in YouTube account", "error", err)
			}
		}

		launcher := NewLauncher(launchesPerSecond, launchBurst)
		return media.NewResolver(c.MediaTimeout(), metrics,
			NewLinkStrategy(ytdlp, ffmpeg, launcher),
			NewPipeStrategy(ytdlp, ffmpeg, launcher),
			NewAnonymousPipeStrategy(ytdlp, ffmpeg, launcher),
			NewLibraryStrategy(ffmpeg, launcher),
			NewDirectStrategy(ffmpeg, launcher),
		), nil
	})
}

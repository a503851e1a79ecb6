package audio

import (
	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.ProvideValue(injector, audio.DecoderFactory(NewDecoder))
	do.ProvideValue(injector, audio.EncoderFactory(NewEncoder))
	do.Provide(injector, func(i do.Injector) (audio.SpeechDetectorFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewSpeechDetectorFactory(c.CaptureVADMode), nil
	})
	do.Provide(injector, func(i do.Injector) (*FFmpeg, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewFFmpeg(c.FFmpegPath), nil
	})
	do.Provide(injector, func(i do.Injector) (audio.Transcoder, error) {
		return do.MustInvoke[*FFmpeg](i), nil
	})
}

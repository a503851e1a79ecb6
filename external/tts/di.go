package tts

import (
	"context"

	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/tts"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (tts.Synthesizer, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewGoogleSynthesizer(context.Background(), c.GoogleCloudCredentialsJSON)
	})
}

package httpapi

import (
	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		c := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*session.Manager](i)
		return NewServer(c.OpsAddr, manager, c.IsDevelopment()), nil
	})
}

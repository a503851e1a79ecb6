package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/settings"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.UsesDatabase() {
			slog.Info("using file repository", "settings_file", cfg.SettingsFile, "conversation_log_file", cfg.ConversationLogFile)
			return NewFileRepository(cfg.SettingsFile, cfg.ConversationLogFile), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		slog.Info("using postgres repository")
		return NewPostgresRepository(p), nil
	})

	do.Provide(injector, func(i do.Injector) (*settings.Store, error) {
		repo := do.MustInvoke[repository.Repository](i)
		store := settings.NewStore(repo)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		if err := store.Load(ctx); err != nil {
			return nil, err
		}
		return store, nil
	})
}

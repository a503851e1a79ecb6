package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/kotodama/external/audio"
	configloader "github.com/foxseedlab/kotodama/external/config"
	"github.com/foxseedlab/kotodama/external/discord"
	"github.com/foxseedlab/kotodama/external/httpapi"
	llmimpl "github.com/foxseedlab/kotodama/external/llm"
	mediaimpl "github.com/foxseedlab/kotodama/external/media"
	repositoryimpl "github.com/foxseedlab/kotodama/external/repository"
	transcriberimpl "github.com/foxseedlab/kotodama/external/transcriber"
	ttsimpl "github.com/foxseedlab/kotodama/external/tts"
	webhookimpl "github.com/foxseedlab/kotodama/external/webhook"
	"github.com/foxseedlab/kotodama/internal/config"
	discordpkg "github.com/foxseedlab/kotodama/internal/discord"
	"github.com/foxseedlab/kotodama/internal/observe"
	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/session"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"
)

const (
	discordConnectTimeout = 20 * time.Second
	shutdownTimeout       = 10 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "llm_provider", cfg.LLMProvider)

	metrics, shutdownMetrics, err := observe.InitProvider()
	if err != nil {
		slog.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(ctx); err != nil {
			slog.Error("metrics shutdown failed", "error", err)
		}
	}()

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg, metrics)

	slog.Info("startup: launching discord bot")
	if err := runBot(cfg, injector); err != nil {
		slog.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config, metrics *observe.Metrics) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, metrics)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	mediaimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	ttsimpl.RegisterDI(injector)
	llmimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	session.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) error {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		return err
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		return err
	}
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		return err
	}
	defer repo.Close()

	connectCtx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(connectCtx); err != nil {
		return err
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		return err
	}
	manager.SetBotUserID(botUserID)

	defs := manager.SlashCommandDefinitions()
	if err := dc.OverwriteSlashCommands(cfg.DiscordGuildID, defs); err != nil {
		slog.Error("failed to register slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		return err
	}

	dc.RegisterVoiceStateUpdateHandler(manager.HandleVoiceStateUpdate)
	dc.RegisterSlashCommandHandler(manager.HandleSlashCommand)
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID, "commands", len(defs))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.RunSweeper(gctx)
	})
	if cfg.OpsAddr != "" {
		server, err := do.Invoke[*httpapi.Server](injector)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	slog.Info("startup: ready")
	err = g.Wait()
	slog.Info("shutting down")
	manager.StopAll(session.StopReasonServerShutdown)
	return err
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/settings"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) LoadSettings(ctx context.Context) (map[string]settings.GuildSettings, error) {
	rows, err := r.pool.Query(ctx, `SELECT guild_id, settings FROM guild_settings`)
	if err != nil {
		return nil, fmt.Errorf("query guild settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]settings.GuildSettings)
	for rows.Next() {
		var guildID string
		var raw []byte
		if err := rows.Scan(&guildID, &raw); err != nil {
			return nil, fmt.Errorf("scan guild settings: %w", err)
		}
		gs := settings.Default()
		if err := json.Unmarshal(raw, &gs); err != nil {
			return nil, fmt.Errorf("decode settings for guild %s: %w", guildID, err)
		}
		out[guildID] = gs
	}
	return out, rows.Err()
}

// SaveSettings upserts every guild in one transaction.
func (r *PostgresRepository) SaveSettings(ctx context.Context, all map[string]settings.GuildSettings) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for guildID, gs := range all {
		raw, err := json.Marshal(gs)
		if err != nil {
			return fmt.Errorf("encode settings for guild %s: %w", guildID, err)
		}
		batch.Queue(
			`INSERT INTO guild_settings (guild_id, settings, updated_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT (guild_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()`,
			guildID, raw)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert guild settings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit guild settings: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertExchange(ctx context.Context, ex repository.Exchange) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_exchanges
		 (guild_id, channel_id, user_id, display_name, transcript, prompt, reply, spoken_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ex.GuildID, ex.ChannelID, ex.UserID, ex.DisplayName, ex.Transcript, ex.Prompt, ex.Reply, ex.SpokenAt)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

package repository

import (
	"context"

	"github.com/foxseedlab/kotodama/internal/settings"
)

type ConversationRepository interface {
	InsertExchange(ctx context.Context, exchange Exchange) error
}

type Repository interface {
	settings.Repository
	ConversationRepository
	Close()
}

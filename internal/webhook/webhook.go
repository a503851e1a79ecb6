package webhook

import (
	"context"
	"time"
)

// ExchangePayload is posted once per conversational round trip.
type ExchangePayload struct {
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Transcript  string    `json:"transcript"`
	Prompt      string    `json:"prompt"`
	Reply       string    `json:"reply"`
	SpokenAt    time.Time `json:"spoken_at"`
}

type Sender interface {
	SendExchange(ctx context.Context, payload ExchangePayload) error
}

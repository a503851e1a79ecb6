package repository

import "time"

// Exchange is one conversational round trip. Audio is never stored.
type Exchange struct {
	ID          string
	GuildID     string
	ChannelID   string
	UserID      string
	DisplayName string
	Transcript  string
	Prompt      string
	Reply       string
	SpokenAt    time.Time
}

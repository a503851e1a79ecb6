// Package capture records each speaking user until silence and runs the
// recorded utterance through transcription, wake word gating and reply.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/kotodama/internal/wakeword"
)

var (
	ErrAlreadyRecording = errors.New("user already has an active capture")
	ErrTrackerClosed    = errors.New("capture tracker is closed")
)

const (
	DefaultSilenceTimeout = 700 * time.Millisecond
	DefaultMinDuration    = time.Second
	DefaultMaxAge         = 10 * time.Minute
	DefaultSweepInterval  = 2 * time.Minute

	// frameBuffer bounds packets waiting for the session goroutine.
	frameBuffer = 128
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
	StateTranscribing
	StateGating
	StateThinking
	StateSpeaking
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateTranscribing:
		return "transcribing"
	case StateGating:
		return "gating"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type Config struct {
	SilenceTimeout time.Duration
	MinDuration    time.Duration
	MaxAge         time.Duration
	SweepInterval  time.Duration
	// TempDir holds the PCM sink files. Empty means os.TempDir().
	TempDir string
}

func (c Config) WithDefaults() Config {
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.MinDuration <= 0 {
		c.MinDuration = DefaultMinDuration
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Recording is a finished utterance handed to the pipeline.
type Recording struct {
	ID            string
	GuildID       string
	UserID        string
	TextChannelID string
	StartedAt     time.Time
	Duration      time.Duration
	// PCM is 48 kHz mono s16le.
	PCM []byte
}

// Pipeline reacts to recordings. Every call receives the capture context,
// which is cancelled by the sweep or when the guild session ends.
type Pipeline interface {
	Transcribe(ctx context.Context, rec Recording) (string, error)
	Gate(rec Recording, transcript string) wakeword.Result
	// Acknowledge answers a bare wake word.
	Acknowledge(ctx context.Context, rec Recording) error
	Think(ctx context.Context, rec Recording, prompt string) (string, error)
	Speak(ctx context.Context, rec Recording, reply string) error
}

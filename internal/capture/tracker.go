package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/observe"
)

type Deps struct {
	Pipeline    Pipeline
	NewDecoder  audio.DecoderFactory
	NewDetector audio.SpeechDetectorFactory
	Metrics     *observe.Metrics
}

// Tracker holds the active captures of one guild, at most one per user.
type Tracker struct {
	guildID string
	cfg     Config
	deps    Deps

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewTracker(guildID string, cfg Config, deps Deps) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		guildID:  guildID,
		cfg:      cfg.WithDefaults(),
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Start begins recording userID. The first packet must be pushed by the caller.
func (t *Tracker) Start(userID, textChannelID string) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTrackerClosed
	}
	if _, ok := t.sessions[userID]; ok {
		return nil, ErrAlreadyRecording
	}

	ctx, cancel := context.WithCancel(t.ctx)
	s := &Session{
		id:            uuid.NewString(),
		guildID:       t.guildID,
		userID:        userID,
		textChannelID: textChannelID,
		startedAt:     time.Now(),
		cfg:           t.cfg,
		deps:          t.deps,
		ctx:           ctx,
		cancel:        cancel,
		frames:        make(chan []byte, frameBuffer),
		done:          make(chan struct{}),
		state:         StateRecording,
	}
	t.sessions[userID] = s
	slog.Debug("capture started", "guild_id", t.guildID, "user_id", userID, "capture_id", s.id)
	go s.run(t.remove)
	return s, nil
}

// Push routes a packet to the user's recording session. It reports false when
// the user has no session that is still recording.
func (t *Tracker) Push(userID string, opus []byte) bool {
	t.mu.Lock()
	s, ok := t.sessions[userID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return s.Push(opus)
}

func (t *Tracker) Has(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[userID]
	return ok
}

func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Sweep cancels sessions older than the max age and forgets them so the user
// can be recorded again. It returns how many were swept.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	var stale []*Session
	for userID, s := range t.sessions {
		if now.Sub(s.startedAt) > t.cfg.MaxAge {
			stale = append(stale, s)
			delete(t.sessions, userID)
		}
	}
	t.mu.Unlock()

	for _, s := range stale {
		slog.Warn("sweeping stale capture", "guild_id", t.guildID, "user_id", s.userID, "capture_id", s.id, "age", now.Sub(s.startedAt).String())
		s.cancel()
	}
	return len(stale)
}

// Close cancels every capture and refuses new ones.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()
}

func (t *Tracker) remove(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.sessions[s.userID]; ok && cur == s {
		delete(t.sessions, s.userID)
	}
}

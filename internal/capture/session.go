package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/observe"
)

// Session is one user's capture. It runs as a single goroutine fed by Push.
type Session struct {
	id            string
	guildID       string
	userID        string
	textChannelID string
	startedAt     time.Time

	cfg  Config
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc
	frames chan []byte
	done   chan struct{}

	mu    sync.Mutex
	state State
}

func (s *Session) ID() string           { return s.id }
func (s *Session) UserID() string       { return s.userID }
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Done is closed once the session reached a terminal state and left its tracker.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Push hands an Opus packet to the recorder. Packets are refused once the
// session stopped recording, and dropped when the buffer is full.
func (s *Session) Push(opus []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return false
	}
	select {
	case s.frames <- append([]byte(nil), opus...):
		return true
	default:
		slog.Debug("capture buffer full; dropping packet", "guild_id", s.guildID, "user_id", s.userID, "capture_id", s.id)
		return false
	}
}

func (s *Session) run(onExit func(*Session)) {
	status := observe.CaptureFailed
	defer func() {
		if r := recover(); r != nil {
			slog.Error("capture session panicked", "panic", r, "guild_id", s.guildID, "user_id", s.userID, "capture_id", s.id)
			status = observe.CaptureFailed
		}
		s.setState(StateDone)
		s.cancel()
		s.deps.Metrics.RecordCapture(context.Background(), status)
		slog.Debug("capture session finished", "guild_id", s.guildID, "user_id", s.userID, "capture_id", s.id, "status", status)
		onExit(s)
		close(s.done)
	}()
	status = s.process()
}

func (s *Session) process() string {
	rec, status, err := s.record()
	if err != nil {
		return s.fail("record", err)
	}
	if status != "" {
		return status
	}
	return s.react(rec)
}

func (s *Session) record() (Recording, string, error) {
	file, err := os.CreateTemp(s.cfg.TempDir, "capture-*.pcm")
	if err != nil {
		return Recording{}, "", fmt.Errorf("create sink: %w", err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}()

	dec, err := s.deps.NewDecoder()
	if err != nil {
		return Recording{}, "", fmt.Errorf("create decoder: %w", err)
	}
	detector := s.deps.NewDetector()

	var written int64
	timer := time.NewTimer(s.cfg.SilenceTimeout)
	defer timer.Stop()

recording:
	for {
		select {
		case <-s.ctx.Done():
			return Recording{}, observe.CaptureCancelled, nil
		case pkt := <-s.frames:
			pcm, err := dec.Decode(pkt)
			if err != nil {
				slog.Debug("failed to decode opus packet", "error", err, "guild_id", s.guildID, "user_id", s.userID)
				continue
			}
			n, err := file.Write(audio.Int16ToBytes(pcm))
			written += int64(n)
			if err != nil {
				return Recording{}, "", fmt.Errorf("write sink: %w", err)
			}
			if detector.IsSpeech(pcm) {
				timer.Reset(s.cfg.SilenceTimeout)
			}
		case <-timer.C:
			break recording
		}
	}

	s.setState(StateFinalizing)
	duration := audio.PCMDuration(written, audio.CaptureChannels)
	if duration < s.cfg.MinDuration {
		slog.Debug("discarding short capture", "guild_id", s.guildID, "user_id", s.userID, "duration_ms", duration.Milliseconds())
		return Recording{}, observe.CaptureTooShort, nil
	}
	pcm, err := os.ReadFile(file.Name())
	if err != nil {
		return Recording{}, "", fmt.Errorf("read sink: %w", err)
	}
	return Recording{
		ID:            s.id,
		GuildID:       s.guildID,
		UserID:        s.userID,
		TextChannelID: s.textChannelID,
		StartedAt:     s.startedAt,
		Duration:      duration,
		PCM:           pcm,
	}, "", nil
}

func (s *Session) react(rec Recording) string {
	s.setState(StateTranscribing)
	start := time.Now()
	transcript, err := s.deps.Pipeline.Transcribe(s.ctx, rec)
	s.deps.Metrics.ObserveSTT(s.ctx, time.Since(start))
	if err != nil {
		return s.fail("transcribe", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		slog.Info("empty transcript", "guild_id", s.guildID, "user_id", s.userID, "capture_id", s.id)
		return observe.CaptureEmpty
	}

	s.setState(StateGating)
	res := s.deps.Pipeline.Gate(rec, transcript)
	if !res.Triggered {
		slog.Debug("wake word not detected", "guild_id", s.guildID, "user_id", s.userID)
		return observe.CaptureIgnored
	}
	if res.Remainder == "" {
		s.setState(StateSpeaking)
		if err := s.deps.Pipeline.Acknowledge(s.ctx, rec); err != nil {
			return s.fail("acknowledge", err)
		}
		return observe.CaptureAcknowledged
	}

	s.setState(StateThinking)
	reply, err := s.deps.Pipeline.Think(s.ctx, rec, res.Remainder)
	if err != nil {
		return s.fail("think", err)
	}
	s.setState(StateSpeaking)
	if err := s.deps.Pipeline.Speak(s.ctx, rec, reply); err != nil {
		return s.fail("speak", err)
	}
	return observe.CaptureReplied
}

func (s *Session) fail(stage string, err error) string {
	if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
		slog.Info("capture cancelled", "stage", stage, "guild_id", s.guildID, "user_id", s.userID, "capture_id", s.id)
		return observe.CaptureCancelled
	}
	slog.Error("capture failed", "stage", stage, "error", err, "guild_id", s.guildID, "user_id", s.userID, "capture_id", s.id)
	return observe.CaptureFailed
}

// Package playback owns the single audio output of a guild and the FIFO queue
// that feeds it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/foxseedlab/kotodama/internal/audio"
)

type State int

const (
	StateIdle State = iota
	StateBuffering
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// silenceTailFrames are sent after a non-forced stop so clients don't
// interpolate the cut.
const silenceTailFrames = 5

var errTrackHalted = errors.New("track halted")

// Output is the sending half of a voice connection.
type Output interface {
	SendOpus(frame []byte) error
	SetSpeaking(speaking bool) error
}

// OpenFunc lazily produces 48 kHz stereo s16le PCM for one playback.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

type Player struct {
	guildID    string
	newEncoder audio.EncoderFactory

	mu      sync.Mutex
	out     Output
	state   State
	current *track
	onIdle  func()
	onError func(error)

	// sendMu serializes frames so a halted track never sends after its
	// successor started.
	sendMu sync.Mutex
}

type track struct {
	title  string
	ctx    context.Context
	cancel context.CancelFunc

	haltOnce sync.Once
	halted   chan struct{}
	force    bool
}

func newTrack(title string) *track {
	ctx, cancel := context.WithCancel(context.Background())
	return &track{
		title:  title,
		ctx:    ctx,
		cancel: cancel,
		halted: make(chan struct{}),
	}
}

func (t *track) halt(force bool) {
	t.haltOnce.Do(func() {
		t.force = force
		close(t.halted)
		t.cancel()
	})
}

func (t *track) isHalted() bool {
	select {
	case <-t.halted:
		return true
	default:
		return false
	}
}

func newPlayer(guildID string, out Output, newEncoder audio.EncoderFactory, onError func(error)) *Player {
	return &Player{
		guildID:    guildID,
		out:        out,
		newEncoder: newEncoder,
		onError:    onError,
	}
}

// OnIdle sets the single idle edge handler, replacing any earlier one.
func (p *Player) OnIdle(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onIdle = fn
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// NowPlaying returns the title of the active track, if any.
func (p *Player) NowPlaying() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", false
	}
	return p.current.title, true
}

// Play supersedes whatever is playing. The superseded track does not fire the
// idle edge.
func (p *Player) Play(title string, open OpenFunc) {
	p.mu.Lock()
	prev := p.current
	t := p.startLocked(title)
	p.mu.Unlock()

	if prev != nil {
		prev.halt(true)
	}
	go p.run(t, open)
}

// PlayIfIdle starts title only when no track is active. The check and the
// start happen under one lock, so it never supersedes a track that began
// in between.
func (p *Player) PlayIfIdle(title string, open OpenFunc) bool {
	p.mu.Lock()
	if p.current != nil {
		p.mu.Unlock()
		return false
	}
	t := p.startLocked(title)
	p.mu.Unlock()

	go p.run(t, open)
	return true
}

func (p *Player) startLocked(title string) *track {
	t := newTrack(title)
	p.current = t
	p.state = StateBuffering
	return t
}

// Stop halts the active track. Without force a short silence tail is sent
// before going idle. The idle edge still fires, so queued items continue.
func (p *Player) Stop(force bool) bool {
	p.mu.Lock()
	t := p.current
	p.mu.Unlock()
	if t == nil {
		return false
	}
	t.halt(force)
	return true
}

// StopIf force-stops the active track only when it carries title.
func (p *Player) StopIf(title string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.title != title {
		return false
	}
	p.current.halt(true)
	return true
}

func (p *Player) bindOutput(out Output) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = out
}

func (p *Player) output() Output {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

func (p *Player) run(t *track, open OpenFunc) {
	err := p.stream(t, open)
	if err != nil && !t.isHalted() {
		p.reportError(fmt.Errorf("play %q: %w", t.title, err))
	}
	if t.isHalted() && !t.force {
		p.sendSilenceTail(t)
	}
	p.finish(t)
}

func (p *Player) stream(t *track, open OpenFunc) error {
	src, err := open(t.ctx)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()
	enc, err := p.newEncoder()
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}

	buf := make([]byte, audio.PlaybackFrameBytes)
	started := false
	for {
		if t.isHalted() {
			return nil
		}
		n, err := io.ReadFull(src, buf)
		last := false
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			clear(buf[n:])
			last = true
		case err != nil:
			return fmt.Errorf("read pcm: %w", err)
		}

		frame, err := enc.Encode(audio.BytesToInt16(buf))
		if err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		if !started {
			p.markPlaying(t)
			started = true
		}
		if err := p.send(t, frame); err != nil {
			if errors.Is(err, errTrackHalted) {
				return nil
			}
			return err
		}
		if last {
			return nil
		}
	}
}

func (p *Player) send(t *track, frame []byte) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if t.isHalted() {
		return errTrackHalted
	}
	if err := p.output().SendOpus(frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

func (p *Player) sendSilenceTail(t *track) {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	for i := 0; i < silenceTailFrames; i++ {
		if !p.isCurrent(t) {
			return
		}
		if err := p.output().SendOpus(audio.SilenceFrame); err != nil {
			return
		}
	}
}

func (p *Player) isCurrent(t *track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current == t
}

func (p *Player) markPlaying(t *track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != t {
		return
	}
	p.state = StatePlaying
	if err := p.out.SetSpeaking(true); err != nil {
		slog.Debug("failed to set speaking flag", "error", err, "guild_id", p.guildID)
	}
}

func (p *Player) finish(t *track) {
	t.cancel()
	p.mu.Lock()
	if p.current != t {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.state = StateIdle
	if err := p.out.SetSpeaking(false); err != nil {
		slog.Debug("failed to clear speaking flag", "error", err, "guild_id", p.guildID)
	}
	onIdle := p.onIdle
	p.mu.Unlock()

	if onIdle != nil {
		onIdle()
	}
}

func (p *Player) reportError(err error) {
	if p.onError != nil {
		p.onError(err)
		return
	}
	slog.Error("audio player error", "error", err, "guild_id", p.guildID)
}

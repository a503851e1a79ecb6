package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/capture"
	"github.com/foxseedlab/kotodama/internal/llm"
	"github.com/foxseedlab/kotodama/internal/playback"
	"github.com/foxseedlab/kotodama/internal/settings"
)

func newTestSession(t *testing.T) (*guildSession, *fixture) {
	t.Helper()
	m, f := newTestManager(t)
	f.dc.names["user-1"] = "Ally"
	gs, err := m.startSession("guild-1", "vc-1", "text-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gs, f
}

func testRecording(id string) capture.Recording {
	return capture.Recording{
		ID:            id,
		GuildID:       "guild-1",
		UserID:        "user-1",
		TextChannelID: "text-1",
		StartedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:      2 * time.Second,
	}
}

func TestGuildSession_GateLogsTranscriptToLogChannel(t *testing.T) {
	gs, f := newTestSession(t)
	if _, err := gs.manager.deps.Settings.Update(context.Background(), "guild-1", func(s *settings.GuildSettings) {
		s.LogChannelID = "log-1"
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := gs.Gate(testRecording("rec-1"), "hey bot ping @everyone in #general")

	if !res.Triggered || res.Remainder == "" {
		t.Fatalf("expected wake word to trigger, got %+v", res)
	}
	sent := f.dc.sent()
	if len(sent) != 1 || sent[0].channelID != "log-1" {
		t.Fatalf("unexpected sent messages: %+v", sent)
	}
	if strings.ContainsAny(sent[0].content, "@#") {
		t.Fatalf("mentions were not stripped: %q", sent[0].content)
	}
	if !strings.Contains(sent[0].content, "Ally") {
		t.Fatalf("expected display name in log line: %q", sent[0].content)
	}
	if _, ok := gs.drafts["rec-1"]; !ok {
		t.Fatal("expected a draft for the triggered recording")
	}
}

func TestGuildSession_GateFallsBackToTextChannel(t *testing.T) {
	gs, f := newTestSession(t)
	f.dc.failChannels["log-1"] = true
	if _, err := gs.manager.deps.Settings.Update(context.Background(), "guild-1", func(s *settings.GuildSettings) {
		s.LogChannelID = "log-1"
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := gs.Gate(testRecording("rec-1"), "just chatting")

	if res.Triggered {
		t.Fatalf("expected no trigger, got %+v", res)
	}
	sent := f.dc.sent()
	if len(sent) != 1 || sent[0].channelID != "text-1" {
		t.Fatalf("unexpected sent messages: %+v", sent)
	}
	if len(gs.drafts) != 0 {
		t.Fatal("untriggered recordings must not leave drafts")
	}
}

func TestGuildSession_ThinkSendsUserTurnOnce(t *testing.T) {
	gs, f := newTestSession(t)
	rec := testRecording("rec-1")
	gs.Gate(rec, "hey bot what is love")

	reply, err := gs.Think(context.Background(), rec, "what is love")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Do what thou wilt." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(f.llm.messages) != 1 {
		t.Fatalf("expected one model call, got %d", len(f.llm.messages))
	}
	got := f.llm.messages[0]
	if len(got) != 2 || got[0].Role != llm.RoleSystem || got[0].Content != settings.DefaultPersona {
		t.Fatalf("unexpected model messages: %+v", got)
	}
	if got[1].Role != llm.RoleUser || got[1].Content != "what is love" {
		t.Fatalf("unexpected user turn: %+v", got[1])
	}
}

func TestGuildSession_ThinkFallbacks(t *testing.T) {
	gs, f := newTestSession(t)

	f.llm.err = errors.New("rate limited")
	reply, err := gs.Think(context.Background(), testRecording("rec-1"), "hello")
	if err != nil || reply != llm.FallbackReply {
		t.Fatalf("expected fallback reply, got %q err=%v", reply, err)
	}

	f.llm.err = nil
	f.llm.reply = ""
	reply, err = gs.Think(context.Background(), testRecording("rec-2"), "hello again")
	if err != nil || reply != llm.EmptyReply {
		t.Fatalf("expected empty reply marker, got %q err=%v", reply, err)
	}
}

func TestGuildSession_ThinkCancelledDropsDraft(t *testing.T) {
	gs, f := newTestSession(t)
	rec := testRecording("rec-1")
	gs.Gate(rec, "hey bot are you there")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.llm.err = context.Canceled

	if _, err := gs.Think(ctx, rec, "are you there"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if len(gs.drafts) != 0 {
		t.Fatal("expected draft to be dropped on cancellation")
	}
}

func TestGuildSession_SpeakRecordsExchange(t *testing.T) {
	gs, f := newTestSession(t)
	rec := testRecording("rec-1")
	gs.Gate(rec, "hey bot what is love")
	reply, err := gs.Think(context.Background(), rec, "what is love")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := gs.Speak(context.Background(), rec, reply); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.repo.exchanges) != 1 {
		t.Fatalf("expected one stored exchange, got %d", len(f.repo.exchanges))
	}
	ex := f.repo.exchanges[0]
	if ex.ID == "" || ex.DisplayName != "Ally" || ex.Transcript != "hey bot what is love" || ex.Prompt != "what is love" || ex.Reply != reply {
		t.Fatalf("unexpected exchange: %+v", ex)
	}
	if !ex.SpokenAt.Equal(rec.StartedAt.Add(rec.Duration)) {
		t.Fatalf("unexpected spoken at: %v", ex.SpokenAt)
	}
	if len(f.webhook.payloads) != 1 || f.webhook.payloads[0].Reply != reply {
		t.Fatalf("unexpected webhook payloads: %+v", f.webhook.payloads)
	}
	if n := f.history.Len("text-1"); n != 2 {
		t.Fatalf("expected user and assistant turns in history, got %d", n)
	}
	if len(f.tts.texts) != 1 || f.tts.texts[0] != reply {
		t.Fatalf("unexpected synthesized texts: %v", f.tts.texts)
	}
	if f.tts.voice.LanguageCode != settings.DefaultLanguage || f.tts.voice.Rate != 1.0 {
		t.Fatalf("unexpected voice: %+v", f.tts.voice)
	}
	if len(gs.drafts) != 0 {
		t.Fatal("expected draft to be consumed")
	}
}

func TestGuildSession_AcknowledgeSpeaks(t *testing.T) {
	gs, f := newTestSession(t)
	if err := gs.Acknowledge(context.Background(), testRecording("rec-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.tts.texts) != 1 || f.tts.texts[0] != messageAcknowledge {
		t.Fatalf("unexpected synthesized texts: %v", f.tts.texts)
	}
}

func TestGuildSession_HandlePacketSkipsBots(t *testing.T) {
	gs, f := newTestSession(t)
	f.dc.bots["bot-2"] = true

	gs.handlePacket("bot-2", []byte{1, 2, 3})
	gs.handlePacket("bot-self", []byte{1, 2, 3})
	if n := gs.tracker.Active(); n != 0 {
		t.Fatalf("expected no captures for bots, got %d", n)
	}

	gs.handlePacket("user-1", []byte{1, 2, 3})
	if n := gs.tracker.Active(); n != 1 {
		t.Fatalf("expected one capture, got %d", n)
	}
	gs.handlePacket("user-1", []byte{1, 2, 3})
	if n := gs.tracker.Active(); n != 1 {
		t.Fatalf("expected packets to join the running capture, got %d", n)
	}
}

func TestGuildSession_NoCaptureWhileSpeaking(t *testing.T) {
	gs, _ := newTestSession(t)
	if err := gs.queue.Enqueue(playback.ResourceItem("song", &endlessStream{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gs.queue.Speaking() {
		t.Fatal("expected the queue to be speaking")
	}

	gs.handlePacket("user-1", []byte{1, 2, 3})
	if n := gs.tracker.Active(); n != 0 {
		t.Fatalf("expected no capture while speaking, got %d", n)
	}

	gs.player.Stop(true)
	waitUntil(t, time.Second, func() bool { return !gs.queue.Speaking() }, "queue to go quiet")

	gs.handlePacket("user-1", []byte{1, 2, 3})
	if n := gs.tracker.Active(); n != 1 {
		t.Fatalf("expected capture after playback ended, got %d", n)
	}
}

// tagEncoder emits the low byte of the first sample, so a frame shows which
// stream it came from.
type tagEncoder struct{}

func (tagEncoder) Encode(pcm []int16) ([]byte, error) { return []byte{byte(pcm[0])}, nil }

// tagTranscoder decodes speech to a short 's' stream and the filler file to
// an endless 'f' stream.
type tagTranscoder struct{}

func (tagTranscoder) Decode(_ context.Context, _ io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(bytes.Repeat([]byte{'s'}, 2*audio.PlaybackFrameBytes))), nil
}
func (tagTranscoder) DecodeFile(_ context.Context, _ string) (io.ReadCloser, error) {
	return &endlessStream{tag: 'f'}, nil
}

func TestGuildSession_SpeakInterruptsFillerBeforeReply(t *testing.T) {
	ogg := filepath.Join(t.TempDir(), "thinking.ogg")
	if err := os.WriteFile(ogg, []byte("ogg"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, f := newTestManagerWith(t, func(d *Deps) {
		d.Config.ThinkingSoundOgg = ogg
		d.Players = playback.NewRegistry(func() (audio.Encoder, error) { return tagEncoder{}, nil }, nil)
		d.Transcoder = tagTranscoder{}
	})
	f.dc.names["user-1"] = "Ally"
	gs, err := m.startSession("guild-1", "vc-1", "text-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vc := f.dc.voices[0]

	rec := testRecording("rec-1")
	gs.Gate(rec, "hey bot what is love")
	reply, err := gs.Think(context.Background(), rec, "what is love")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gs.thinking.Active() {
		t.Fatal("expected the filler to be active while thinking")
	}
	waitUntil(t, time.Second, func() bool { return strings.Contains(vc.sentTags(), "f") }, "filler frames")

	if err := gs.Speak(context.Background(), rec, reply); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gs.thinking.Active() {
		t.Fatal("expected the filler to be interrupted")
	}
	waitUntil(t, time.Second, func() bool { return strings.Contains(vc.sentTags(), "s") }, "reply frames")

	tags := vc.sentTags()
	if after := tags[strings.IndexByte(tags, 's'):]; strings.Contains(after, "f") {
		t.Fatalf("filler frames sent after the reply started: %q", tags)
	}
}

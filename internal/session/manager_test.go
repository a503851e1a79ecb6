package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/discord"
	"github.com/foxseedlab/kotodama/internal/history"
	"github.com/foxseedlab/kotodama/internal/llm"
	"github.com/foxseedlab/kotodama/internal/media"
	"github.com/foxseedlab/kotodama/internal/playback"
	"github.com/foxseedlab/kotodama/internal/repository"
	"github.com/foxseedlab/kotodama/internal/settings"
	"github.com/foxseedlab/kotodama/internal/tts"
	"github.com/foxseedlab/kotodama/internal/wakeword"
	"github.com/foxseedlab/kotodama/internal/webhook"
)

type sentMessage struct {
	channelID string
	content   string
}

type mockDiscordClient struct {
	mu                   sync.Mutex
	sendCalls            []sentMessage
	failChannels         map[string]bool
	userVoiceChannelByID map[string]string
	bots                 map[string]bool
	names                map[string]string
	voices               []*mockVoiceConnection
	joinErr              error
}

func (m *mockDiscordClient) Connect(_ context.Context) error { return nil }
func (m *mockDiscordClient) Close() error                    { return nil }
func (m *mockDiscordClient) JoinVoiceChannel(_, channelID string) (discord.VoiceConnection, error) {
	if m.joinErr != nil {
		return nil, m.joinErr
	}
	vc := newMockVoiceConnection(channelID)
	m.mu.Lock()
	m.voices = append(m.voices, vc)
	m.mu.Unlock()
	return vc, nil
}
func (m *mockDiscordClient) SendChannelMessage(channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failChannels[channelID] {
		return errors.New("unknown channel")
	}
	m.sendCalls = append(m.sendCalls, sentMessage{channelID: channelID, content: content})
	return nil
}
func (m *mockDiscordClient) RegisterVoiceStateUpdateHandler(_ func(discord.VoiceStateEvent)) {}
func (m *mockDiscordClient) RegisterSlashCommandHandler(_ func(discord.SlashCommandEvent))   {}
func (m *mockDiscordClient) OverwriteSlashCommands(_ string, _ []discord.SlashCommandDefinition) error {
	return nil
}
func (m *mockDiscordClient) GetUserVoiceChannelID(_, userID string) (string, error) {
	return m.userVoiceChannelByID[userID], nil
}
func (m *mockDiscordClient) GetBotUserID() (string, error) { return "bot-self", nil }
func (m *mockDiscordClient) ResolveDisplayName(_, userID string) string {
	if name, ok := m.names[userID]; ok {
		return name
	}
	return userID
}
func (m *mockDiscordClient) IsBot(_, userID string) bool { return m.bots[userID] }

func (m *mockDiscordClient) sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sendCalls...)
}

type mockVoiceConnection struct {
	channelID string
	closed    chan struct{}
	once      sync.Once

	mu     sync.Mutex
	frames int
	tags   []byte
}

func newMockVoiceConnection(channelID string) *mockVoiceConnection {
	return &mockVoiceConnection{channelID: channelID, closed: make(chan struct{})}
}

func (m *mockVoiceConnection) ChannelID() string { return m.channelID }
func (m *mockVoiceConnection) SendOpus(frame []byte) error {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames++
	if len(frame) > 0 {
		m.tags = append(m.tags, frame[0])
	}
	return nil
}
func (m *mockVoiceConnection) SetSpeaking(_ bool) error { return nil }
func (m *mockVoiceConnection) ReceiveAudio(_ func(userID string, opus []byte)) {
	<-m.closed
}
func (m *mockVoiceConnection) Disconnect() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
// sentTags returns the first byte of every frame sent so far.
func (m *mockVoiceConnection) sentTags() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.tags)
}

func (m *mockVoiceConnection) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

type mockResponder struct {
	mu        sync.Mutex
	responses []string
	deferred  bool
	edits     []string
	followups []string
}

func (m *mockResponder) Respond(content string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, content)
	return nil
}
func (m *mockResponder) Defer(_ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferred = true
	return nil
}
func (m *mockResponder) Edit(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, content)
	return nil
}
func (m *mockResponder) Followup(content string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followups = append(m.followups, content)
	return nil
}

// last returns the final visible answer, whether responded or edited.
func (m *mockResponder) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) > 0 {
		return m.edits[len(m.edits)-1]
	}
	if len(m.responses) > 0 {
		return m.responses[len(m.responses)-1]
	}
	return ""
}

type mockRepository struct {
	mu        sync.Mutex
	saved     map[string]settings.GuildSettings
	exchanges []repository.Exchange
}

func (m *mockRepository) LoadSettings(_ context.Context) (map[string]settings.GuildSettings, error) {
	return nil, nil
}
func (m *mockRepository) SaveSettings(_ context.Context, all map[string]settings.GuildSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = all
	return nil
}
func (m *mockRepository) InsertExchange(_ context.Context, exchange repository.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, exchange)
	return nil
}
func (m *mockRepository) Close() {}

type mockWebhookSender struct {
	mu       sync.Mutex
	payloads []webhook.ExchangePayload
}

func (m *mockWebhookSender) SendExchange(_ context.Context, payload webhook.ExchangePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

type mockTranscriber struct{ text string }

func (m *mockTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return m.text, nil
}

type mockLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	messages [][]llm.Message
}

func (m *mockLLM) Reply(_ context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages)
	return m.reply, m.err
}

type mockSynthesizer struct {
	mu     sync.Mutex
	texts  []string
	voice  tts.Voice
	voices []tts.VoiceInfo
}

func (m *mockSynthesizer) Synthesize(_ context.Context, text string, voice tts.Voice) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	m.voice = voice
	return []byte("ogg"), nil
}
func (m *mockSynthesizer) ListVoices(_ context.Context, _ string) ([]tts.VoiceInfo, error) {
	return m.voices, nil
}

type mockResolver struct {
	res *media.Resource
	err error
}

func (m *mockResolver) Resolve(_ context.Context, _ media.Request) (*media.Resource, error) {
	return m.res, m.err
}

type mockTranscoder struct{}

func (mockTranscoder) Decode(_ context.Context, _ io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(make([]byte, 2*audio.PlaybackFrameBytes))), nil
}
func (mockTranscoder) DecodeFile(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, io.ErrUnexpectedEOF
}

type mockEncoder struct{}

func (mockEncoder) Encode(_ []int16) ([]byte, error) { return []byte{1}, nil }

type mockDecoder struct{}

func (mockDecoder) Decode(_ []byte) ([]int16, error) { return make([]int16, 960), nil }

type silentDetector struct{}

func (silentDetector) IsSpeech(_ []int16) bool { return false }

// endlessStream plays until closed, filling every read with tag.
type endlessStream struct {
	tag    byte
	mu     sync.Mutex
	closed bool
}

func (e *endlessStream) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, io.EOF
	}
	for i := range p {
		p[i] = e.tag
	}
	return len(p), nil
}

func (e *endlessStream) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

type fixture struct {
	dc       *mockDiscordClient
	repo     *mockRepository
	webhook  *mockWebhookSender
	llm      *mockLLM
	tts      *mockSynthesizer
	resolver *mockResolver
	history  *history.Store
}

func newTestManager(t *testing.T) (*Manager, *fixture) {
	t.Helper()
	return newTestManagerWith(t, nil)
}

// newTestManagerWith lets a test adjust the dependencies before the manager
// is built.
func newTestManagerWith(t *testing.T, adjust func(*Deps)) (*Manager, *fixture) {
	t.Helper()
	f := &fixture{
		dc: &mockDiscordClient{
			userVoiceChannelByID: map[string]string{},
			bots:                 map[string]bool{},
			names:                map[string]string{},
			failChannels:         map[string]bool{},
		},
		repo:     &mockRepository{},
		webhook:  &mockWebhookSender{},
		llm:      &mockLLM{reply: "Do what thou wilt."},
		tts:      &mockSynthesizer{},
		resolver: &mockResolver{},
		history:  history.NewStore(6),
	}
	cfg := &config.Config{
		Env:            "test",
		CaptureTempDir: t.TempDir(),
	}
	deps := Deps{
		Config:        cfg,
		Discord:       f.dc,
		Settings:      settings.NewStore(f.repo),
		Presets:       settings.DefaultPresets(),
		History:       f.history,
		Gate:          wakeword.NewGate(false),
		Transcriber:   &mockTranscriber{},
		LLM:           f.llm,
		TTS:           f.tts,
		Media:         f.resolver,
		Players:       playback.NewRegistry(func() (audio.Encoder, error) { return mockEncoder{}, nil }, nil),
		Transcoder:    mockTranscoder{},
		NewDecoder:    func() (audio.Decoder, error) { return mockDecoder{}, nil },
		NewDetector:   func() audio.SpeechDetector { return silentDetector{} },
		Conversations: f.repo,
		Webhook:       f.webhook,
	}
	if adjust != nil {
		adjust(&deps)
	}
	m := NewManager(deps)
	m.SetBotUserID("bot-self")
	t.Cleanup(func() { m.StopAll("test cleanup") })
	return m, f
}

func command(name string, opts map[string]any) (discord.SlashCommandEvent, *mockResponder) {
	r := &mockResponder{}
	return discord.SlashCommandEvent{
		GuildID:     "guild-1",
		ChannelID:   "text-1",
		CommandName: name,
		UserID:      "user-1",
		Options:     opts,
		Responder:   r,
	}, r
}

func adminCommand(name string, opts map[string]any) (discord.SlashCommandEvent, *mockResponder) {
	ev, r := command(name, opts)
	ev.IsAdmin = true
	return ev, r
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestHandleSlashCommand_JoinRequiresVoiceChannel(t *testing.T) {
	m, _ := newTestManager(t)
	ev, r := command(commandJoin, nil)

	m.HandleSlashCommand(ev)

	if r.last() != messageJoinVoiceFirst {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if len(m.Status()) != 0 {
		t.Fatal("expected no guild session")
	}
}

func TestHandleSlashCommand_JoinThenAlreadyConnected(t *testing.T) {
	m, f := newTestManager(t)
	f.dc.userVoiceChannelByID["user-1"] = "vc-1"

	ev, r := command(commandJoin, nil)
	m.HandleSlashCommand(ev)
	if !r.deferred || r.last() != fmt.Sprintf(messageJoined, "vc-1") {
		t.Fatalf("unexpected join response: deferred=%v %q", r.deferred, r.last())
	}

	ev, r = command(commandJoin, nil)
	m.HandleSlashCommand(ev)
	if r.last() != "Already connected to <#vc-1>." {
		t.Fatalf("unexpected second join response: %q", r.last())
	}
	if len(f.dc.voices) != 1 {
		t.Fatalf("expected exactly one voice join, got %d", len(f.dc.voices))
	}
}

func TestHandleSlashCommand_JoinFailure(t *testing.T) {
	m, f := newTestManager(t)
	f.dc.userVoiceChannelByID["user-1"] = "vc-1"
	f.dc.joinErr = errors.New("gateway timeout")

	ev, r := command(commandJoin, nil)
	m.HandleSlashCommand(ev)

	if r.last() != messageJoinFailed {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if len(m.Status()) != 0 {
		t.Fatal("failed join must not leave a session behind")
	}
}

func TestHandleSlashCommand_LeaveRequiresAdminAndTearsDown(t *testing.T) {
	m, f := newTestManager(t)
	if _, err := m.startSession("guild-1", "vc-1", "text-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, r := command(commandLeave, nil)
	m.HandleSlashCommand(ev)
	if r.last() != messageAdminsOnly {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if len(m.Status()) != 1 {
		t.Fatal("non-admin leave must not tear down the session")
	}

	ev, r = adminCommand(commandLeave, nil)
	m.HandleSlashCommand(ev)
	if r.last() != messageLeft {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if len(m.Status()) != 0 || !f.dc.voices[0].isClosed() {
		t.Fatal("expected session to be torn down and voice disconnected")
	}

	ev, r = adminCommand(commandLeave, nil)
	m.HandleSlashCommand(ev)
	if r.last() != messageNotInVoice {
		t.Fatalf("unexpected response: %q", r.last())
	}
}

func TestHandleVoiceStateUpdate_BotDisconnectTearsDown(t *testing.T) {
	m, f := newTestManager(t)
	if _, err := m.startSession("guild-1", "vc-1", "text-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.HandleVoiceStateUpdate(discord.VoiceStateEvent{GuildID: "guild-1", UserID: "user-1", BeforeChannelID: "vc-1"})
	if len(m.Status()) != 1 {
		t.Fatal("other users leaving must not tear down the session")
	}

	m.HandleVoiceStateUpdate(discord.VoiceStateEvent{GuildID: "guild-1", UserID: "bot-self", BeforeChannelID: "vc-1"})
	if len(m.Status()) != 0 {
		t.Fatal("expected session to be torn down after bot disconnect")
	}
	if !f.dc.voices[0].isClosed() {
		t.Fatal("expected voice connection to be closed")
	}
}

func TestHandleSlashCommand_StopAndSkipRequireSession(t *testing.T) {
	m, _ := newTestManager(t)
	for _, name := range []string{commandStop, commandSkip} {
		ev, r := command(name, nil)
		m.HandleSlashCommand(ev)
		if r.last() != messageNotInVoiceChannel {
			t.Fatalf("%s: unexpected response: %q", name, r.last())
		}
	}
}

func TestHandleSlashCommand_SkipNothingWhenIdle(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.startSession("guild-1", "vc-1", "text-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, r := command(commandSkip, nil)
	m.HandleSlashCommand(ev)
	if r.last() != messageNothingToSkip {
		t.Fatalf("unexpected response: %q", r.last())
	}
}

func TestHandleSlashCommand_StopClearsQueueAndSilences(t *testing.T) {
	m, _ := newTestManager(t)
	gs, err := m.startSession("guild-1", "vc-1", "text-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, title := range []string{"a", "b", "c"} {
		if err := gs.queue.Enqueue(playback.ResourceItem(title, &endlessStream{})); err != nil {
			t.Fatalf("unexpected enqueue error: %v", err)
		}
	}
	waitUntil(t, time.Second, func() bool { return gs.player.State() == playback.StatePlaying }, "first item playing")

	ev, r := command(commandQueue, nil)
	m.HandleSlashCommand(ev)
	if r.last() != "**Now playing:** a\n**Up next (2):**\n1. b\n2. c" {
		t.Fatalf("unexpected queue response: %q", r.last())
	}

	ev, r = command(commandStop, nil)
	m.HandleSlashCommand(ev)
	if r.last() != messageStopped {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if gs.queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", gs.queue.Len())
	}
	waitUntil(t, time.Second, func() bool { return gs.player.State() == playback.StateIdle }, "player idle after stop")
}

func TestHandleSlashCommand_RateAndPitchClamp(t *testing.T) {
	m, f := newTestManager(t)

	ev, r := command(commandRate, map[string]any{"value": 9.0})
	m.HandleSlashCommand(ev)
	if r.last() != "TTS rate set to 4" {
		t.Fatalf("unexpected response: %q", r.last())
	}
	ev, r = command(commandPitch, map[string]any{"value": -2.5})
	m.HandleSlashCommand(ev)
	if r.last() != "TTS pitch set to -2.5" {
		t.Fatalf("unexpected response: %q", r.last())
	}

	saved := f.repo.saved["guild-1"]
	if saved.Rate != 4 || saved.Pitch != -2.5 {
		t.Fatalf("unexpected saved settings: %+v", saved)
	}
}

func TestHandleSlashCommand_VoiceAndPreset(t *testing.T) {
	m, f := newTestManager(t)

	ev, r := command(commandVoice, map[string]any{"language": "en-GB", "name": "en-GB-Neural2-B"})
	m.HandleSlashCommand(ev)
	if r.last() != "TTS voice set to en-GB (en-GB-Neural2-B)" {
		t.Fatalf("unexpected response: %q", r.last())
	}

	ev, r = adminCommand(commandVoicePreset, map[string]any{"preset": "nope"})
	m.HandleSlashCommand(ev)
	if r.last() != messageInvalidPreset {
		t.Fatalf("unexpected response: %q", r.last())
	}

	ev, r = adminCommand(commandVoicePreset, map[string]any{"preset": "nl-NL:male"})
	m.HandleSlashCommand(ev)
	if r.last() != "Voice preset set to nl-NL:male" {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if got := f.repo.saved["guild-1"].Voice; got.Name != "nl-NL-Standard-B" || got.SSMLGender != "MALE" {
		t.Fatalf("unexpected saved voice: %+v", got)
	}
}

func TestHandleSlashCommand_WakeKeepsWordWhenOmitted(t *testing.T) {
	m, _ := newTestManager(t)

	ev, r := command(commandWake, map[string]any{"enabled": true, "word": "hey crowley"})
	m.HandleSlashCommand(ev)
	if r.last() != `Wake word enabled ("hey crowley")` {
		t.Fatalf("unexpected response: %q", r.last())
	}

	ev, r = command(commandWake, map[string]any{"enabled": false})
	m.HandleSlashCommand(ev)
	if r.last() != messageWakeDisabled {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if got := m.deps.Settings.Get("guild-1").Wake; got.Enabled || got.Word != "hey crowley" {
		t.Fatalf("unexpected wake settings: %+v", got)
	}
}

func TestHandleSlashCommand_Persona(t *testing.T) {
	m, _ := newTestManager(t)

	ev, r := command(commandPersona, map[string]any{"text": "be terse"})
	m.HandleSlashCommand(ev)
	if r.last() != messageAdminsOnly {
		t.Fatalf("unexpected response: %q", r.last())
	}

	ev, r = adminCommand(commandPersona, map[string]any{"text": strings.Repeat("x", settings.MaxPersonaLength+50)})
	m.HandleSlashCommand(ev)
	if r.last() != messagePersonaUpdated {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if got := len(m.deps.Settings.Get("guild-1").Persona); got != settings.MaxPersonaLength {
		t.Fatalf("expected persona to be truncated, got %d chars", got)
	}

	ev, r = adminCommand(commandPersona, map[string]any{"text": "RESET"})
	m.HandleSlashCommand(ev)
	if r.last() != messagePersonaReset || m.deps.Settings.Get("guild-1").Persona != settings.DefaultPersona {
		t.Fatalf("unexpected reset: %q", r.last())
	}

	ev, r = adminCommand(commandPersona, nil)
	m.HandleSlashCommand(ev)
	if r.last() != messagePersonaCurrent+settings.DefaultPersona {
		t.Fatalf("unexpected view: %q", r.last())
	}
}

func TestHandleSlashCommand_VoicesAreChunked(t *testing.T) {
	m, f := newTestManager(t)
	for i := 0; i < 120; i++ {
		f.tts.voices = append(f.tts.voices, tts.VoiceInfo{
			Name:          fmt.Sprintf("en-US-Neural2-Voice-%03d", i),
			LanguageCodes: []string{"en-US"},
			SSMLGender:    "FEMALE",
		})
	}

	ev, r := command(commandVoices, map[string]any{"language": "en-US"})
	m.HandleSlashCommand(ev)

	if !r.deferred || len(r.edits) != 1 {
		t.Fatalf("expected one deferred edit, got deferred=%v edits=%d", r.deferred, len(r.edits))
	}
	if !strings.HasPrefix(r.edits[0], "Found 120 voices for en-US.\n") {
		t.Fatalf("unexpected header: %q", r.edits[0][:40])
	}
	if len(r.followups) == 0 {
		t.Fatal("expected follow-up chunks")
	}
	lines := strings.Count(r.edits[0], "\n") - 1
	for _, chunk := range r.followups {
		if len(chunk) > voicesChunkLimit {
			t.Fatalf("chunk exceeds limit: %d", len(chunk))
		}
		lines += strings.Count(chunk, "\n")
	}
	if lines != 120 {
		t.Fatalf("expected 120 voice lines, got %d", lines)
	}
}

func TestHandleSlashCommand_PlayNeedsSource(t *testing.T) {
	m, _ := newTestManager(t)
	ev, r := command(commandPlay, nil)
	m.HandleSlashCommand(ev)
	if r.last() != messagePlayNeedsSource {
		t.Fatalf("unexpected response: %q", r.last())
	}
}

func TestHandleSlashCommand_PlayAutoJoinsAndQueues(t *testing.T) {
	m, f := newTestManager(t)
	f.dc.userVoiceChannelByID["user-1"] = "vc-1"
	f.resolver.res = &media.Resource{Title: "Never Gonna Give You Up", Source: "ytdlp-link", Stream: &endlessStream{}}

	ev, r := command(commandPlay, map[string]any{"url": "https://youtu.be/dQw4w9WgXcQ"})
	m.HandleSlashCommand(ev)

	if r.last() != "Queued: Never Gonna Give You Up" {
		t.Fatalf("unexpected response: %q", r.last())
	}
	status := m.Status()
	if len(status) != 1 || status[0].VoiceChannelID != "vc-1" {
		t.Fatalf("expected auto-joined session, got %+v", status)
	}
	waitUntil(t, time.Second, func() bool {
		title, ok := m.Status()[0].NowPlaying, m.Status()[0].PlayerState == "playing"
		return ok && title == "Never Gonna Give You Up"
	}, "media playing")
}

func TestHandleSlashCommand_PlayRequiresCallerInVoice(t *testing.T) {
	m, _ := newTestManager(t)
	ev, r := command(commandPlay, map[string]any{"url": "https://youtu.be/dQw4w9WgXcQ"})
	m.HandleSlashCommand(ev)
	if r.last() != messagePlayJoinFirst {
		t.Fatalf("unexpected response: %q", r.last())
	}
}

func TestPlayFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: media.NewError("link", media.ErrAccessDenied, errors.New("HTTP Error 403")), want: messagePlayAccessDenied},
		{err: fmt.Errorf("%w: %q", media.ErrInvalidURL, "hello"), want: messagePlayUnsupported},
		{err: media.NewError("pipe", media.ErrTimeout, nil), want: messagePlayTimeout},
		{err: errors.New("boom"), want: messagePlayFailed + "boom"},
	}
	for _, tt := range tests {
		if got := playFailureMessage(tt.err); got != tt.want {
			t.Fatalf("unexpected message for %v: %q", tt.err, got)
		}
	}
}

func TestHandleSlashCommand_SayRequiresSession(t *testing.T) {
	m, f := newTestManager(t)
	ev, r := command(commandSay, map[string]any{"text": "hello"})
	m.HandleSlashCommand(ev)
	if r.last() != messageSayNotInVoice {
		t.Fatalf("unexpected response: %q", r.last())
	}

	if _, err := m.startSession("guild-1", "vc-1", "text-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev, r = command(commandSay, map[string]any{"text": "hello"})
	m.HandleSlashCommand(ev)
	if r.last() != messageSpeaking {
		t.Fatalf("unexpected response: %q", r.last())
	}
	if len(f.tts.texts) != 1 || f.tts.texts[0] != "hello" {
		t.Fatalf("unexpected synthesized texts: %v", f.tts.texts)
	}
}

func TestHandleSlashCommand_Unknown(t *testing.T) {
	m, _ := newTestManager(t)
	ev, r := command("mystery", nil)
	m.HandleSlashCommand(ev)
	if r.last() != messageUnknownCommand {
		t.Fatalf("unexpected response: %q", r.last())
	}
}

func TestSlashCommandDefinitions(t *testing.T) {
	m, _ := newTestManager(t)
	defs := m.SlashCommandDefinitions()
	if len(defs) != 17 {
		t.Fatalf("expected 17 commands, got %d", len(defs))
	}
	admin := map[string]bool{commandLeave: true, commandSetChannel: true, commandVoicePreset: true, commandPersona: true}
	seen := map[string]bool{}
	for _, def := range defs {
		if seen[def.Name] {
			t.Fatalf("duplicate command %q", def.Name)
		}
		seen[def.Name] = true
		if def.AdminOnly != admin[def.Name] {
			t.Fatalf("unexpected admin flag for %q", def.Name)
		}
		if def.Name == commandVoicePreset && len(def.Options[0].Choices) != len(settings.DefaultPresets()) {
			t.Fatalf("unexpected preset choices: %+v", def.Options[0].Choices)
		}
	}
}

func TestStatus_ReportsSessions(t *testing.T) {
	m, _ := newTestManager(t)
	for _, guildID := range []string{"guild-b", "guild-a"} {
		if _, err := m.startSession(guildID, "vc-"+guildID, "text-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	status := m.Status()
	if len(status) != 2 || status[0].GuildID != "guild-a" || status[1].GuildID != "guild-b" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status[0].PlayerState != "idle" || status[0].QueueLength != 0 {
		t.Fatalf("unexpected status entry: %+v", status[0])
	}

	if n := m.StopAll(StopReasonServerShutdown); n != 2 {
		t.Fatalf("expected two sessions stopped, got %d", n)
	}
	if len(m.Status()) != 0 {
		t.Fatal("expected no sessions after StopAll")
	}
}

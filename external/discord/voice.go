package discord

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const opusSendTimeout = time.Second

var errVoiceSendTimeout = errors.New("voice send timed out")

type voiceConnectionImpl struct {
	vc *discordgo.VoiceConnection
}

func newVoiceConnection(vc *discordgo.VoiceConnection) *voiceConnectionImpl {
	return &voiceConnectionImpl{vc: vc}
}

func (v *voiceConnectionImpl) ChannelID() string {
	return v.vc.ChannelID
}

func (v *voiceConnectionImpl) SendOpus(frame []byte) error {
	if v.vc.OpusSend == nil {
		return errVoiceSendTimeout
	}
	timer := time.NewTimer(opusSendTimeout)
	defer timer.Stop()
	select {
	case v.vc.OpusSend <- frame:
		return nil
	case <-timer.C:
		return errVoiceSendTimeout
	}
}

func (v *voiceConnectionImpl) SetSpeaking(speaking bool) error {
	return v.vc.Speaking(speaking)
}

func (v *voiceConnectionImpl) Disconnect() error {
	return v.vc.Disconnect()
}

// ssrcUsers maps RTP sources to the users announced by speaking updates.
type ssrcUsers struct {
	mu    sync.RWMutex
	users map[uint32]string
}

func newSSRCUsers() *ssrcUsers {
	return &ssrcUsers{users: make(map[uint32]string)}
}

func (s *ssrcUsers) update(vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[uint32(vs.SSRC)] = vs.UserID
}

func (s *ssrcUsers) lookup(ssrc uint32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.users[ssrc]
	return userID, ok
}

// ReceiveAudio forwards packets whose source is mapped to a user. Packets that
// arrive before the speaking update are dropped, a raw SSRC is not a user ID.
func (v *voiceConnectionImpl) ReceiveAudio(callback func(userID string, opus []byte)) {
	if v.vc.OpusRecv == nil {
		return
	}
	users := newSSRCUsers()
	v.vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		users.update(vs)
	})
	for p := range v.vc.OpusRecv {
		if p == nil || len(p.Opus) == 0 {
			continue
		}
		userID, ok := users.lookup(p.SSRC)
		if !ok {
			slog.Debug("dropping opus packet from unmapped ssrc", "ssrc", p.SSRC)
			continue
		}
		callback(userID, p.Opus)
	}
}

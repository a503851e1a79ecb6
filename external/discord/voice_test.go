package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestSSRCUsers_LookupAfterSpeakingUpdate(t *testing.T) {
	users := newSSRCUsers()
	if _, ok := users.lookup(42); ok {
		t.Fatal("expected unknown ssrc to be unmapped")
	}

	users.update(&discordgo.VoiceSpeakingUpdate{UserID: "user-1", SSRC: 42, Speaking: true})
	users.update(&discordgo.VoiceSpeakingUpdate{SSRC: 43, Speaking: true})
	users.update(nil)

	if got, ok := users.lookup(42); !ok || got != "user-1" {
		t.Fatalf("unexpected user: %q %v", got, ok)
	}
	if _, ok := users.lookup(43); ok {
		t.Fatal("update without a user must not map the ssrc")
	}

	users.update(&discordgo.VoiceSpeakingUpdate{UserID: "user-1", SSRC: 42, Speaking: false})
	if got, ok := users.lookup(42); !ok || got != "user-1" {
		t.Fatalf("expected mapping to survive a stop update, got %q %v", got, ok)
	}
}

func TestReceiveAudio_DropsUnmappedPackets(t *testing.T) {
	recv := make(chan *discordgo.Packet, 3)
	recv <- &discordgo.Packet{SSRC: 7, Opus: []byte{1}}
	recv <- nil
	recv <- &discordgo.Packet{SSRC: 8}
	close(recv)

	v := newVoiceConnection(&discordgo.VoiceConnection{OpusRecv: recv})
	var got []string
	v.ReceiveAudio(func(userID string, _ []byte) {
		got = append(got, userID)
	})

	if len(got) != 0 {
		t.Fatalf("expected no packets to reach the callback, got %v", got)
	}
}

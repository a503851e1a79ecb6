package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/foxseedlab/kotodama/internal/settings"
)

const (
	messageUnknownCommand      = "Unknown command."
	messageAdminsOnly          = "Admins only."
	messageErrorPrefix         = "Error: "
	messageVoiceLookupFailed   = "Could not check your voice channel. Try again in a moment."
	messageJoinVoiceFirst      = "Join a voice channel first, then use /join."
	messageAlreadyConnected    = "Already connected to <#%s>."
	messageJoined              = "Joined voice: <#%s>. I will transcribe and speak replies."
	messageJoinFailed          = "Could not join the voice channel."
	messageNotInVoice          = "I am not in a voice channel."
	messageLeft                = "Left voice channel."
	messageChooseTextChannel   = "Please choose a text channel."
	messageLogChannelSet       = "Log channel set to <#%s>"
	messageMissingOption       = "Missing required option: %s"
	messageVoiceSet            = "TTS voice set to %s"
	messageInvalidPreset       = "Invalid preset. Use /voices to see available options."
	messagePresetSet           = "Voice preset set to %s"
	messageRateSet             = "TTS rate set to %s"
	messagePitchSet            = "TTS pitch set to %s"
	messageLangSet             = "STT language set to %s"
	messageWakeEnabled         = "Wake word enabled (\"%s\")"
	messageWakeDisabled        = "Wake word disabled"
	messageSayNotInVoice       = "I'm not in a voice channel. Use /join first."
	messageSpeaking            = "Speaking in voice channel."
	messageSpeakFailed         = "Failed to speak: "
	messagePlayNeedsSource     = "Provide a URL (YouTube or direct audio) or attach a file."
	messagePlayJoinFirst       = "Join a voice channel first, then use /play."
	messagePlayUnsupported     = "I can stream YouTube links or direct audio URLs (mp3/ogg/wav/m4a/aac)."
	messagePlayAccessDenied    = "Could not start playback: the source refused access. The host may need fresh YouTube cookies."
	messagePlayTimeout         = "Could not start playback: the source took too long to respond."
	messagePlayFailed          = "Could not start playback: "
	messageQueued              = "Queued: %s"
	messageNoVoices            = "No voices found."
	messageNoVoicesFor         = "No voices for %s."
	messageVoiceListingFailed  = "Voice listing failed: "
	messagePersonaCurrent      = "Current persona:\n"
	messagePersonaReset        = "Persona reset to default."
	messagePersonaUpdated      = "Persona updated for this guild."
	messageNotInVoiceChannel   = "I'm not in a voice channel."
	messageStopped             = "Stopped playback and cleared the queue."
	messageNothingToSkip       = "Nothing to skip."
	messageSkipped             = "Skipped."
	messageQueueEmpty          = "Queue is empty."
	messageAcknowledge         = "Yes?"
	messageTranscriptLogFormat = "🗣️ [Transcript — %s]: %s"
	messageReplyLogFormat      = "🤖 [LLM]: %s"
)

const (
	// voicesChunkLimit keeps each voices message under Discord's 2000 char cap.
	voicesChunkLimit   = 1800
	queuePreviewLength = 10
	personaPreviewLen  = 100
)

var mentionStripper = strings.NewReplacer("@", "", "#", "")

// stripMentions removes characters Discord would turn into pings or channel links.
func stripMentions(s string) string {
	return mentionStripper.Replace(s)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func voiceSetMessage(language, name string) string {
	if name == "" {
		return fmt.Sprintf(messageVoiceSet, language)
	}
	return fmt.Sprintf(messageVoiceSet, language+" ("+name+")")
}

func wakeMessage(w settings.Wake) string {
	if !w.Enabled {
		return messageWakeDisabled
	}
	return fmt.Sprintf(messageWakeEnabled, w.Word)
}

func settingsMessage(s settings.GuildSettings) string {
	voice := s.Voice.LanguageCode
	if s.Voice.Name != "" {
		voice += " (" + s.Voice.Name + ")"
	}
	gender := s.Voice.SSMLGender
	if gender == "" {
		gender = settings.DefaultSSMLGender
	}
	wake := "Disabled"
	if s.Wake.Enabled {
		wake = fmt.Sprintf("Enabled (\"%s\")", s.Wake.Word)
	}
	logChannel := "Not set"
	if s.LogChannelID != "" {
		logChannel = "<#" + s.LogChannelID + ">"
	}
	persona := []rune(s.Persona)
	preview := string(persona)
	if len(persona) > personaPreviewLen {
		preview = string(persona[:personaPreviewLen]) + "…"
	}
	lines := []string{
		"Current settings:",
		fmt.Sprintf("**Voice**: %s, Gender: %s", voice, gender),
		"**Rate**: " + formatNumber(s.Rate),
		"**Pitch**: " + formatNumber(s.Pitch),
		"**STT Language**: " + s.Lang,
		"**Wake Word**: " + wake,
		"**Trigger Sound**: " + enabledLabel(s.Trigger.Enabled),
		"**Log Channel**: " + logChannel,
		"**Persona**: " + preview,
	}
	return strings.Join(lines, "\n")
}

func enabledLabel(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

func queueMessage(nowPlaying string, titles []string) string {
	var lines []string
	if nowPlaying != "" {
		lines = append(lines, "**Now playing:** "+nowPlaying)
	}
	if len(titles) > 0 {
		lines = append(lines, fmt.Sprintf("**Up next (%d):**", len(titles)))
		for i, title := range titles {
			if i == queuePreviewLength {
				break
			}
			if title == "" {
				title = "audio"
			}
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, title))
		}
		if len(titles) > queuePreviewLength {
			lines = append(lines, fmt.Sprintf("…and %d more", len(titles)-queuePreviewLength))
		}
	}
	if len(lines) == 0 {
		return messageQueueEmpty
	}
	return strings.Join(lines, "\n")
}

// chunkLines packs lines into messages no longer than limit. A single line
// longer than limit gets a message of its own.
func chunkLines(lines []string, limit int) []string {
	var chunks []string
	var buf strings.Builder
	for _, line := range lines {
		if buf.Len() > 0 && buf.Len()+len(line)+1 > limit {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

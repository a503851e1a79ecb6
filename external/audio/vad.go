package audio

import (
	"log/slog"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/maxhawkins/go-webrtcvad"
)

const rmsThreshold = 500.0

// WebRTCDetector classifies frames with WebRTC VAD and falls back to RMS
// energy when the frame cannot be processed.
type WebRTCDetector struct {
	vad      *webrtcvad.VAD
	fallback audio.EnergyDetector
}

// NewSpeechDetectorFactory returns a factory that builds one detector per
// capture. A VAD instance is not safe for concurrent use.
func NewSpeechDetectorFactory(mode int) audio.SpeechDetectorFactory {
	return func() audio.SpeechDetector {
		fallback := audio.EnergyDetector{Threshold: rmsThreshold}
		vad, err := webrtcvad.New()
		if err != nil {
			slog.Warn("webrtc vad unavailable; using energy detector", "error", err)
			return fallback
		}
		if err := vad.SetMode(mode); err != nil {
			slog.Warn("failed to set vad mode; using energy detector", "error", err, "mode", mode)
			return fallback
		}
		return &WebRTCDetector{vad: vad, fallback: fallback}
	}
}

func (d *WebRTCDetector) IsSpeech(pcm []int16) bool {
	voiced, err := d.vad.Process(audio.SampleRate, audio.Int16ToBytes(pcm))
	if err != nil {
		return d.fallback.IsSpeech(pcm)
	}
	return voiced
}

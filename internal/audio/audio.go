// Package audio defines the PCM format shared by capture and playback and the
// codec, voice activity and transcoding collaborators that produce or consume it.
package audio

import (
	"context"
	"io"
	"time"
)

// Discord voice is 48 kHz Opus at 20 ms frames. Capture is downmixed to mono
// for transcription, playback is always stereo.
const (
	SampleRate       = 48000
	FrameSamples     = 960
	FrameDuration    = 20 * time.Millisecond
	CaptureChannels  = 1
	PlaybackChannels = 2

	CaptureFrameBytes  = FrameSamples * CaptureChannels * 2
	PlaybackFrameBytes = FrameSamples * PlaybackChannels * 2
)

// SilenceFrame is the Opus encoding of 20 ms of silence.
var SilenceFrame = []byte{0xF8, 0xFF, 0xFE}

type Decoder interface {
	Decode(opus []byte) ([]int16, error)
}

type DecoderFactory func() (Decoder, error)

type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

type EncoderFactory func() (Encoder, error)

type SpeechDetector interface {
	IsSpeech(pcm []int16) bool
}

type SpeechDetectorFactory func() SpeechDetector

// Transcoder turns any container ffmpeg understands into 48 kHz stereo s16le PCM.
type Transcoder interface {
	Decode(ctx context.Context, src io.Reader) (io.ReadCloser, error)
	DecodeFile(ctx context.Context, path string) (io.ReadCloser, error)
}

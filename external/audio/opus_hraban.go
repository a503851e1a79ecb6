//go:build opus

package audio

import (
	"bytes"
	"fmt"

	"github.com/foxseedlab/kotodama/internal/audio"
	"github.com/hraban/opus"
)

// maxPacketBytes is the recommended upper bound for one Opus packet.
const maxPacketBytes = 4000

type opusDecoder struct {
	dec *opus.Decoder
	pcm []int16
}

// NewDecoder builds a mono decoder backed by the system libopus.
func NewDecoder() (audio.Decoder, error) {
	dec, err := opus.NewDecoder(audio.SampleRate, audio.CaptureChannels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec, pcm: make([]int16, audio.FrameSamples*audio.CaptureChannels*6)}, nil
}

func (d *opusDecoder) Decode(data []byte) ([]int16, error) {
	if bytes.Equal(data, audio.SilenceFrame) {
		return make([]int16, audio.FrameSamples*audio.CaptureChannels), nil
	}
	n, err := d.dec.Decode(data, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("decode opus: %w", err)
	}
	out := make([]int16, n*audio.CaptureChannels)
	copy(out, d.pcm[:n*audio.CaptureChannels])
	return out, nil
}

type opusEncoder struct {
	enc *opus.Encoder
	buf []byte
}

// NewEncoder builds a stereo music encoder backed by the system libopus.
func NewEncoder() (audio.Encoder, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.PlaybackChannels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc, buf: make([]byte, maxPacketBytes)}, nil
}

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("encode opus: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

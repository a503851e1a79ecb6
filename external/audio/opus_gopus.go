//go:build !opus

package audio

import (
	"bytes"
	"fmt"

	"github.com/foxseedlab/kotodama/internal/audio"
	"layeh.com/gopus"
)

const maxPacketBytes = 4000

type opusDecoder struct {
	dec *gopus.Decoder
}

// NewDecoder builds a mono decoder. Build with -tags opus to use the system
// libopus binding instead.
func NewDecoder() (audio.Decoder, error) {
	dec, err := gopus.NewDecoder(audio.SampleRate, audio.CaptureChannels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

func (d *opusDecoder) Decode(data []byte) ([]int16, error) {
	if bytes.Equal(data, audio.SilenceFrame) {
		return make([]int16, audio.FrameSamples*audio.CaptureChannels), nil
	}
	pcm, err := d.dec.Decode(data, audio.FrameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("decode opus: %w", err)
	}
	return pcm, nil
}

type opusEncoder struct {
	enc *gopus.Encoder
}

func NewEncoder() (audio.Encoder, error) {
	enc, err := gopus.NewEncoder(audio.SampleRate, audio.PlaybackChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	out, err := e.enc.Encode(pcm, audio.FrameSamples, maxPacketBytes)
	if err != nil {
		return nil, fmt.Errorf("encode opus: %w", err)
	}
	return out, nil
}

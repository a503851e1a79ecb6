package audio

import (
	"encoding/binary"
	"math"
	"time"
)

func Int16ToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func BytesToInt16(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return pcm
}

// PCMDuration returns the playing time of s16le PCM at SampleRate.
func PCMDuration(byteLen int64, channels int) time.Duration {
	if channels <= 0 {
		return 0
	}
	samples := byteLen / int64(2*channels)
	return time.Duration(samples) * time.Second / SampleRate
}

// RMS returns the root mean square amplitude of the samples.
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// DownmixToMono averages interleaved stereo samples into one channel.
func DownmixToMono(stereo []int16) []int16 {
	mono := make([]int16, len(stereo)/2)
	for i := range mono {
		mono[i] = int16((int32(stereo[i*2]) + int32(stereo[i*2+1])) / 2)
	}
	return mono
}

// EnergyDetector classifies frames as speech when their RMS exceeds Threshold.
type EnergyDetector struct {
	Threshold float64
}

func (d EnergyDetector) IsSpeech(pcm []int16) bool {
	return RMS(pcm) > d.Threshold
}

package transcriber

import "context"

// Transcriber converts 48 kHz mono s16le PCM into text. An empty transcript
// with a nil error means nothing intelligible was said.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, language string) (string, error)
}

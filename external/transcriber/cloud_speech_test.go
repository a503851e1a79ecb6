package transcriber

import (
	"testing"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
)

func TestJoinResults(t *testing.T) {
	results := []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hey bot"}, {Transcript: "hey but"}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " what time is it "}}},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "  "}}},
	}
	if got := joinResults(results); got != "hey bot what time is it" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	if got := joinResults(nil); got != "" {
		t.Fatalf("unexpected transcript for no results: %q", got)
	}
}

func TestRecognizeRequest(t *testing.T) {
	req := recognizeRequest("projects/p/locations/global/recognizers/_", "long", "ja-JP", []byte{1, 2})
	cfg := req.GetConfig()
	if cfg.GetLanguageCodes()[0] != "ja-JP" || cfg.GetModel() != "long" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	dec := cfg.GetExplicitDecodingConfig()
	if dec.GetSampleRateHertz() != 48000 || dec.GetAudioChannelCount() != 1 {
		t.Fatalf("unexpected decoding config: %+v", dec)
	}
	if !cfg.GetFeatures().GetEnableAutomaticPunctuation() {
		t.Fatal("expected automatic punctuation")
	}
	if len(req.GetContent()) != 2 {
		t.Fatalf("unexpected content: %v", req.GetContent())
	}
}

package session

import (
	"fmt"
	"strings"
	"testing"

	"github.com/foxseedlab/kotodama/internal/settings"
)

func TestStripMentions(t *testing.T) {
	got := stripMentions("hi @everyone see #rules")
	if got != "hi everyone see rules" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestQueueMessage(t *testing.T) {
	if got := queueMessage("", nil); got != messageQueueEmpty {
		t.Fatalf("unexpected empty queue message: %q", got)
	}

	titles := make([]string, 12)
	for i := range titles {
		titles[i] = fmt.Sprintf("track %d", i+1)
	}
	titles[3] = ""
	got := queueMessage("intro", titles)
	lines := strings.Split(got, "\n")
	if lines[0] != "**Now playing:** intro" || lines[1] != "**Up next (12):**" {
		t.Fatalf("unexpected header: %q", got)
	}
	if lines[5] != "4. audio" {
		t.Fatalf("expected untitled items to show as audio, got %q", lines[5])
	}
	if len(lines) != 13 || lines[12] != "…and 2 more" {
		t.Fatalf("unexpected preview: %q", got)
	}
}

func TestChunkLines(t *testing.T) {
	lines := []string{strings.Repeat("a", 8), strings.Repeat("b", 8), strings.Repeat("c", 30)}
	chunks := chunkLines(lines, 20)
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %q", chunks)
	}
	if chunks[0] != "aaaaaaaa\nbbbbbbbb\n" {
		t.Fatalf("unexpected first chunk: %q", chunks[0])
	}
	if chunks[1] != strings.Repeat("c", 30)+"\n" {
		t.Fatalf("expected oversized line in its own chunk: %q", chunks[1])
	}
	if chunks := chunkLines(nil, 20); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %q", chunks)
	}
}

func TestSettingsMessage(t *testing.T) {
	s := settings.Default()
	s.LogChannelID = "log-1"
	s.Wake.Enabled = false
	got := settingsMessage(s)

	for _, want := range []string{
		"**Voice**: en-US, Gender: NEUTRAL",
		"**Rate**: 1",
		"**Wake Word**: Disabled",
		"**Log Channel**: <#log-1>",
		"**Trigger Sound**: Enabled",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected long persona to be previewed: %q", got)
	}
}

package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/foxseedlab/kotodama/internal/audio"
)

var ErrQueueClosed = errors.New("playback queue is closed")

type Kind int

const (
	KindResource Kind = iota
	KindSpeech
)

// Item is either a ready PCM stream or an Ogg/Opus speech buffer.
type Item struct {
	Kind   Kind
	Title  string
	Stream io.ReadCloser
	Speech []byte
}

func ResourceItem(title string, stream io.ReadCloser) Item {
	return Item{Kind: KindResource, Title: title, Stream: stream}
}

func SpeechItem(title string, speech []byte) Item {
	return Item{Kind: KindSpeech, Title: title, Speech: speech}
}

func (it Item) discard() {
	if it.Stream != nil {
		_ = it.Stream.Close()
	}
}

// Queue is a strict FIFO drained by the player's idle edge.
type Queue struct {
	guildID    string
	player     *Player
	transcoder audio.Transcoder

	mu       sync.Mutex
	items    []Item
	speaking bool
	closed   bool
}

func NewQueue(guildID string, player *Player, transcoder audio.Transcoder) *Queue {
	q := &Queue{
		guildID:    guildID,
		player:     player,
		transcoder: transcoder,
	}
	player.OnIdle(q.DrainNext)
	return q
}

// Enqueue appends the item and starts it right away when nothing is playing.
func (q *Queue) Enqueue(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		item.discard()
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	slog.Debug("queued audio item", "guild_id", q.guildID, "title", item.Title, "pending", len(q.items))
	if q.player.State() == StateIdle && !q.speaking {
		q.drainLocked()
	}
	return nil
}

// DrainNext dispatches the head item. It does nothing while the player is busy.
func (q *Queue) DrainNext() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.speaking = false
		return
	}
	q.drainLocked()
}

func (q *Queue) drainLocked() {
	if q.player.State() != StateIdle {
		return
	}
	if len(q.items) == 0 {
		q.speaking = false
		return
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	q.speaking = true
	q.player.Play(item.Title, q.opener(item))
}

func (q *Queue) opener(item Item) OpenFunc {
	switch item.Kind {
	case KindSpeech:
		data := item.Speech
		return func(ctx context.Context) (io.ReadCloser, error) {
			return q.transcoder.Decode(ctx, bytes.NewReader(data))
		}
	default:
		stream := item.Stream
		return func(context.Context) (io.ReadCloser, error) {
			return stream, nil
		}
	}
}

// Clear drops pending items without touching current playback.
func (q *Queue) Clear() int {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	for _, it := range items {
		it.discard()
	}
	return len(items)
}

// Close clears the queue and rejects further items.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.Clear()
}

func (q *Queue) Titles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	titles := make([]string, len(q.items))
	for i, it := range q.items {
		titles[i] = it.Title
	}
	return titles
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

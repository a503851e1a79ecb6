package playback

import (
	"sync"

	"github.com/foxseedlab/kotodama/internal/audio"
)

// Registry keeps one Player per guild.
type Registry struct {
	newEncoder audio.EncoderFactory
	onError    func(guildID string, err error)

	mu      sync.Mutex
	players map[string]*Player
}

func NewRegistry(newEncoder audio.EncoderFactory, onError func(guildID string, err error)) *Registry {
	return &Registry{
		newEncoder: newEncoder,
		onError:    onError,
		players:    make(map[string]*Player),
	}
}

// GetOrCreate returns the guild's player, creating it bound to out. An
// existing player is rebound to out without adding another error handler.
func (r *Registry) GetOrCreate(guildID string, out Output) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[guildID]; ok {
		p.bindOutput(out)
		return p
	}
	var onError func(error)
	if r.onError != nil {
		onError = func(err error) { r.onError(guildID, err) }
	}
	p := newPlayer(guildID, out, r.newEncoder, onError)
	r.players[guildID] = p
	return p
}

func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Remove force-stops and forgets the guild's player.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()
	if ok {
		p.Stop(true)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

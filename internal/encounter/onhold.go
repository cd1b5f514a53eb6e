package encounter

import (
	"sort"
	"sync"
	"time"

	"github.com/jensholdgaard/trinity/internal/game"
)

// Kind distinguishes expeditions from attacks.
type Kind string

const (
	Expedition Kind = "expedition"
	Attack     Kind = "attack"
)

// Encounter is a reserved encounter waiting for its resolution time.
type Encounter struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"kind"`
	Player game.ID `json:"player_id,string"`
	Target string  `json:"target,omitempty"`
	// Manpower is the force withheld from the player until resolution.
	Manpower int64 `json:"manpower"`
	// Cost is the money debited at reservation.
	Cost      int64     `json:"cost"`
	Started   time.Time `json:"started"`
	ResolveAt time.Time `json:"resolve_at"`
}

// Change is a notification that an encounter entered or left the on-hold list.
type Change struct {
	Encounter Encounter `json:"encounter"`
	// Resolved is false when the encounter was added.
	Resolved bool `json:"resolved"`
}

// registry is the transient on-hold list.
type registry struct {
	mu        sync.Mutex
	pending   map[string]Encounter
	listeners map[int]func(Change)
	nextID    int
}

func newRegistry() *registry {
	return &registry{
		pending:   make(map[string]Encounter),
		listeners: make(map[int]func(Change)),
	}
}

func (r *registry) add(e Encounter) {
	r.mu.Lock()
	r.pending[e.ID] = e
	ls := r.snapshotListeners()
	r.mu.Unlock()
	notify(ls, Change{Encounter: e})
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	e, ok := r.pending[id]
	delete(r.pending, id)
	ls := r.snapshotListeners()
	r.mu.Unlock()
	if ok {
		notify(ls, Change{Encounter: e, Resolved: true})
	}
}

func (r *registry) list() []Encounter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Encounter, 0, len(r.pending))
	for _, e := range r.pending {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ResolveAt.Equal(out[j].ResolveAt) {
			return out[i].ResolveAt.Before(out[j].ResolveAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *registry) subscribe(fn func(Change)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// snapshotListeners must be called with r.mu held.
func (r *registry) snapshotListeners() []func(Change) {
	ls := make([]func(Change), 0, len(r.listeners))
	for _, fn := range r.listeners {
		ls = append(ls, fn)
	}
	return ls
}

func notify(ls []func(Change), c Change) {
	for _, fn := range ls {
		fn(c)
	}
}

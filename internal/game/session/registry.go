// Package session tracks all player entities, their connections'
// ports, AI-takeover flags, arena membership, and per-round turn
// completion. The Registry is the only state mutated by more than one
// goroutine; everything else is owned by the task running a turn.
package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/netio"
)

// Registry is the thread-safe session store. A plain Mutex (not
// RWMutex) backs it because the arena release condition variable needs
// the same lock for its wait loop.
type Registry struct {
	mu      sync.Mutex
	release *sync.Cond

	entities map[string]*entity.Player
	ports    map[string]netio.Port
	ai       map[string]bool
	arena    map[string]bool
	// turnDone is rebuilt at every round start from the human set.
	turnDone map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		entities: make(map[string]*entity.Player),
		ports:    make(map[string]netio.Port),
		ai:       make(map[string]bool),
		arena:    make(map[string]bool),
		turnDone: make(map[string]bool),
	}
	r.release = sync.NewCond(&r.mu)
	return r
}

// AddEntity registers a player entity.
//
// Postcondition: Returns an error if the name is already registered.
func (r *Registry) AddEntity(p *entity.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[p.Name]; exists {
		return fmt.Errorf("entity %q already registered", p.Name)
	}
	r.entities[p.Name] = p
	return nil
}

// RemoveEntity removes a player and all its associated state.
//
// Postcondition: The entity is gone from the arena pool and the turn
// set; waiters on the release condition are woken.
func (r *Registry) RemoveEntity(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[name]; !exists {
		return fmt.Errorf("entity %q not found", name)
	}
	delete(r.entities, name)
	delete(r.ports, name)
	delete(r.ai, name)
	delete(r.arena, name)
	delete(r.turnDone, name)
	r.release.Broadcast()
	return nil
}

// Entity returns the player with the given name.
func (r *Registry) Entity(name string) (*entity.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entities[name]
	return p, ok
}

// BindPort atomically binds a port to an entity, replacing any
// previous binding.
//
// Postcondition: Returns the replaced port (nil if none) so the caller
// can tear down the superseded connection. At most one port is bound
// to a name at any instant.
func (r *Registry) BindPort(name string, port netio.Port) (netio.Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[name]; !exists {
		return nil, fmt.Errorf("entity %q not found", name)
	}
	old := r.ports[name]
	r.ports[name] = port
	return old, nil
}

// Port returns the port currently bound to the entity.
func (r *Registry) Port(name string) (netio.Port, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.ports[name]
	return p, ok
}

// SetAIControlled flips the AI-takeover flag. Flagging an entity AI
// also marks its turn complete so the round barrier never waits on it,
// and wakes release waiters.
func (r *Registry) SetAIControlled(name string, ai bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ai[name] = ai
	if ai {
		if _, inRound := r.turnDone[name]; inRound {
			r.turnDone[name] = true
		}
		r.release.Broadcast()
	}
}

// IsAIControlled reads the AI-takeover flag.
func (r *Registry) IsAIControlled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ai[name]
}

// HumanEntities returns a snapshot of entities that are alive and not
// AI-controlled, sorted by name for deterministic scheduling.
func (r *Registry) HumanEntities() []*entity.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	var humans []*entity.Player
	for name, p := range r.entities {
		if !r.ai[name] && p.Stats.Alive() {
			humans = append(humans, p)
		}
	}
	sort.Slice(humans, func(i, j int) bool { return humans[i].Name < humans[j].Name })
	return humans
}

// AllEntities returns a snapshot of every registered entity, sorted by
// name.
func (r *Registry) AllEntities() []*entity.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*entity.Player, 0, len(r.entities))
	for _, p := range r.entities {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// OtherEntities returns a snapshot of every entity except name, sorted
// by name.
func (r *Registry) OtherEntities(name string) []*entity.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	var others []*entity.Player
	for n, p := range r.entities {
		if n != name {
			others = append(others, p)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i].Name < others[j].Name })
	return others
}

// AddToArena opts an entity into the arena pool.
func (r *Registry) AddToArena(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entities[name]; exists {
		r.arena[name] = true
	}
}

// RemoveFromArena drops an entity from the pool and wakes any waiter
// blocked on its release.
func (r *Registry) RemoveFromArena(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.arena, name)
	r.release.Broadcast()
}

// InArena reports arena pool membership.
func (r *Registry) InArena(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arena[name]
}

// ArenaMembers returns a snapshot of the pool, sorted by name.
func (r *Registry) ArenaMembers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]string, 0, len(r.arena))
	for name := range r.arena {
		members = append(members, name)
	}
	sort.Strings(members)
	return members
}

// ClearArena empties the pool and wakes all release waiters.
func (r *Registry) ClearArena() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arena = make(map[string]bool)
	r.release.Broadcast()
}

// BeginRound rebuilds the turn-complete set for the given entities.
func (r *Registry) BeginRound(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.turnDone = make(map[string]bool, len(names))
	for _, name := range names {
		r.turnDone[name] = false
	}
}

// MarkTurnComplete flags an entity's turn done for the current round
// and wakes release waiters.
func (r *Registry) MarkTurnComplete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, inRound := r.turnDone[name]; inRound {
		r.turnDone[name] = true
		r.release.Broadcast()
	}
}

// AllTurnsComplete reports whether every entity scheduled this round
// has finished its turn.
func (r *Registry) AllTurnsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allTurnsCompleteLocked()
}

func (r *Registry) allTurnsCompleteLocked() bool {
	for _, done := range r.turnDone {
		if !done {
			return false
		}
	}
	return true
}

// WaitArenaRelease blocks an arena joiner until either every turn of
// the round is complete (the fight is about to start) or the entity
// has been removed from the pool by a concurrent resolution.
//
// Postcondition: Returns true if the entity is still in the pool.
func (r *Registry) WaitArenaRelease(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.arena[name] && !r.allTurnsCompleteLocked() {
		r.release.Wait()
	}
	return r.arena[name]
}

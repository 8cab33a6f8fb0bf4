package game

import "sync"

// Registry holds every live room keyed by code. Lookup and lifecycle only;
// all game state lives inside the rooms themselves.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Add registers a room under its code. Fails if the code is taken, which the
// creating handler uses to retry with a fresh code.
func (reg *Registry) Add(r *Room) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[r.Code]; ok {
		return ErrRoomExists
	}
	reg.rooms[r.Code] = r
	return nil
}

func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	return r, ok
}

func (reg *Registry) Remove(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, code)
}

// Len reports the number of live rooms, used by the health endpoint.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

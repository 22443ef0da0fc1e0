package registry

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ensemble/internal/room"
	"ensemble/pkg/interfaces"
	"ensemble/pkg/types"
)

// reservedNames can never be assigned to a created room.
var reservedNames = map[string]bool{
	types.LobbyRoom: true,
	"admin":         true,
	"system":        true,
	"health":        true,
}

// Registry is the process-wide room collection plus the disconnect-recovery
// table. Entries are added and never removed: a room that loses all its
// participants goes dormant but stays addressable for reconnection.
type Registry struct {
	director interfaces.Director
	store    interfaces.Store

	mu       sync.RWMutex
	rooms    map[string]*room.Room
	lastRoom map[string]string // participant id -> last known room name
}

// New creates a registry seeded with the lobby room.
func New(director interfaces.Director, store interfaces.Store) *Registry {
	r := &Registry{
		director: director,
		store:    store,
		rooms:    make(map[string]*room.Room),
		lastRoom: make(map[string]string),
	}
	r.rooms[types.LobbyRoom] = room.New(types.LobbyRoom, director, store, false)
	return r
}

// Lobby returns the reserved lobby room.
func (r *Registry) Lobby() *room.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[types.LobbyRoom]
}

// Resolve looks up a room by name.
func (r *Registry) Resolve(name string) (*room.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[name]
	return rm, ok
}

// RoomNames returns the names of all known rooms.
func (r *Registry) RoomNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	return names
}

// CreateRoom creates and registers a room under a generated unique name.
// The generator proposes a word; collisions and reserved names fall back to
// a uuid-suffixed form, so creation never fails on naming. The availability
// check and the install happen under one write lock, so two concurrent
// creations proposing the same word can never claim the same name.
func (r *Registry) CreateRoom(ctx context.Context, performanceMode bool) *room.Room {
	word := r.proposeWord(ctx)

	r.mu.Lock()
	name := r.pickName(word)
	rm := room.New(name, r.director, r.store, performanceMode)
	r.rooms[name] = rm
	r.mu.Unlock()

	log.Printf("Created room: name=%s performanceMode=%v", name, performanceMode)
	return rm
}

// proposeWord asks the generator for a candidate name. Called without the
// lock; the generator may block.
func (r *Registry) proposeWord(ctx context.Context) string {
	word, err := r.director.RoomNameWord(ctx, r.RoomNames())
	if err != nil {
		log.Printf("Room name generator unavailable, falling back to uuid: %v", err)
		word = ""
	}
	return sanitizeName(word)
}

// pickName turns the proposed word into an unclaimed room name. Callers
// hold r.mu for writing.
func (r *Registry) pickName(word string) string {
	if word != "" && !reservedNames[word] {
		if _, taken := r.rooms[word]; !taken {
			return word
		}
	}
	if word == "" {
		word = "room"
	}
	for {
		candidate := word + "-" + uuid.NewString()[:8]
		if _, taken := r.rooms[candidate]; !taken && !reservedNames[candidate] {
			return candidate
		}
	}
}

// sanitizeName lowercases a proposed word and strips everything outside
// the room-name alphabet.
func sanitizeName(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	var b strings.Builder
	for _, c := range word {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteRune(c)
		}
	}
	name := strings.Trim(b.String(), "-")
	if !types.IsValidRoomName(name) {
		return ""
	}
	return name
}

// RecordLastRoom notes the room a participant was last seen in, for
// disconnect recovery.
func (r *Registry) RecordLastRoom(userID, roomName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRoom[userID] = roomName
}

// RecoverRoom returns the room a disconnected participant should rejoin.
func (r *Registry) RecoverRoom(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.lastRoom[userID]
	return name, ok
}

// Stats returns registry counters for logging and tests.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"rooms":            len(r.rooms),
		"recovery_entries": len(r.lastRoom),
	}
}

package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"ensemble/internal/registry"
	"ensemble/internal/room"
	"ensemble/internal/router"
	"ensemble/internal/websocket"
	"ensemble/pkg/interfaces"
	"ensemble/pkg/types"
)

// requestTimeout bounds the generator and store work triggered by one
// inbound message.
const requestTimeout = 30 * time.Second

type handlerFunc func(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error

// Hub dispatches inbound messages to action handlers and owns the
// participant records shared across rooms. Every connection is a lobby
// member until it registers into a performance room.
type Hub struct {
	rooms    *registry.Registry
	router   *router.Router
	conns    *websocket.Registry
	director interfaces.Director
	verifier interfaces.TokenVerifier

	mu           sync.RWMutex
	participants map[string]*types.Participant
	membership   map[string]string // participant id -> room name

	handlers     map[string]handlerFunc
	authRequired map[string]bool
}

// New creates the hub and registers its action table. Rooms created
// through the hub deliver their outbound traffic via the router.
func New(rooms *registry.Registry, rtr *router.Router, conns *websocket.Registry,
	director interfaces.Director, verifier interfaces.TokenVerifier) *Hub {

	h := &Hub{
		rooms:        rooms,
		router:       rtr,
		conns:        conns,
		director:     director,
		verifier:     verifier,
		participants: make(map[string]*types.Participant),
		membership:   make(map[string]string),
	}

	h.handlers = map[string]handlerFunc{
		types.ActionRegistration:     h.handleRegistration,
		types.ActionCreateRoom:       h.handleCreateRoom,
		types.ActionJoinRoom:         h.handleJoinRoom,
		types.ActionRejoinRoom:       h.handleRejoinRoom,
		types.ActionLobbyFeedback:    h.handleLobbyFeedback,
		types.ActionStartPerformance: h.handleStartPerformance,
		types.ActionThemeVote:        h.handleThemeVote,
		types.ActionReactToDirective: h.handleReactToDirective,
		types.ActionUseNextDirective: h.handleUseNextDirective,
		types.ActionIgnoreDirective:  h.handleIgnoreDirective,
		types.ActionEndSong:          h.handleEndSong,
		types.ActionPerformanceDone:  h.handlePerformanceComplete,
		types.ActionDebriefFeedback:  h.handleDebriefFeedback,
		types.ActionPlayAgain:        h.handlePlayAgain,
	}
	h.authRequired = map[string]bool{
		types.ActionCreateRoom: true,
		types.ActionPlayAgain:  true,
	}

	h.attach(rooms.Lobby())
	return h
}

// attach points a room's outbound notifier at the router.
func (h *Hub) attach(rm *room.Room) {
	rm.SetNotifier(func(out *types.Outbound) {
		h.router.Deliver(rm, out)
	})
}

// HandleConnect lands a new connection in the lobby and greets it.
func (h *Hub) HandleConnect(conn *websocket.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	userID := conn.UserID()
	p := types.NewParticipant(userID)

	h.mu.Lock()
	h.participants[userID] = p
	h.membership[userID] = types.LobbyRoom
	h.mu.Unlock()

	if err := h.rooms.Lobby().AddPerformer(p); err != nil {
		log.Printf("Failed to add %s to lobby: %v", userID, err)
	}

	message, err := h.director.WelcomeMessage(ctx)
	if err != nil {
		log.Printf("Welcome message unavailable: %v", err)
		message = "Welcome! Let's get you set up to play."
	}
	h.unicast(conn, &types.Outbound{
		Action:           types.ActionWelcome,
		RoomName:         types.LobbyRoom,
		Message:          message,
		ResponseRequired: true,
		ResponseAction:   types.ActionRegistration,
	})
}

// Dispatch routes one validated envelope to its action handler. Unknown
// actions are ignored. Protected actions verify the bearer token before any
// state is touched.
func (h *Hub) Dispatch(conn *websocket.Connection, env *types.Envelope) {
	handler, ok := h.handlers[env.Action]
	if !ok {
		log.Printf("Ignoring unknown action %q from %s", env.Action, conn.UserID())
		return
	}

	if h.authRequired[env.Action] {
		if err := h.authorize(env); err != nil {
			log.Printf("Rejected %s from %s: %v", env.Action, conn.UserID(), err)
			h.unicast(conn, types.ErrorOutbound(env.RoomName, err.Error()))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := handler(ctx, conn, env); err != nil {
		log.Printf("Action %s from %s failed: %v", env.Action, conn.UserID(), err)
		h.unicast(conn, types.ErrorOutbound(env.RoomName, err.Error()))
	}
}

// authorize verifies the envelope's bearer token against the configured
// verifier.
func (h *Hub) authorize(env *types.Envelope) error {
	if h.verifier == nil {
		return nil
	}
	if env.Token == "" {
		return ErrTokenRequired
	}
	if _, err := h.verifier.Verify(env.Token); err != nil {
		return err
	}
	return nil
}

// HandleDisconnect removes a connection's participant from its room. The
// participant record survives so a rejoin can restore it, and its last room
// is kept for recovery. A stale disconnect from a connection already
// replaced by a newer one is ignored.
func (h *Hub) HandleDisconnect(conn *websocket.Connection) {
	userID := conn.UserID()
	if current, ok := h.conns.Get(userID); ok && current != conn {
		return
	}

	h.mu.Lock()
	roomName, ok := h.membership[userID]
	delete(h.membership, userID)
	h.mu.Unlock()
	if !ok {
		return
	}

	rm, found := h.rooms.Resolve(roomName)
	if !found {
		return
	}
	rm.HandleDisconnect(userID)
	log.Printf("Participant %s disconnected from room %s", userID, roomName)
}

// participant returns the record for an identity, creating one on demand.
func (h *Hub) participant(userID string) *types.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.participants[userID]
	if !ok {
		p = types.NewParticipant(userID)
		h.participants[userID] = p
	}
	return p
}

// memberRoom resolves the room an envelope targets, falling back to the
// sender's current membership when no room name was supplied.
func (h *Hub) memberRoom(conn *websocket.Connection, env *types.Envelope) (*room.Room, bool) {
	name := env.RoomName
	if name == "" {
		h.mu.RLock()
		name = h.membership[conn.UserID()]
		h.mu.RUnlock()
	}
	if name == "" {
		name = types.LobbyRoom
	}
	return h.rooms.Resolve(name)
}

// roomOrReject resolves the envelope's room and tells the sender when it
// does not exist.
func (h *Hub) roomOrReject(conn *websocket.Connection, env *types.Envelope) (*room.Room, bool) {
	rm, ok := h.memberRoom(conn, env)
	if !ok {
		h.unicast(conn, &types.Outbound{Action: types.ActionRoomDoesNotExist, RoomName: env.RoomName})
	}
	return rm, ok
}

// setMembership moves a participant's membership pointer to a room and
// records it for disconnect recovery.
func (h *Hub) setMembership(userID, roomName string) {
	h.mu.Lock()
	h.membership[userID] = roomName
	h.mu.Unlock()

	if roomName != types.LobbyRoom {
		h.rooms.RecordLastRoom(userID, roomName)
	}
}

// rebindIdentity renames a connection's identity when the client asserts
// its own id during registration or rejoin. An existing record under the
// asserted id wins over the placeholder created at connect time.
func (h *Hub) rebindIdentity(conn *websocket.Connection, newID string) {
	oldID := conn.UserID()
	if oldID == newID || newID == "" {
		return
	}

	h.conns.Rename(oldID, newID, conn)
	conn.SetUserID(newID)

	h.mu.Lock()
	p := h.participants[oldID]
	if existing, ok := h.participants[newID]; ok {
		p = existing
	} else {
		if p == nil {
			p = types.NewParticipant(newID)
		}
		p.ID = newID
		h.participants[newID] = p
	}
	delete(h.participants, oldID)
	roomName := h.membership[oldID]
	delete(h.membership, oldID)
	if roomName == "" {
		roomName = types.LobbyRoom
	}
	h.membership[newID] = roomName
	h.mu.Unlock()

	// Swap the lobby membership entry over to the surviving record.
	lobby := h.rooms.Lobby()
	if lobby.RemovePerformer(oldID) {
		if err := lobby.AddPerformer(p); err != nil {
			log.Printf("Failed to rebind %s in lobby: %v", newID, err)
		}
	}
}

// unicast sends one message directly to a connection.
func (h *Hub) unicast(conn *websocket.Connection, out *types.Outbound) {
	if err := conn.WriteJSON(out); err != nil {
		log.Printf("Failed to send %s to %s: %v", out.Action, conn.UserID(), err)
	}
}

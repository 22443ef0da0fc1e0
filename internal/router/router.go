package router

import (
	"log"

	"ensemble/internal/room"
	"ensemble/internal/websocket"
	"ensemble/pkg/types"
)

// Router delivers outbound messages to room members over their live
// connections. Delivery to each connection is independent: one closed or
// failing connection never aborts delivery to the rest.
type Router struct {
	connections *websocket.Registry
}

// NewRouter creates a message router over the connection registry.
func NewRouter(connections *websocket.Registry) *Router {
	return &Router{connections: connections}
}

// Deliver routes one outbound message for a room. Feedback questions are
// split out and unicast to their target participants; the remainder goes
// to the explicit recipient list when present, otherwise it is broadcast
// to every performer and audience member.
func (r *Router) Deliver(rm *room.Room, out *types.Outbound) {
	if out == nil {
		return
	}

	if len(out.FeedbackQuestions) > 0 {
		for _, q := range out.FeedbackQuestions {
			r.Unicast(&types.Outbound{
				RoomName:          rm.Name(),
				GameStatus:        out.GameStatus,
				FeedbackQuestions: []types.FeedbackQuestion{q},
			}, q.UserIDs)
		}
		// The question payload was delivered individually; only the
		// remainder, if any, goes room-wide.
		stripped := *out
		stripped.FeedbackQuestions = nil
		if !emptyOutbound(&stripped) {
			r.deliverRemainder(rm, &stripped)
		}
		return
	}

	r.deliverRemainder(rm, out)
}

func (r *Router) deliverRemainder(rm *room.Room, out *types.Outbound) {
	if len(out.Recipients) > 0 {
		r.Unicast(out, out.Recipients)
		return
	}
	r.Broadcast(rm, out)
}

// Broadcast sends a message to every current performer and audience member
// of the room.
func (r *Router) Broadcast(rm *room.Room, out *types.Outbound) {
	r.Unicast(out, rm.MemberIDs())
}

// Unicast sends a message to the named participants only. Recipients
// without a live connection are skipped.
func (r *Router) Unicast(out *types.Outbound, userIDs []string) {
	for _, id := range userIDs {
		conn, ok := r.connections.Get(id)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(out); err != nil {
			log.Printf("Failed to deliver message to %s: %v", id, err)
		}
	}
}

// emptyOutbound reports whether a message has nothing left worth sending.
func emptyOutbound(out *types.Outbound) bool {
	return out.Action == "" && out.GameState == nil && out.Message == "" &&
		out.Summary == "" && out.Error == "" && out.GameStatus == ""
}

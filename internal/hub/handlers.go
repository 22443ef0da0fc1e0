package hub

import (
	"context"
	"errors"
	"log"

	"ensemble/internal/room"
	"ensemble/internal/websocket"
	"ensemble/pkg/types"
)

// handleRegistration runs the profile-entry conversation. Each missing
// field produces a unicast prompt with responseRequired set; once the
// profile is complete the participant either creates a room or names one to
// join.
func (h *Hub) handleRegistration(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	if env.UserID != "" {
		h.rebindIdentity(conn, env.UserID)
	}
	userID := conn.UserID()
	p := h.participant(userID)
	p.SetProfile(env.ScreenName, env.Instrument)

	if p.ScreenName() == "" {
		h.unicast(conn, &types.Outbound{
			Action:           types.ActionRegistration,
			RoomName:         types.LobbyRoom,
			Message:          "What name should the ensemble know you by?",
			ResponseRequired: true,
			ResponseAction:   types.ActionNewScreenName,
		})
		return nil
	}

	if p.Instrument() == "" {
		h.unicast(conn, &types.Outbound{
			Action:           types.ActionRegistration,
			RoomName:         types.LobbyRoom,
			Message:          "What instrument will you be playing, " + p.ScreenName() + "?",
			ResponseRequired: true,
			ResponseAction:   types.ActionNewInstrument,
		})
		return nil
	}

	if env.RoomCreator {
		rm := h.rooms.CreateRoom(ctx, false)
		return h.join(ctx, rm, p, env.Audience)
	}

	if env.Room() == types.LobbyRoom {
		h.unicast(conn, &types.Outbound{
			Action:           types.ActionRegistration,
			RoomName:         types.LobbyRoom,
			Message:          "Enter the room you would like to join.",
			ResponseRequired: true,
			ResponseAction:   types.ActionJoinRoom,
		})
		return nil
	}

	rm, ok := h.rooms.Resolve(env.Room())
	if !ok {
		h.unicast(conn, &types.Outbound{Action: types.ActionRoomDoesNotExist, RoomName: env.Room()})
		return nil
	}
	return h.join(ctx, rm, p, env.Audience)
}

// handleCreateRoom creates a performance-mode room for an authorized
// caller. A theme supplied with the request is installed pre-approved, so
// the room can start without a consensus round.
func (h *Hub) handleCreateRoom(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	if env.UserID != "" {
		h.rebindIdentity(conn, env.UserID)
	}
	p := h.participant(conn.UserID())
	p.SetProfile(env.ScreenName, env.Instrument)
	p.RoomCreator = true

	rm := h.rooms.CreateRoom(ctx, true)
	if env.Message != "" {
		rm.SetPreApprovedTheme(env.Message)
	}
	return h.join(ctx, rm, p, env.Audience)
}

func (h *Hub) handleJoinRoom(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	if env.UserID != "" {
		h.rebindIdentity(conn, env.UserID)
	}
	p := h.participant(conn.UserID())
	p.SetProfile(env.ScreenName, env.Instrument)

	if env.Room() == types.LobbyRoom {
		h.unicast(conn, &types.Outbound{
			Action:           types.ActionRegistration,
			RoomName:         types.LobbyRoom,
			Message:          "Enter the room you would like to join.",
			ResponseRequired: true,
			ResponseAction:   types.ActionJoinRoom,
		})
		return nil
	}

	rm, ok := h.rooms.Resolve(env.Room())
	if !ok {
		h.unicast(conn, &types.Outbound{Action: types.ActionRoomDoesNotExist, RoomName: env.Room()})
		return nil
	}
	return h.join(ctx, rm, p, env.Audience)
}

// handleRejoinRoom restores a disconnected participant, preferring the
// room named in the request and falling back to the recovery table.
func (h *Hub) handleRejoinRoom(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	if env.UserID != "" {
		h.rebindIdentity(conn, env.UserID)
	}
	userID := conn.UserID()
	p := h.participant(userID)
	p.SetProfile(env.ScreenName, env.Instrument)

	name := env.RoomName
	if name == "" || name == types.LobbyRoom {
		recovered, ok := h.rooms.RecoverRoom(userID)
		if !ok {
			h.unicast(conn, &types.Outbound{Action: types.ActionRoomDoesNotExist, RoomName: name})
			return nil
		}
		name = recovered
	}

	rm, ok := h.rooms.Resolve(name)
	if !ok {
		h.unicast(conn, &types.Outbound{Action: types.ActionRoomDoesNotExist, RoomName: name})
		return nil
	}

	h.attach(rm)
	h.rooms.Lobby().RemovePerformer(userID)
	rm.Rejoin(ctx, p)
	h.setMembership(userID, rm.Name())
	h.router.Deliver(rm, rm.StateResponse(types.ActionNewPlayer))
	return nil
}

// join moves a participant from the lobby into a room and announces the
// new membership. Performers in a room still waiting to start also get a
// getting-to-know-you question.
func (h *Hub) join(ctx context.Context, rm *room.Room, p *types.Participant, audience bool) error {
	h.attach(rm)
	if lobby := h.rooms.Lobby(); lobby != rm {
		lobby.RemovePerformer(p.ID)
	}

	var err error
	if audience {
		err = rm.AddAudience(p)
	} else {
		err = rm.AddPerformer(p)
	}
	if err != nil && !errors.Is(err, room.ErrDuplicatePerformer) {
		return err
	}

	h.setMembership(p.ID, rm.Name())
	if !audience {
		rm.CompleteRegistration(p.ID)
	}

	out := rm.StateResponse(types.ActionNewPlayer)
	status := rm.Status()
	if !audience && (status == types.StatusRegistration || status == types.StatusThemeSelection) {
		q, qErr := rm.LobbyQuestion(ctx, p.ID)
		if qErr != nil {
			log.Printf("Lobby question for %s unavailable: %v", p.ID, qErr)
		} else {
			out.FeedbackQuestions = append(out.FeedbackQuestions, *q)
		}
	}
	h.router.Deliver(rm, out)
	return nil
}

// handleLobbyFeedback logs a getting-to-know-you answer and follows up
// with the next question for the same participant.
func (h *Hub) handleLobbyFeedback(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	userID := conn.UserID()

	entry := types.FeedbackEntry{Question: env.Question, Response: env.Response}
	if err := rm.RecordLobbyFeedback(userID, entry); err != nil {
		return err
	}

	q, err := rm.LobbyQuestion(ctx, userID)
	if err != nil {
		log.Printf("Lobby question for %s unavailable: %v", userID, err)
		return nil
	}
	h.router.Deliver(rm, &types.Outbound{
		RoomName:          rm.Name(),
		GameStatus:        rm.Status(),
		FeedbackQuestions: []types.FeedbackQuestion{*q},
	})
	return nil
}

// handleStartPerformance either opens the theme consensus round or, once
// the theme carried, issues the opening directive set and starts the
// replacement timers.
func (h *Hub) handleStartPerformance(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}

	if rm.ThemeApproved() {
		if err := rm.StartImprovisation(ctx); err != nil {
			return err
		}
		h.router.Deliver(rm, rm.StateResponse(types.ActionNewGameState))
		return nil
	}

	theme, err := rm.ProposeTheme(ctx)
	if err != nil {
		return err
	}
	h.broadcastThemeProposal(rm, theme)
	return nil
}

func (h *Hub) broadcastThemeProposal(rm *room.Room, theme string) {
	out := rm.StateResponse(types.ActionNewGameState)
	out.Message = theme
	out.ResponseRequired = true
	out.ResponseAction = types.ActionThemeVote
	h.router.Deliver(rm, out)
}

// handleThemeVote records one reaction to the proposed theme. Consensus
// starts the improvisation; a full round without consensus broadcasts a
// refined proposal.
func (h *Hub) handleThemeVote(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	if env.Vote == nil {
		return errors.New("vote field required")
	}

	vote, err := rm.RecordThemeVote(ctx, conn.UserID(), *env.Vote)
	if err != nil {
		return err
	}

	switch vote.Outcome {
	case room.VoteApproved:
		if err := rm.StartImprovisation(ctx); err != nil {
			return err
		}
		h.router.Deliver(rm, rm.StateResponse(types.ActionNewGameState))
	case room.VoteRefined:
		h.broadcastThemeProposal(rm, vote.Theme)
	default:
		log.Printf("Room %s: theme vote recorded (%d/%d in favor)", rm.Name(), vote.Favor, vote.Total)
	}
	return nil
}

// handleReactToDirective logs a reaction against the sender's current
// directive, trying the performer directive first and the group directive
// when no performer directive is live.
func (h *Hub) handleReactToDirective(_ context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	userID := conn.UserID()

	err := rm.ReactToDirective(userID, types.DirectivePerformer, env.Reaction)
	if errors.Is(err, room.ErrNoCurrentDirective) {
		err = rm.ReactToDirective(userID, types.DirectiveGroup, env.Reaction)
	}
	if err != nil {
		return err
	}
	h.router.Deliver(rm, rm.StateResponse(types.ActionNewGameState))
	return nil
}

func (h *Hub) handleUseNextDirective(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	if err := rm.UseNextDirective(ctx, conn.UserID()); err != nil {
		return err
	}
	h.router.Deliver(rm, rm.StateResponse(types.ActionNewGameState))
	return nil
}

func (h *Hub) handleIgnoreDirective(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	if err := rm.IgnoreDirective(ctx, conn.UserID()); err != nil {
		return err
	}
	h.router.Deliver(rm, rm.StateResponse(types.ActionNewGameState))
	return nil
}

func (h *Hub) handleEndSong(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	if err := rm.EndSong(ctx); err != nil {
		return err
	}
	h.router.Deliver(rm, rm.StateResponse(types.ActionEndSong))
	return nil
}

func (h *Hub) handlePerformanceComplete(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	out, err := rm.PerformanceComplete(ctx)
	if err != nil {
		return err
	}
	h.router.Deliver(rm, out)
	return nil
}

func (h *Hub) handleDebriefFeedback(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	out, err := rm.RecordDebriefFeedback(ctx, conn.UserID(), env.Question, env.Response)
	if err != nil {
		return err
	}
	h.router.Deliver(rm, out)
	return nil
}

// handlePlayAgain opens a fresh attempt and broadcasts the new theme
// proposal.
func (h *Hub) handlePlayAgain(ctx context.Context, conn *websocket.Connection, env *types.Envelope) error {
	rm, ok := h.roomOrReject(conn, env)
	if !ok {
		return nil
	}
	theme, err := rm.PlayAgain(ctx)
	if err != nil {
		return err
	}
	h.broadcastThemeProposal(rm, theme)
	return nil
}

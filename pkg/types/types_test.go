package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectiveTerminal(t *testing.T) {
	assert.False(t, Directive{Kind: DirectiveGroup}.Terminal())
	assert.False(t, Directive{Kind: DirectivePerformer}.Terminal())
	assert.True(t, Directive{Kind: DirectiveEnd}.Terminal())
}

func TestSessionStateCurrentSet(t *testing.T) {
	s := &SessionState{Attempt: 1}
	assert.Nil(t, s.CurrentSet())

	first := DirectiveSet{Group: Directive{Kind: DirectiveGroup, Title: "first"}}
	second := DirectiveSet{Group: Directive{Kind: DirectiveGroup, Title: "second"}}
	s.AppendSet(first)
	s.AppendSet(second)

	require.NotNil(t, s.CurrentSet())
	assert.Equal(t, "second", s.CurrentSet().Group.Title)
	assert.Len(t, s.Sets, 2)
}

func TestSessionStateElapsed(t *testing.T) {
	s := &SessionState{}
	assert.Equal(t, 0, s.Elapsed(time.Now()))

	s.StartTime = time.Now().Add(-90 * time.Second)
	assert.InDelta(t, 90, s.Elapsed(time.Now()), 1)
}

func TestParticipantDirectiveLog(t *testing.T) {
	p := NewParticipant("alice")
	now := time.Now()

	group := Directive{Kind: DirectiveGroup, Title: "Opening", Text: "settle in"}
	solo := Directive{Kind: DirectivePerformer, Title: "Focus", Text: "lay out"}
	p.AssignDirective(group, now)
	p.AssignDirective(solo, now)

	current, ok := p.CurrentDirective(DirectiveGroup)
	require.True(t, ok)
	assert.Equal(t, "Opening", current.Directive.Title)

	current, ok = p.CurrentDirective(DirectivePerformer)
	require.True(t, ok)
	assert.Equal(t, "Focus", current.Directive.Title)

	// A replacement supersedes the current entry but history keeps both.
	p.AssignDirective(Directive{Kind: DirectivePerformer, Title: "Focus 2"}, now.Add(time.Second))
	current, _ = p.CurrentDirective(DirectivePerformer)
	assert.Equal(t, "Focus 2", current.Directive.Title)
	assert.Len(t, p.History(), 3)

	p.ClearDirective(DirectiveGroup)
	_, ok = p.CurrentDirective(DirectiveGroup)
	assert.False(t, ok)
	assert.Len(t, p.History(), 3)
}

func TestParticipantSetProfile(t *testing.T) {
	p := NewParticipant("alice")
	p.SetProfile("Alice", "")
	assert.Equal(t, "Alice", p.ScreenName())
	assert.Empty(t, p.Instrument())

	p.SetProfile("", "cello")
	assert.Equal(t, "cello", p.Instrument())

	// Empty values never clear a field already set.
	p.SetProfile("", "")
	assert.Equal(t, "Alice", p.ScreenName())
	assert.Equal(t, "cello", p.Instrument())

	p.SetProfile("Ali", "viola")
	assert.Equal(t, "Ali", p.ScreenName())
	assert.Equal(t, "viola", p.Instrument())
}

func TestParticipantLogReaction(t *testing.T) {
	p := NewParticipant("alice")
	assert.False(t, p.LogReaction(DirectivePerformer, "moveOn"))

	now := time.Now()
	p.AssignDirective(Directive{Kind: DirectivePerformer, Title: "one"}, now)
	p.AssignDirective(Directive{Kind: DirectivePerformer, Title: "two"}, now.Add(time.Second))

	require.True(t, p.LogReaction(DirectivePerformer, "moveOn"))
	history := p.History()
	assert.Empty(t, history[0].Reaction)
	assert.Equal(t, "moveOn", history[1].Reaction)
}

func TestParticipantResetAttempt(t *testing.T) {
	p := NewParticipant("alice")
	p.SetProfile("Alice", "cello")
	p.AssignDirective(Directive{Kind: DirectiveGroup, Title: "x"}, time.Now())
	p.LogFeedback(FeedbackLobby, FeedbackEntry{Question: "q", Response: "a"})
	require.NoError(t, p.Personality.Set("Energy", 8))

	p.ResetAttempt()

	assert.Empty(t, p.History())
	assert.Equal(t, 0, p.FeedbackCount(FeedbackLobby))
	_, ok := p.CurrentDirective(DirectiveGroup)
	assert.False(t, ok)
	// Identity and personality survive.
	assert.Equal(t, "Alice", p.ScreenName())
	assert.Equal(t, 8.0, p.Personality.Attributes["Energy"])
}

func TestOutboundRecipientsNotSerialized(t *testing.T) {
	out := (&Outbound{Action: ActionNewGameState, RoomName: "aurora"}).To("alice", "bob")

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "alice")
	assert.NotContains(t, string(data), "Recipients")
	assert.Equal(t, []string{"alice", "bob"}, out.Recipients)
}

func TestEnvelopeRoomDefaultsToLobby(t *testing.T) {
	e := &Envelope{Action: ActionRegistration}
	assert.Equal(t, LobbyRoom, e.Room())

	e.RoomName = "aurora"
	assert.Equal(t, "aurora", e.Room())
}

func TestEnvelopeValidate(t *testing.T) {
	valid := &Envelope{Action: ActionJoinRoom, RoomName: "aurora-12ab", UserID: "user_1"}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, (&Envelope{Action: ""}).Validate(), ErrInvalidAction)
	assert.ErrorIs(t, (&Envelope{Action: "join room"}).Validate(), ErrInvalidAction)
	assert.ErrorIs(t, (&Envelope{Action: ActionJoinRoom, RoomName: "Aurora"}).Validate(), ErrInvalidRoomName)
	assert.ErrorIs(t, (&Envelope{Action: ActionJoinRoom, UserID: "bad id!"}).Validate(), ErrInvalidUserID)
}

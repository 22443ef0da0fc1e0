package director

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble/pkg/types"
)

func TestScriptedRotatesThemes(t *testing.T) {
	s := NewScripted()
	ctx := context.Background()

	first, err := s.Theme(ctx, "")
	require.NoError(t, err)
	second, err := s.Theme(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	fresh := NewScripted()
	again, err := fresh.Theme(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first, again, "rotation restarts from the top")
}

func TestScriptedRefineAvoidsRejectedTheme(t *testing.T) {
	s := NewScripted()
	rejected, err := s.Theme(context.Background(), "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		refined, err := s.RefineTheme(context.Background(), "", rejected)
		require.NoError(t, err)
		assert.NotEqual(t, rejected, refined)
	}
}

func TestScriptedRoomNameAvoidsTakenWords(t *testing.T) {
	s := NewScripted()
	taken := []string{"aurora", "driftwood", "ember"}

	word, err := s.RoomNameWord(context.Background(), taken)
	require.NoError(t, err)
	assert.NotContains(t, taken, word)
}

func TestScriptedDirectiveKinds(t *testing.T) {
	s := NewScripted()
	ctx := context.Background()

	opening, err := s.OpeningDirective(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, types.DirectiveGroup, opening.Kind)
	assert.Equal(t, s.GroupInterval, opening.Interval)

	group, err := s.ReplacementDirective(ctx, "", types.DirectiveGroup)
	require.NoError(t, err)
	assert.Equal(t, types.DirectiveGroup, group.Kind)

	performer, err := s.ReplacementDirective(ctx, "", types.DirectivePerformer)
	require.NoError(t, err)
	assert.Equal(t, types.DirectivePerformer, performer.Kind)
	assert.Equal(t, s.PerformerInterval, performer.Interval)

	ending, err := s.EndingDirective(ctx, "")
	require.NoError(t, err)
	assert.True(t, ending.Terminal())
}

func TestScriptedPerformerDirectivesCoverEveryone(t *testing.T) {
	s := NewScripted()
	group := types.Directive{Kind: types.DirectiveGroup, Title: "Build"}

	out, err := s.PerformerDirectives(context.Background(), "", group, []string{"alice", "bob", "carol"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for id, d := range out {
		assert.Equal(t, types.DirectivePerformer, d.Kind, id)
		assert.NotEmpty(t, d.Text, id)
	}
	assert.NotEqual(t, out["alice"].Text, out["bob"].Text, "rotation varies the material")
}

func TestScriptedDebriefQuestionFollowsProgress(t *testing.T) {
	s := NewScripted()
	ctx := context.Background()

	first, err := s.DebriefQuestion(ctx, "", "alice", 0)
	require.NoError(t, err)
	second, err := s.DebriefQuestion(ctx, "", "alice", 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// The same progress count gets the same question regardless of caller.
	forBob, err := s.DebriefQuestion(ctx, "", "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, first, forBob)
}

func TestScriptedLobbyQuestionHasOptions(t *testing.T) {
	s := NewScripted()
	question, options, err := s.LobbyQuestion(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, question)
	assert.NotEmpty(t, options)
}

func TestScriptedIntervals(t *testing.T) {
	s := NewScripted()
	ctx := context.Background()

	group, err := s.Interval(ctx, "", types.DirectiveGroup)
	require.NoError(t, err)
	performer, err := s.Interval(ctx, "", types.DirectivePerformer)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, group, performer, "group directives outlive performer directives")
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersonalityDefaults(t *testing.T) {
	p := NewPersonality(RolePerformer)
	assert.Equal(t, 5.0, p.Attributes["Creativity"])
	assert.Equal(t, 5.0, p.Attributes["Musical Knowledge"])
	assert.NotContains(t, p.Attributes, "Prompt Length")

	d := NewPersonality(RoleDirector)
	assert.Contains(t, d.Attributes, "Prompt Length")
	assert.NotContains(t, d.Attributes, "Musical Knowledge")
}

func TestPersonalitySetClampsAndRejectsUnknown(t *testing.T) {
	p := NewPersonality(RolePerformer)

	require.NoError(t, p.Set("Energy", 14))
	assert.Equal(t, 10.0, p.Attributes["Energy"])

	require.NoError(t, p.Set("Energy", -3))
	assert.Equal(t, 0.0, p.Attributes["Energy"])

	assert.ErrorIs(t, p.Set("Swagger", 5), ErrUnknownAttribute)
}

func TestPersonalityIncrementWeights(t *testing.T) {
	performer := NewPersonality(RolePerformer)
	require.NoError(t, performer.Increment("Energy", 1))
	assert.InDelta(t, 5.7, performer.Attributes["Energy"], 0.001)

	director := NewPersonality(RoleDirector)
	require.NoError(t, director.Increment("Energy", 1))
	assert.InDelta(t, 6.0, director.Attributes["Energy"], 0.001)

	// Increments clamp at the scale bounds.
	require.NoError(t, performer.Set("Energy", 9.9))
	require.NoError(t, performer.Increment("Energy", 5))
	assert.Equal(t, 10.0, performer.Attributes["Energy"])
}

func TestPersonalityDescribe(t *testing.T) {
	p := NewPersonality(RolePerformer)
	desc := p.Describe()
	assert.Contains(t, desc, "Not set yet")
	assert.Contains(t, desc, "Creativity: 5.0")

	p.Summary = "Plays sparsely, listens hard"
	assert.Contains(t, p.Describe(), "Plays sparsely")
}

func TestValidationFormats(t *testing.T) {
	assert.True(t, IsValidUserID("550e8400-e29b-41d4-a716-446655440000"))
	assert.True(t, IsValidUserID("user_1"))
	assert.False(t, IsValidUserID(""))
	assert.False(t, IsValidUserID("has space"))

	assert.True(t, IsValidRoomName("aurora-12ab"))
	assert.False(t, IsValidRoomName("Aurora"))
	assert.False(t, IsValidRoomName("-leading"))

	assert.True(t, IsValidAction("playAgain"))
	assert.False(t, IsValidAction("play again"))
	assert.False(t, IsValidAction(""))
}

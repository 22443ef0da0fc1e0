package interfaces

import (
	"context"

	"ensemble/pkg/types"
)

// Director is the external content generator consulted for directive text,
// themes, feedback questions, and replacement intervals. It is a black box
// that can succeed or fail; callers own fallback behavior. Replacement
// directives may come back end-kind, which signals the final directive of
// the performance.
type Director interface {
	// WelcomeMessage greets a newly connected participant.
	WelcomeMessage(ctx context.Context) (string, error)

	// RoomNameWord proposes a single word for a new room name, avoiding
	// the taken names given.
	RoomNameWord(ctx context.Context, taken []string) (string, error)

	// Theme proposes a session-wide premise for the performance.
	Theme(ctx context.Context, gameState string) (string, error)

	// RefineTheme proposes a replacement after a failed consensus round.
	RefineTheme(ctx context.Context, gameState, rejected string) (string, error)

	// OpeningDirective creates the first group directive of a performance.
	OpeningDirective(ctx context.Context, gameState string) (types.Directive, error)

	// ReplacementDirective creates the next directive for a key that fired.
	ReplacementDirective(ctx context.Context, gameState string, kind types.DirectiveKind) (types.Directive, error)

	// PerformerDirectives creates one directive per listed performer,
	// coordinated with the given group directive.
	PerformerDirectives(ctx context.Context, gameState string, group types.Directive, userIDs []string) (map[string]types.Directive, error)

	// EndingDirective creates the closing directive for the performance.
	EndingDirective(ctx context.Context, gameState string) (types.Directive, error)

	// Interval answers how many seconds until the directive kind should be
	// replaced. A non-positive value or error means no usable answer and
	// the caller substitutes its bounded random default.
	Interval(ctx context.Context, gameState string, kind types.DirectiveKind) (int, error)

	// LobbyQuestion produces a getting-to-know-you question with options.
	LobbyQuestion(ctx context.Context, gameState string) (question string, options []string, err error)

	// DebriefQuestion produces post-performance question number answered+1
	// for one performer.
	DebriefQuestion(ctx context.Context, gameState, userID string, answered int) (string, error)

	// PersonalitySummary condenses logged feedback into a personality
	// summary line.
	PersonalitySummary(ctx context.Context, feedback string) (string, error)

	// ClosingSummary writes the performance summary for the session log.
	ClosingSummary(ctx context.Context, gameState string) (string, error)
}

package director

import (
	"context"
	"fmt"
	"strings"

	"ensemble/pkg/types"
)

// LLMDirector generates performance content through a chat-completions
// endpoint. Prompt answers are free text; parsers here are forgiving and
// callers substitute their own fallbacks when an answer is unusable.
type LLMDirector struct {
	client *Client
}

// NewLLMDirector wraps a completion client in the Director contract.
func NewLLMDirector(client *Client) *LLMDirector {
	return &LLMDirector{client: client}
}

const promptGuidelines = "You are directing a live improvised music performance. " +
	"Players receive short directives and interpret them on their instruments. " +
	"Answer with only what is asked for, no preamble.\n\n"

func (d *LLMDirector) WelcomeMessage(ctx context.Context) (string, error) {
	return d.client.Complete(ctx, promptGuidelines+
		"Write a one-sentence welcome for a musician who just connected, inviting them to register.")
}

func (d *LLMDirector) RoomNameWord(ctx context.Context, taken []string) (string, error) {
	content, err := d.client.Complete(ctx, promptGuidelines+fmt.Sprintf(
		"Propose a single lowercase word to name a performance room. Avoid these taken names: %s. Answer with the word only.",
		strings.Join(taken, ", ")))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.Fields(content)[0]), nil
}

func (d *LLMDirector) Theme(ctx context.Context, gameState string) (string, error) {
	return d.client.Complete(ctx, promptGuidelines+
		"Current session:\n"+gameState+
		"\nPropose a short theme for this improvisation, one sentence.")
}

func (d *LLMDirector) RefineTheme(ctx context.Context, gameState, rejected string) (string, error) {
	return d.client.Complete(ctx, promptGuidelines+
		"Current session:\n"+gameState+
		"\nThe players rejected this theme: "+rejected+
		"\nPropose a different short theme, one sentence.")
}

func (d *LLMDirector) OpeningDirective(ctx context.Context, gameState string) (types.Directive, error) {
	return d.askDirective(ctx, gameState, types.DirectiveGroup,
		"Write the opening directive for the whole group to start the performance.")
}

func (d *LLMDirector) ReplacementDirective(ctx context.Context, gameState string, kind types.DirectiveKind) (types.Directive, error) {
	subject := "the whole group"
	if kind == types.DirectivePerformer {
		subject = "one performer"
	}
	return d.askDirective(ctx, gameState, kind,
		"Write the next directive for "+subject+
			". If the performance has run its course, start the first line with [END] and write a closing directive instead.")
}

func (d *LLMDirector) PerformerDirectives(ctx context.Context, gameState string, group types.Directive, userIDs []string) (map[string]types.Directive, error) {
	out := make(map[string]types.Directive, len(userIDs))
	for _, id := range userIDs {
		d2, err := d.askDirective(ctx, gameState, types.DirectivePerformer, fmt.Sprintf(
			"The group directive is %q: %s\nWrite a coordinated directive for performer %s.",
			group.Title, group.Text, id))
		if err != nil {
			return nil, err
		}
		out[id] = d2
	}
	return out, nil
}

func (d *LLMDirector) EndingDirective(ctx context.Context, gameState string) (types.Directive, error) {
	return d.askDirective(ctx, gameState, types.DirectiveEnd,
		"Write the closing directive that brings the performance to its end.")
}

func (d *LLMDirector) Interval(ctx context.Context, gameState string, kind types.DirectiveKind) (int, error) {
	content, err := d.client.Complete(ctx, promptGuidelines+
		"Current session:\n"+gameState+fmt.Sprintf(
		"\nHow many seconds should pass before the next %s directive replaces the current one? Answer with a number only.", kind))
	if err != nil {
		return 0, err
	}
	return parseInterval(content)
}

func (d *LLMDirector) LobbyQuestion(ctx context.Context, gameState string) (string, []string, error) {
	content, err := d.client.Complete(ctx, promptGuidelines+
		"Write one getting-to-know-you question for a musician waiting in the lobby, "+
		"with three short answer options. Format:\nQuestion: ...\nOptions: one; two; three")
	if err != nil {
		return "", nil, err
	}
	question, options := parseQuestion(content)
	return question, options, nil
}

func (d *LLMDirector) DebriefQuestion(ctx context.Context, gameState, userID string, answered int) (string, error) {
	return d.client.Complete(ctx, promptGuidelines+
		"Current session:\n"+gameState+fmt.Sprintf(
		"\nWrite reflection question number %d for performer %s about the performance that just ended. One sentence, no options.",
		answered+1, userID))
}

func (d *LLMDirector) PersonalitySummary(ctx context.Context, feedback string) (string, error) {
	return d.client.Complete(ctx, promptGuidelines+
		"Summarize this musician's personality in one sentence based on their answers:\n"+feedback)
}

func (d *LLMDirector) ClosingSummary(ctx context.Context, gameState string) (string, error) {
	return d.client.Complete(ctx, promptGuidelines+
		"The performance is over. Session log:\n"+gameState+
		"\nWrite a short closing summary of the performance for the players.")
}

func (d *LLMDirector) askDirective(ctx context.Context, gameState string, kind types.DirectiveKind, instruction string) (types.Directive, error) {
	content, err := d.client.Complete(ctx, promptGuidelines+
		"Current session:\n"+gameState+"\n"+instruction+
		"\nFormat:\nTitle: ...\nDirective: ...\nInterval: seconds until replacement")
	if err != nil {
		return types.Directive{}, err
	}
	return parseDirective(content, kind), nil
}

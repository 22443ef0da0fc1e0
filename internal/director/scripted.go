package director

import (
	"context"
	"fmt"
	"sync"

	"ensemble/pkg/types"
)

// Scripted is a deterministic generator used when no completion endpoint
// is configured, and in tests. Content rotates through fixed material so
// repeated calls stay varied but reproducible.
type Scripted struct {
	mu     sync.Mutex
	counts map[string]int

	// Intervals returned for group and performer directives; zero values
	// make callers fall back to their own defaults.
	GroupInterval     int
	PerformerInterval int
}

// NewScripted creates a scripted generator with usable default intervals.
func NewScripted() *Scripted {
	return &Scripted{
		counts:            make(map[string]int),
		GroupInterval:     120,
		PerformerInterval: 60,
	}
}

func (s *Scripted) next(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counts[key]
	s.counts[key] = n + 1
	return n
}

func pick(items []string, n int) string {
	return items[n%len(items)]
}

var (
	scriptedThemes = []string{
		"A slow tide coming in under a grey sky",
		"Machines learning to waltz",
		"The last train leaving an empty station",
		"Sunlight through a broken window",
	}
	scriptedGroupDirectives = []string{
		"Settle into a shared pulse and leave space between phrases",
		"Trade short phrases around the circle, one voice at a time",
		"Build intensity together without getting louder",
		"Thin the texture until only two voices remain",
	}
	scriptedPerformerDirectives = []string{
		"Shadow the loudest player a beat behind",
		"Play only in the gaps the others leave",
		"Repeat one small idea until it changes on its own",
		"Drop out for eight bars, then return transformed",
	}
	scriptedLobbyQuestions = []string{
		"What do you listen for first in another player?",
		"When do you feel most locked in with a group?",
		"What tempts you to play too much?",
	}
	scriptedLobbyOptions = [][]string{
		{"Rhythm", "Melody", "Texture"},
		{"From the first note", "After a few phrases", "Only near the end"},
		{"Silence", "A good groove", "Someone else soloing"},
	}
	scriptedDebriefQuestions = []string{
		"What moment of the performance stayed with you?",
		"Where did the group listen best?",
		"What would you try differently next time?",
	}
	scriptedRoomWords = []string{"aurora", "driftwood", "ember", "lantern", "meridian", "sonder"}
)

func (s *Scripted) WelcomeMessage(context.Context) (string, error) {
	return "Welcome to the ensemble. Tell us who you are and we'll find you a room.", nil
}

func (s *Scripted) RoomNameWord(_ context.Context, taken []string) (string, error) {
	used := make(map[string]bool, len(taken))
	for _, name := range taken {
		used[name] = true
	}
	for range scriptedRoomWords {
		word := pick(scriptedRoomWords, s.next("roomName"))
		if !used[word] {
			return word, nil
		}
	}
	return pick(scriptedRoomWords, s.next("roomName")), nil
}

func (s *Scripted) Theme(context.Context, string) (string, error) {
	return pick(scriptedThemes, s.next("theme")), nil
}

func (s *Scripted) RefineTheme(ctx context.Context, gameState, rejected string) (string, error) {
	for range scriptedThemes {
		theme := pick(scriptedThemes, s.next("theme"))
		if theme != rejected {
			return theme, nil
		}
	}
	return rejected, nil
}

func (s *Scripted) OpeningDirective(context.Context, string) (types.Directive, error) {
	return types.Directive{
		Kind:     types.DirectiveGroup,
		Title:    "Opening",
		Text:     "Find a shared pulse and enter one at a time",
		Interval: s.GroupInterval,
	}, nil
}

func (s *Scripted) ReplacementDirective(_ context.Context, _ string, kind types.DirectiveKind) (types.Directive, error) {
	if kind == types.DirectivePerformer {
		n := s.next("performerDirective")
		return types.Directive{
			Kind:     types.DirectivePerformer,
			Title:    fmt.Sprintf("Focus %d", n+1),
			Text:     pick(scriptedPerformerDirectives, n),
			Interval: s.PerformerInterval,
		}, nil
	}
	n := s.next("groupDirective")
	return types.Directive{
		Kind:     types.DirectiveGroup,
		Title:    fmt.Sprintf("Movement %d", n+1),
		Text:     pick(scriptedGroupDirectives, n),
		Interval: s.GroupInterval,
	}, nil
}

func (s *Scripted) PerformerDirectives(_ context.Context, _ string, group types.Directive, userIDs []string) (map[string]types.Directive, error) {
	out := make(map[string]types.Directive, len(userIDs))
	for _, id := range userIDs {
		n := s.next("performerDirective")
		out[id] = types.Directive{
			Kind:     types.DirectivePerformer,
			Title:    group.Title,
			Text:     pick(scriptedPerformerDirectives, n),
			Interval: s.PerformerInterval,
		}
	}
	return out, nil
}

func (s *Scripted) EndingDirective(context.Context, string) (types.Directive, error) {
	return types.Directive{
		Kind:  types.DirectiveEnd,
		Title: "Ending",
		Text:  "Let the music wind down and end together on a held tone",
	}, nil
}

func (s *Scripted) Interval(_ context.Context, _ string, kind types.DirectiveKind) (int, error) {
	if kind == types.DirectivePerformer {
		return s.PerformerInterval, nil
	}
	return s.GroupInterval, nil
}

func (s *Scripted) LobbyQuestion(context.Context, string) (string, []string, error) {
	n := s.next("lobbyQuestion")
	return pick(scriptedLobbyQuestions, n), scriptedLobbyOptions[n%len(scriptedLobbyOptions)], nil
}

func (s *Scripted) DebriefQuestion(_ context.Context, _ string, _ string, answered int) (string, error) {
	return scriptedDebriefQuestions[answered%len(scriptedDebriefQuestions)], nil
}

func (s *Scripted) PersonalitySummary(_ context.Context, feedback string) (string, error) {
	return "A thoughtful listener who answered: " + feedback, nil
}

func (s *Scripted) ClosingSummary(context.Context, string) (string, error) {
	return "The ensemble found its way from a tentative opening to a confident close.", nil
}

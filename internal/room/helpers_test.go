package room

import (
	"context"
	"fmt"
	"sync"

	"ensemble/pkg/types"
)

// stubDirector is a deterministic generator for tests. Zero value works;
// fields switch on failure modes.
type stubDirector struct {
	mu          sync.Mutex
	themeCalls  int
	intervalErr error
	replaceErr  error
	terminal    bool // next replacement directive ends the performance
	interval    int  // seconds; 0 means unanswered

	// onReplace, when set, runs at the start of every ReplacementDirective
	// call, outside the stub's lock.
	onReplace func(types.DirectiveKind)
}

func newStubDirector() *stubDirector {
	return &stubDirector{interval: 3600}
}

func (s *stubDirector) WelcomeMessage(context.Context) (string, error) {
	return "welcome", nil
}

func (s *stubDirector) RoomNameWord(context.Context, []string) (string, error) {
	return "aurora", nil
}

func (s *stubDirector) Theme(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themeCalls++
	return fmt.Sprintf("theme-%d", s.themeCalls), nil
}

func (s *stubDirector) RefineTheme(_ context.Context, _ string, rejected string) (string, error) {
	return "refined " + rejected, nil
}

func (s *stubDirector) OpeningDirective(context.Context, string) (types.Directive, error) {
	return types.Directive{Kind: types.DirectiveGroup, Title: "Opening", Text: "begin together", Interval: s.interval}, nil
}

func (s *stubDirector) ReplacementDirective(_ context.Context, _ string, kind types.DirectiveKind) (types.Directive, error) {
	if s.onReplace != nil {
		s.onReplace(kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return types.Directive{}, s.replaceErr
	}
	if s.terminal {
		return types.Directive{Kind: types.DirectiveEnd, Title: "Ending", Text: "wind down"}, nil
	}
	return types.Directive{Kind: kind, Title: "Next", Text: "keep going", Interval: s.interval}, nil
}

func (s *stubDirector) PerformerDirectives(_ context.Context, _ string, group types.Directive, userIDs []string) (map[string]types.Directive, error) {
	out := make(map[string]types.Directive, len(userIDs))
	for _, id := range userIDs {
		out[id] = types.Directive{Kind: types.DirectivePerformer, Title: group.Title, Text: "part for " + id, Interval: s.interval}
	}
	return out, nil
}

func (s *stubDirector) EndingDirective(context.Context, string) (types.Directive, error) {
	return types.Directive{Kind: types.DirectiveEnd, Title: "Ending", Text: "end on a held tone"}, nil
}

func (s *stubDirector) Interval(context.Context, string, types.DirectiveKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intervalErr != nil {
		return 0, s.intervalErr
	}
	return s.interval, nil
}

func (s *stubDirector) LobbyQuestion(context.Context, string) (string, []string, error) {
	return "what do you listen for?", []string{"rhythm", "melody"}, nil
}

func (s *stubDirector) DebriefQuestion(_ context.Context, _ string, userID string, answered int) (string, error) {
	return fmt.Sprintf("question %d for %s", answered+1, userID), nil
}

func (s *stubDirector) PersonalitySummary(_ context.Context, feedback string) (string, error) {
	return "summary of " + feedback, nil
}

func (s *stubDirector) ClosingSummary(context.Context, string) (string, error) {
	return "a fine performance", nil
}

// stubStore records saves in memory.
type stubStore struct {
	mu       sync.Mutex
	profiles map[string]types.Profile
	logs     []*types.SessionLog
}

func newStubStore() *stubStore {
	return &stubStore{profiles: make(map[string]types.Profile)}
}

func (s *stubStore) SaveProfile(_ context.Context, profile types.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *stubStore) GetProfile(_ context.Context, userID string) (*types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile not found: %s", userID)
	}
	return &p, nil
}

func (s *stubStore) SaveSessionLog(_ context.Context, log *types.SessionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *stubStore) ListSessionLogs(_ context.Context, roomName string) ([]*types.SessionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.SessionLog
	for _, l := range s.logs {
		if l.RoomName == roomName {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) savedLogs() []*types.SessionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.SessionLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// addPerformers registers n named performers and completes registration for
// the first so the room moves to theme selection.
func addPerformers(r *Room, ids ...string) []*types.Participant {
	out := make([]*types.Participant, 0, len(ids))
	for _, id := range ids {
		p := types.NewParticipant(id)
		p.SetProfile(id, "guitar")
		if err := r.AddPerformer(p); err != nil {
			panic(err)
		}
		out = append(out, p)
	}
	for _, id := range ids {
		r.CompleteRegistration(id)
	}
	return out
}

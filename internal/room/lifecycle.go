package room

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ensemble/pkg/types"
)

// VoteOutcome is the result of recording one theme vote.
type VoteOutcome int

const (
	// VoteRecorded means the vote was logged and the room keeps waiting.
	VoteRecorded VoteOutcome = iota
	// VoteApproved means consensus was reached; the performance may start.
	VoteApproved
	// VoteRefined means every performer voted without consensus; a new
	// theme was proposed and the collected votes were cleared.
	VoteRefined
)

// ThemeVote reports the outcome of a vote along with the tally it was
// judged against.
type ThemeVote struct {
	Outcome VoteOutcome
	Theme   string
	Favor   int
	Total   int
}

// themeConsensus is the approval rule: favorable votes must reach at least
// half of the current performer count, so a strict minority of dissent
// cannot block.
func themeConsensus(favor, total int) bool {
	return total > 0 && favor*2 >= total
}

// CompleteRegistration marks a performer's profile as entered and reports
// whether this advanced the room out of registration.
func (r *Room) CompleteRegistration(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findPerformer(userID)
	if p == nil {
		return false
	}
	p.Registered = true

	session := r.current()
	if session.Status != types.StatusRegistration {
		return false
	}
	session.Status = types.StatusThemeSelection
	return true
}

// SetPreApprovedTheme installs a theme that skips the consensus round,
// used by performance-mode rooms created with a theme in hand.
func (r *Room) SetPreApprovedTheme(theme string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.current()
	session.Theme = theme
	session.ThemeApproved = true
}

// ProposeTheme asks the generator for a session premise and opens a fresh
// consensus round.
func (r *Room) ProposeTheme(ctx context.Context) (string, error) {
	if r.Status() != types.StatusThemeSelection {
		return "", ErrInvalidTransition
	}

	theme, err := r.director.Theme(ctx, r.stateString())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	r.mu.Lock()
	session := r.current()
	session.Theme = theme
	session.ThemeApproved = false
	r.themeVotes = make(map[string]bool)
	r.mu.Unlock()

	return theme, nil
}

// RecordThemeVote logs one performer's reaction to the proposed theme and
// judges consensus. When every performer has voted without consensus, a
// refined theme replaces the proposal and votes are cleared.
func (r *Room) RecordThemeVote(ctx context.Context, userID string, favor bool) (*ThemeVote, error) {
	r.mu.Lock()
	session := r.current()
	if session.Status != types.StatusThemeSelection {
		r.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if r.findPerformer(userID) == nil {
		r.mu.Unlock()
		return nil, ErrPerformerNotFound
	}

	r.themeVotes[userID] = favor
	favorCount := 0
	for _, v := range r.themeVotes {
		if v {
			favorCount++
		}
	}
	total := len(r.performers)
	voted := len(r.themeVotes)
	theme := session.Theme

	if themeConsensus(favorCount, total) {
		session.ThemeApproved = true
		r.mu.Unlock()
		return &ThemeVote{Outcome: VoteApproved, Theme: theme, Favor: favorCount, Total: total}, nil
	}
	r.mu.Unlock()

	if voted < total {
		return &ThemeVote{Outcome: VoteRecorded, Theme: theme, Favor: favorCount, Total: total}, nil
	}

	// Everyone voted and the theme did not carry: propose a replacement.
	refined, err := r.director.RefineTheme(ctx, r.stateString(), theme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	r.mu.Lock()
	session = r.current()
	session.Theme = refined
	session.ThemeApproved = false
	r.themeVotes = make(map[string]bool)
	r.mu.Unlock()

	return &ThemeVote{Outcome: VoteRefined, Theme: refined, Favor: favorCount, Total: total}, nil
}

// ThemeApproved reports whether the current theme has carried its vote.
func (r *Room) ThemeApproved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current().ThemeApproved
}

// StartImprovisation moves an approved room into the improvise phase: the
// opening directive set is issued and the group replacement chain starts.
func (r *Room) StartImprovisation(ctx context.Context) error {
	r.mu.Lock()
	session := r.current()
	if session.Status != types.StatusThemeSelection || !session.ThemeApproved {
		r.mu.Unlock()
		return ErrInvalidTransition
	}
	if len(r.performers) == 0 {
		r.mu.Unlock()
		return ErrPerformerNotFound
	}
	hadStart := !session.StartTime.IsZero()
	if !hadStart {
		session.StartTime = time.Now()
	}
	r.mu.Unlock()

	r.persistPersonalities(ctx)

	state := r.stateString()
	opening, err := r.director.OpeningDirective(ctx, state)
	if err != nil {
		r.mu.Lock()
		if !hadStart {
			r.current().StartTime = time.Time{}
		}
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	if err := r.applyGroupDirective(ctx, state, opening); err != nil {
		r.mu.Lock()
		if !hadStart {
			r.current().StartTime = time.Time{}
		}
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.current().Status = types.StatusImprovise
	r.mu.Unlock()

	r.scheduleGroup(r.intervalFor(ctx, types.DirectiveGroup))
	return nil
}

// persistPersonalities derives a personality summary from lobby feedback
// for performers who don't have one yet, and saves their profiles. Failures
// are logged; they never block the performance.
func (r *Room) persistPersonalities(ctx context.Context) {
	r.mu.Lock()
	pending := make([]*types.Participant, 0, len(r.performers))
	for _, p := range r.performers {
		if p.Personality.Summary == "" && p.FeedbackCount(types.FeedbackLobby) > 0 {
			pending = append(pending, p)
		}
	}
	r.mu.Unlock()

	for _, p := range pending {
		summary, err := r.director.PersonalitySummary(ctx, feedbackString(p.FeedbackLog()[types.FeedbackLobby]))
		if err != nil {
			log.Printf("Room %s: personality summary for %s unavailable: %v", r.name, p.ID, err)
			continue
		}

		r.mu.Lock()
		p.Personality.Summary = summary
		profile := p.Profile()
		r.mu.Unlock()

		if r.store != nil {
			if err := r.store.SaveProfile(ctx, profile); err != nil {
				log.Printf("Room %s: failed to save profile for %s: %v", r.name, p.ID, err)
			}
		}
	}
}

func feedbackString(entries []types.FeedbackEntry) string {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. Question: %s; Options: %s; Response: %s. ",
			i+1, e.Question, strings.Join(e.Options, ", "), e.Response)
	}
	return b.String()
}

// EndSong terminates the improvisation: every room timer is cancelled and
// awaited before anything else happens, then the closing directive set is
// issued. No further directives are scheduled.
func (r *Room) EndSong(ctx context.Context) error {
	if r.Status() != types.StatusImprovise {
		return ErrInvalidTransition
	}

	r.sched.CancelAll()

	state := r.stateString()
	ending, err := r.director.EndingDirective(ctx, state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	ending.Kind = types.DirectiveEnd
	if err := r.applyGroupDirective(ctx, state, ending); err != nil {
		return err
	}

	r.mu.Lock()
	r.current().Status = types.StatusEndSong
	r.mu.Unlock()
	return nil
}

// PerformanceComplete records the performance ending and moves the room to
// debrief, producing the first post-performance question per performer.
func (r *Room) PerformanceComplete(ctx context.Context) (*types.Outbound, error) {
	r.mu.Lock()
	session := r.current()
	if session.Status != types.StatusEndSong {
		r.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	session.EndTime = time.Now()
	session.Status = types.StatusDebrief
	ids := make([]string, len(r.performers))
	for i, p := range r.performers {
		ids[i] = p.ID
	}
	r.mu.Unlock()

	questions, err := r.debriefQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &types.Outbound{
		Action:            types.ActionDebrief,
		GameStatus:        types.StatusDebrief,
		RoomName:          r.name,
		FeedbackQuestions: questions,
	}, nil
}

func (r *Room) debriefQuestions(ctx context.Context, userIDs []string) ([]types.FeedbackQuestion, error) {
	state := r.stateString()
	questions := make([]types.FeedbackQuestion, 0, len(userIDs))
	for _, id := range userIDs {
		answered := 0
		r.mu.Lock()
		if p := r.findPerformer(id); p != nil {
			answered = p.FeedbackCount(types.FeedbackPostPerformance)
		}
		r.mu.Unlock()

		q, err := r.director.DebriefQuestion(ctx, state, id, answered)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
		}
		questions = append(questions, types.FeedbackQuestion{
			UserIDs:      []string{id},
			FeedbackType: types.FeedbackPostPerformance,
			Question:     q,
		})
	}
	return questions, nil
}

// RecordDebriefFeedback logs one post-performance answer. The room reaches
// finalSummary exactly when every present performer has supplied the
// required number of answers; otherwise the caller gets either the next
// question for that performer or a waiting notice.
func (r *Room) RecordDebriefFeedback(ctx context.Context, userID, question, response string) (*types.Outbound, error) {
	r.mu.Lock()
	if r.current().Status != types.StatusDebrief {
		r.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	p := r.findPerformer(userID)
	if p == nil {
		r.mu.Unlock()
		return nil, ErrPerformerNotFound
	}
	p.LogFeedback(types.FeedbackPostPerformance, types.FeedbackEntry{Question: question, Response: response})
	count := p.FeedbackCount(types.FeedbackPostPerformance)

	allComplete := true
	for _, other := range r.performers {
		if other.FeedbackCount(types.FeedbackPostPerformance) < types.RequiredDebriefResponses {
			allComplete = false
			break
		}
	}
	r.mu.Unlock()

	if count < types.RequiredDebriefResponses {
		questions, err := r.debriefQuestions(ctx, []string{userID})
		if err != nil {
			return nil, err
		}
		return &types.Outbound{
			RoomName:          r.name,
			GameStatus:        types.StatusDebrief,
			FeedbackQuestions: questions,
		}, nil
	}

	if !allComplete {
		out := &types.Outbound{
			Action:   types.ActionFinalSummaryPending,
			RoomName: r.name,
			Message:  "Just waiting on other players.",
		}
		return out.To(userID), nil
	}

	return r.finalizeAttempt(ctx)
}

// finalizeAttempt writes the closing summary, persists the session log,
// and moves the room to finalSummary.
func (r *Room) finalizeAttempt(ctx context.Context) (*types.Outbound, error) {
	summary, err := r.director.ClosingSummary(ctx, r.stateString())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	r.mu.Lock()
	session := r.current()
	session.Summary = summary
	session.Status = types.StatusFinalSummary
	endedAt := session.EndTime
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveSessionLog(ctx, r.buildSessionLog(endedAt)); err != nil {
			log.Printf("Room %s: failed to persist session log: %v", r.name, err)
		}
	}

	return &types.Outbound{
		Action:     types.ActionFinalSummary,
		GameStatus: types.StatusFinalSummary,
		RoomName:   r.name,
		Summary:    summary,
	}, nil
}

// PlayAgain starts a fresh attempt: per-attempt participant logs reset, a
// new session state is pushed with history retained, and a new theme round
// opens.
func (r *Room) PlayAgain(ctx context.Context) (string, error) {
	r.mu.Lock()
	session := r.current()
	if session.Status != types.StatusFinalSummary && session.Status != types.StatusDebrief {
		r.mu.Unlock()
		return "", ErrInvalidTransition
	}
	for _, p := range r.performers {
		p.ResetAttempt()
	}
	r.sessions = append(r.sessions, &types.SessionState{
		Attempt: session.Attempt + 1,
		Status:  types.StatusThemeSelection,
	})
	r.themeVotes = make(map[string]bool)
	r.lastGroupInterval = 0
	r.lastPerformerInterval = 0
	r.mu.Unlock()

	return r.ProposeTheme(ctx)
}

// LobbyQuestion produces a getting-to-know-you question targeted at one
// participant.
func (r *Room) LobbyQuestion(ctx context.Context, userID string) (*types.FeedbackQuestion, error) {
	question, options, err := r.director.LobbyQuestion(ctx, r.stateString())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	return &types.FeedbackQuestion{
		UserIDs:      []string{userID},
		FeedbackType: types.FeedbackLobby,
		Question:     question,
		Options:      options,
	}, nil
}

// RecordLobbyFeedback logs a pre-performance answer. Lobby feedback is
// only collected before the improvisation starts.
func (r *Room) RecordLobbyFeedback(userID string, entry types.FeedbackEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if statusRank[r.current().Status] >= statusRank[types.StatusImprovise] {
		return ErrInvalidTransition
	}
	p := r.findPerformer(userID)
	if p == nil {
		return ErrPerformerNotFound
	}
	p.LogFeedback(types.FeedbackLobby, entry)
	return nil
}

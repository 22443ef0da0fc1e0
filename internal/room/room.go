package room

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"ensemble/pkg/interfaces"
	"ensemble/pkg/types"
)

// Room owns one session's membership, lifecycle state machine, session
// state stack, and scheduled task table.
//
// Locking: mu guards all mutable fields below it. It is a per-room mutex so
// rooms never contend with each other. mu is never held across generator
// calls, scheduler calls, or notifier callbacks; methods snapshot under the
// lock, release it, and then do slow work.
type Room struct {
	name     string
	director interfaces.Director
	store    interfaces.Store
	sched    *Scheduler
	notify   func(*types.Outbound)

	mu              sync.Mutex
	performers      []*types.Participant
	audience        []*types.Participant
	sessions        []*types.SessionState
	themeVotes      map[string]bool
	performanceMode bool

	// Interval bookkeeping: last derived interval per kind, reused when a
	// failed fire retries on the same cadence. The generator contract that
	// group intervals stay at or above performer intervals is logged when
	// violated, never clamped.
	lastGroupInterval     int
	lastPerformerInterval int
}

var statusRank = map[types.Status]int{
	types.StatusRegistration:   0,
	types.StatusThemeSelection: 1,
	types.StatusImprovise:      2,
	types.StatusEndSong:        3,
	types.StatusDebrief:        4,
	types.StatusFinalSummary:   5,
}

// New creates a room with a fresh session state. Performance-mode rooms
// skip registration and open directly in theme selection.
func New(name string, director interfaces.Director, store interfaces.Store, performanceMode bool) *Room {
	status := types.StatusRegistration
	if performanceMode {
		status = types.StatusThemeSelection
	}
	return &Room{
		name:            name,
		director:        director,
		store:           store,
		sched:           NewScheduler(),
		performers:      []*types.Participant{},
		audience:        []*types.Participant{},
		sessions:        []*types.SessionState{{Attempt: 1, Status: status}},
		themeVotes:      make(map[string]bool),
		performanceMode: performanceMode,
	}
}

// Name returns the room's unique name.
func (r *Room) Name() string {
	return r.name
}

// SetNotifier installs the outbound sink used for timer-driven updates.
// The dispatch layer wires this to the message router after construction.
func (r *Room) SetNotifier(fn func(*types.Outbound)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = fn
}

func (r *Room) send(out *types.Outbound) {
	r.mu.Lock()
	fn := r.notify
	r.mu.Unlock()

	if fn == nil {
		return
	}
	out.RoomName = r.name
	fn(out)
}

// current returns the active session state. Callers hold r.mu.
func (r *Room) current() *types.SessionState {
	return r.sessions[len(r.sessions)-1]
}

// Status returns the current lifecycle status.
func (r *Room) Status() types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current().Status
}

// Theme returns the current session's theme.
func (r *Room) Theme() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current().Theme
}

// Attempt returns the current performance attempt number.
func (r *Room) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current().Attempt
}

// LiveTimers returns the number of live timers in the task table.
func (r *Room) LiveTimers() int {
	return r.sched.Live()
}

// AddPerformer adds a participant to the room. Duplicate identities are
// rejected so reconnection can never double a membership entry.
func (r *Room) AddPerformer(p *types.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.performers {
		if existing.ID == p.ID {
			return ErrDuplicatePerformer
		}
	}
	r.performers = append(r.performers, p)
	return nil
}

// AddAudience adds a read-only observer. Audience members receive
// broadcasts but are never scheduled directives.
func (r *Room) AddAudience(p *types.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.audience {
		if existing.ID == p.ID {
			return ErrDuplicatePerformer
		}
	}
	r.audience = append(r.audience, p)
	return nil
}

// RemovePerformer drops a participant from the membership list and reports
// whether anyone was removed. The participant record itself survives for
// reconnection.
func (r *Room) RemovePerformer(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.performers {
		if p.ID == userID {
			r.performers = append(r.performers[:i], r.performers[i+1:]...)
			delete(r.themeVotes, userID)
			return true
		}
	}
	for i, p := range r.audience {
		if p.ID == userID {
			r.audience = append(r.audience[:i], r.audience[i+1:]...)
			return true
		}
	}
	return false
}

// HandleDisconnect removes the participant and their directive chain, and
// when the room empties cancels every scheduled task so no orphaned timers
// keep firing. Returns whether the room is now empty of performers.
func (r *Room) HandleDisconnect(userID string) bool {
	r.RemovePerformer(userID)
	r.sched.Cancel(PerformerKey(userID))

	r.mu.Lock()
	empty := len(r.performers) == 0
	r.mu.Unlock()

	if empty {
		r.sched.CancelAll()
		log.Printf("Room %s has no performers; scheduled updates stopped", r.name)
	}
	return empty
}

// HasPerformer reports whether the identity is currently a member.
func (r *Room) HasPerformer(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findPerformer(userID) != nil
}

// findPerformer returns the member with the given id. Callers hold r.mu.
func (r *Room) findPerformer(userID string) *types.Participant {
	for _, p := range r.performers {
		if p.ID == userID {
			return p
		}
	}
	return nil
}

// PerformerIDs returns the ids of current performers.
func (r *Room) PerformerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(r.performers))
	for i, p := range r.performers {
		ids[i] = p.ID
	}
	return ids
}

// MemberIDs returns the ids of everyone who should receive broadcasts:
// performers plus audience.
func (r *Room) MemberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.performers)+len(r.audience))
	for _, p := range r.performers {
		ids = append(ids, p.ID)
	}
	for _, p := range r.audience {
		ids = append(ids, p.ID)
	}
	return ids
}

// PerformerCount returns the number of current performers.
func (r *Room) PerformerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.performers)
}

// Snapshot builds the game-state payload broadcast with room updates.
func (r *Room) Snapshot() *types.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() *types.GameState {
	session := r.current()
	state := &types.GameState{
		Performers: make([]types.PerformerState, 0, len(r.performers)),
		Status:     session.Status,
		Theme:      session.Theme,
		CurrentSet: session.CurrentSet(),
	}
	for _, p := range r.performers {
		state.Performers = append(state.Performers, types.PerformerState{
			UserID:     p.ID,
			ScreenName: p.ScreenName(),
			Instrument: p.Instrument(),
			Directives: p.CurrentDirectives(),
			Feedback:   p.FeedbackLog(),
		})
	}
	return state
}

// StateResponse wraps a snapshot in an outbound message with the given
// action tag.
func (r *Room) StateResponse(action string) *types.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &types.Outbound{
		Action:     action,
		RoomName:   r.name,
		GameStatus: r.current().Status,
		GameState:  r.snapshotLocked(),
	}
}

// stateString renders the room for generator context: theme, performers
// with personalities, and the time-ordered directive and reaction log.
func (r *Room) stateString() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	session := r.current()
	if session.Theme != "" {
		fmt.Fprintf(&b, "The central theme of this improvisation is %s. ", session.Theme)
	}
	b.WriteString("This performance features the following performers. ")
	for _, p := range r.performers {
		fmt.Fprintf(&b, "%s (userId: %s). They play %s. Their personality is: %s. ",
			p.ScreenName(), p.ID, p.Instrument(), p.Personality.Describe())
	}

	history := make([]types.IssuedDirective, 0)
	for _, p := range r.performers {
		history = append(history, p.History()...)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].IssuedAt.Before(history[j].IssuedAt)
	})
	if len(history) > 0 {
		b.WriteString("Here's the sequence of directives and reactions so far. ")
		for i, d := range history {
			fmt.Fprintf(&b, "Directive %d. Seconds elapsed: %d. Title: %s. ",
				i+1, session.Elapsed(d.IssuedAt), d.Directive.Title)
			if d.Directive.Kind == types.DirectivePerformer || d.Reaction != "" {
				fmt.Fprintf(&b, "User: %s. ", d.UserID)
			}
			fmt.Fprintf(&b, "Directive: %s. ", d.Directive.Text)
			if d.Reaction != "" {
				fmt.Fprintf(&b, "Performer reaction: %s. ", d.Reaction)
			}
		}
	}
	return b.String()
}

// buildSessionLog assembles the persisted record for the current attempt.
func (r *Room) buildSessionLog(endedAt time.Time) *types.SessionLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.current()
	entry := &types.SessionLog{
		RoomName: r.name,
		Attempt:  session.Attempt,
		Summary:  session.Summary,
		EndedAt:  endedAt,
	}
	for _, p := range r.performers {
		entry.Roster = append(entry.Roster, types.RosterEntry{
			UserID:     p.ID,
			ScreenName: p.ScreenName(),
			Instrument: p.Instrument(),
			Feedback:   p.FeedbackLog(),
		})
		entry.Directives = append(entry.Directives, p.History()...)
	}
	sort.SliceStable(entry.Directives, func(i, j int) bool {
		return entry.Directives[i].IssuedAt.Before(entry.Directives[j].IssuedAt)
	})
	return entry
}

package types

import (
	"sync"
	"time"
)

// DirectiveKind tags a directive as group-level, performer-level, or the
// closing directive of a performance.
type DirectiveKind string

const (
	DirectiveGroup     DirectiveKind = "groupDirective"
	DirectivePerformer DirectiveKind = "performerDirective"
	DirectiveEnd       DirectiveKind = "endDirective"
)

// Feedback categories used as keys into a participant's feedback log.
const (
	FeedbackLobby           = "performerLobbyFeedbackResponse"
	FeedbackPostPerformance = "postPerformanceFeedbackResponse"
)

// RequiredDebriefResponses is how many post-performance answers each
// performer must supply before the room can reach finalSummary.
const RequiredDebriefResponses = 3

// Status drives the room lifecycle state machine.
type Status string

const (
	StatusRegistration   Status = "registration"
	StatusThemeSelection Status = "themeSelection"
	StatusImprovise      Status = "improvise"
	StatusEndSong        Status = "endSong"
	StatusDebrief        Status = "debrief"
	StatusFinalSummary   Status = "finalSummary"
)

// Directive is a single timed instruction. Directives are immutable once
// issued; a replacement supersedes the old one, it never edits in place.
type Directive struct {
	Kind     DirectiveKind `json:"kind"`
	Title    string        `json:"title"`
	Text     string        `json:"text"`
	Interval int           `json:"interval"` // seconds until scheduled replacement
}

// Terminal reports whether this directive ends the performance. The
// generator signals this by issuing an end-kind directive.
func (d Directive) Terminal() bool {
	return d.Kind == DirectiveEnd
}

// IssuedDirective records a directive handed to the group or to one
// performer, with the moment it was issued and any logged reaction.
type IssuedDirective struct {
	UserID    string    `json:"userId,omitempty"` // empty for group directives
	Directive Directive `json:"directive"`
	IssuedAt  time.Time `json:"issuedAt"`
	Reaction  string    `json:"reaction,omitempty"`
}

// DirectiveSet is one finalized round of directives: the group directive
// plus exactly one performer directive per performer present at the time.
type DirectiveSet struct {
	Group      Directive         `json:"group"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Performers []IssuedDirective `json:"performers"`
}

// SessionState is the versioned log of directive sets for one performance
// attempt within a room. Sets are append-only; history survives playAgain.
type SessionState struct {
	Attempt       int            `json:"attempt"`
	Status        Status         `json:"status"`
	Theme         string         `json:"theme,omitempty"`
	ThemeApproved bool           `json:"themeApproved"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	Sets          []DirectiveSet `json:"sets"`
	Terminal      bool           `json:"terminal"`
	Summary       string         `json:"summary,omitempty"`
}

// AppendSet records a finalized directive set.
func (s *SessionState) AppendSet(set DirectiveSet) {
	s.Sets = append(s.Sets, set)
}

// CurrentSet returns the most recent directive set, or nil before the first
// set is finalized.
func (s *SessionState) CurrentSet() *DirectiveSet {
	if len(s.Sets) == 0 {
		return nil
	}
	return &s.Sets[len(s.Sets)-1]
}

// Elapsed returns whole seconds since the performance started, or 0 when the
// start time has not been set yet.
func (s *SessionState) Elapsed(now time.Time) int {
	if s.StartTime.IsZero() {
		return 0
	}
	return int(now.Sub(s.StartTime).Seconds())
}

// FeedbackEntry is one logged question/answer pair.
type FeedbackEntry struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Response string   `json:"response"`
}

// Participant is one connected party: identity, display attributes, the
// per-attempt directive and feedback logs, and a personality profile.
// Participants are never destroyed, only marked absent from a room.
// The directive and feedback logs are mutated through command methods and
// serialized by the owning room's mutex. The display fields carry their own
// lock because registration handlers update them while room timers read.
type Participant struct {
	ID          string
	Registered  bool
	RoomCreator bool
	Personality Personality

	mu         sync.Mutex
	screenName string
	instrument string

	current  map[DirectiveKind]IssuedDirective
	history  []IssuedDirective
	feedback map[string][]FeedbackEntry
}

// NewParticipant creates a participant with empty logs and the default
// performer personality.
func NewParticipant(id string) *Participant {
	return &Participant{
		ID:          id,
		Personality: NewPersonality(RolePerformer),
		current:     make(map[DirectiveKind]IssuedDirective),
		feedback:    make(map[string][]FeedbackEntry),
	}
}

// SetProfile updates the display fields supplied during registration. Empty
// values keep what is already set, so repeated registration messages can
// fill the profile one field at a time.
func (p *Participant) SetProfile(screenName, instrument string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if screenName != "" {
		p.screenName = screenName
	}
	if instrument != "" {
		p.instrument = instrument
	}
}

// ScreenName returns the participant's display name.
func (p *Participant) ScreenName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenName
}

// Instrument returns the participant's declared instrument.
func (p *Participant) Instrument() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instrument
}

// AssignDirective installs a directive as the participant's current one for
// its kind and appends it to the history log.
func (p *Participant) AssignDirective(d Directive, at time.Time) {
	issued := IssuedDirective{UserID: p.ID, Directive: d, IssuedAt: at}
	p.current[d.Kind] = issued
	p.history = append(p.history, issued)
}

// ClearDirective drops the participant's current directive of the given
// kind. History is untouched.
func (p *Participant) ClearDirective(kind DirectiveKind) {
	delete(p.current, kind)
}

// CurrentDirective returns the participant's live directive for a kind.
func (p *Participant) CurrentDirective(kind DirectiveKind) (IssuedDirective, bool) {
	d, ok := p.current[kind]
	return d, ok
}

// CurrentDirectives returns a copy of the participant's live directives.
func (p *Participant) CurrentDirectives() map[DirectiveKind]IssuedDirective {
	out := make(map[DirectiveKind]IssuedDirective, len(p.current))
	for k, v := range p.current {
		out[k] = v
	}
	return out
}

// History returns a copy of the participant's directive history for this
// attempt.
func (p *Participant) History() []IssuedDirective {
	out := make([]IssuedDirective, len(p.history))
	copy(out, p.history)
	return out
}

// LogReaction attaches a reaction to the most recent history entry matching
// the given kind and reports whether a matching entry was found.
func (p *Participant) LogReaction(kind DirectiveKind, reaction string) bool {
	for i := len(p.history) - 1; i >= 0; i-- {
		if p.history[i].Directive.Kind == kind {
			p.history[i].Reaction = reaction
			return true
		}
	}
	return false
}

// LogFeedback appends an answered question under a feedback category.
func (p *Participant) LogFeedback(category string, entry FeedbackEntry) {
	p.feedback[category] = append(p.feedback[category], entry)
}

// FeedbackCount returns how many answers are logged under a category.
func (p *Participant) FeedbackCount(category string) int {
	return len(p.feedback[category])
}

// FeedbackLog returns a copy of the participant's feedback log.
func (p *Participant) FeedbackLog() map[string][]FeedbackEntry {
	out := make(map[string][]FeedbackEntry, len(p.feedback))
	for k, v := range p.feedback {
		entries := make([]FeedbackEntry, len(v))
		copy(entries, v)
		out[k] = entries
	}
	return out
}

// ResetAttempt clears the per-attempt logs ahead of a playAgain round.
// Identity, instrument, and personality persist across attempts.
func (p *Participant) ResetAttempt() {
	p.current = make(map[DirectiveKind]IssuedDirective)
	p.history = nil
	p.feedback = make(map[string][]FeedbackEntry)
}

// Profile is the persisted record for one participant.
type Profile struct {
	UserID      string      `json:"userId"`
	ScreenName  string      `json:"screenName"`
	Instrument  string      `json:"instrument"`
	Personality Personality `json:"personality"`
}

// Profile returns the participant's persistable profile record.
func (p *Participant) Profile() Profile {
	p.mu.Lock()
	screenName, instrument := p.screenName, p.instrument
	p.mu.Unlock()

	return Profile{
		UserID:      p.ID,
		ScreenName:  screenName,
		Instrument:  instrument,
		Personality: p.Personality,
	}
}

// RosterEntry is one line of a persisted session log roster.
type RosterEntry struct {
	UserID     string                     `json:"userId"`
	ScreenName string                     `json:"screenName"`
	Instrument string                     `json:"instrument"`
	Feedback   map[string][]FeedbackEntry `json:"feedbackResponses,omitempty"`
}

// SessionLog is the persisted record of one finished performance attempt:
// the roster, the time-ordered directive log, and the closing summary.
type SessionLog struct {
	RoomName   string            `json:"roomName"`
	Attempt    int               `json:"attempt"`
	Roster     []RosterEntry     `json:"performers"`
	Directives []IssuedDirective `json:"directiveLog"`
	Summary    string            `json:"summary,omitempty"`
	EndedAt    time.Time         `json:"endedAt"`
}

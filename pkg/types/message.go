package types

// Action tags carried in the inbound envelope's "action" field.
const (
	ActionWelcome          = "welcome"
	ActionRegistration     = "registration"
	ActionCreateRoom       = "createRoom"
	ActionJoinRoom         = "joinRoom"
	ActionRejoinRoom       = "rejoinRoom"
	ActionLobbyFeedback    = "performerLobbyFeedbackResponse"
	ActionStartPerformance = "startPerformance"
	ActionThemeVote        = "themeVote"
	ActionReactToDirective = "reactToDirective"
	ActionUseNextDirective = "useNextDirective"
	ActionIgnoreDirective  = "ignoreDirective"
	ActionEndSong          = "endSong"
	ActionPerformanceDone  = "performanceComplete"
	ActionDebriefFeedback  = "postPerformanceFeedbackResponse"
	ActionPlayAgain        = "playAgain"

	// Outbound-only tags.
	ActionNewScreenName       = "newScreenName"
	ActionNewInstrument       = "newInstrument"
	ActionNewPlayer           = "newPlayer"
	ActionDebrief             = "debrief"
	ActionNewGameState        = "newGameState"
	ActionFinalSummary        = "finalSummary"
	ActionFinalSummaryPending = "finalSummaryPending"
	ActionRoomDoesNotExist    = "roomDoesNotExist"
	ActionError               = "error"
)

// LobbyRoom is the reserved room every connection lands in before joining a
// performance room.
const LobbyRoom = "lobby"

// Envelope is the inbound wire format. Action drives dispatch; roomName
// defaults to the lobby when absent. The remaining fields are read only by
// the handlers that need them.
type Envelope struct {
	Action      string `json:"action"`
	RoomName    string `json:"roomName,omitempty"`
	Token       string `json:"token,omitempty"`
	UserID      string `json:"userId,omitempty"`
	ScreenName  string `json:"screenName,omitempty"`
	Instrument  string `json:"instrument,omitempty"`
	RoomCreator bool   `json:"roomCreator,omitempty"`
	Audience    bool   `json:"audience,omitempty"`
	Vote        *bool  `json:"vote,omitempty"`
	Reaction    string `json:"reaction,omitempty"`
	Question    string `json:"question,omitempty"`
	Response    string `json:"response,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Room returns the envelope's target room, defaulting to the lobby.
func (e *Envelope) Room() string {
	if e.RoomName == "" {
		return LobbyRoom
	}
	return e.RoomName
}

// FeedbackQuestion targets a generated question at specific participants.
type FeedbackQuestion struct {
	UserIDs      []string `json:"userId"`
	FeedbackType string   `json:"feedbackType"`
	Question     string   `json:"question"`
	Options      []string `json:"options,omitempty"`
}

// PerformerState is the per-performer slice of a game-state snapshot.
type PerformerState struct {
	UserID     string                            `json:"userId"`
	ScreenName string                            `json:"screenName"`
	Instrument string                            `json:"instrument"`
	Directives map[DirectiveKind]IssuedDirective `json:"currentDirectives,omitempty"`
	Feedback   map[string][]FeedbackEntry        `json:"feedbackLog,omitempty"`
}

// GameState is the snapshot broadcast with most room updates.
type GameState struct {
	Performers []PerformerState `json:"performers"`
	CurrentSet *DirectiveSet    `json:"currentSet,omitempty"`
	Status     Status           `json:"status"`
	Theme      string           `json:"theme,omitempty"`
}

// Outbound is the outgoing wire format. Recipients is consumed by the
// router to restrict delivery and is never serialized; an empty list means
// broadcast to the whole room.
type Outbound struct {
	Action            string             `json:"action,omitempty"`
	GameStatus        Status             `json:"gameStatus,omitempty"`
	RoomName          string             `json:"roomName,omitempty"`
	GameState         *GameState         `json:"gameState,omitempty"`
	Message           string             `json:"message,omitempty"`
	Summary           string             `json:"summary,omitempty"`
	Error             string             `json:"error,omitempty"`
	ResponseRequired  bool               `json:"responseRequired,omitempty"`
	ResponseAction    string             `json:"responseAction,omitempty"`
	FeedbackQuestions []FeedbackQuestion `json:"feedbackQuestion,omitempty"`

	Recipients []string `json:"-"`
}

// To restricts delivery of the outbound message to the given participants.
func (o *Outbound) To(userIDs ...string) *Outbound {
	o.Recipients = append(o.Recipients, userIDs...)
	return o
}

// ErrorOutbound builds a well-formed error reply for a room.
func ErrorOutbound(roomName, message string) *Outbound {
	return &Outbound{Action: ActionError, RoomName: roomName, Error: message}
}

package domain

import (
	"strings"
	"time"
)

// AnswerMode selects how a question accepts submissions.
type AnswerMode string

const (
	// ModeToggle lets participants add and remove option picks freely while
	// the window is open (reaction-style).
	ModeToggle AnswerMode = "toggle"
	// ModeOneShot counts only a participant's first submission and matches
	// free text against the correct answers.
	ModeOneShot AnswerMode = "oneshot"
)

// Question is one timed trivia question. Supplied by a QuestionSource and
// never mutated by the session engine.
type Question struct {
	ID              int        `json:"id"`
	Prompt          string     `json:"prompt"`
	Options         []string   `json:"options"`
	CorrectOptions  []int      `json:"correctOptions"`
	MinPoints       float64    `json:"minPoints"`
	MaxPoints       float64    `json:"maxPoints"`
	DurationSeconds int        `json:"durationSeconds"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	Mode            AnswerMode `json:"mode,omitempty"`
}

// Duration returns the answer window length.
func (q Question) Duration() time.Duration {
	return time.Duration(q.DurationSeconds) * time.Second
}

// IsCorrectOption reports whether idx is one of the question's correct
// option indices.
func (q Question) IsCorrectOption(idx int) bool {
	for _, c := range q.CorrectOptions {
		if c == idx {
			return true
		}
	}
	return false
}

// MatchesAnswer reports whether text matches any correct option's text,
// ignoring case and surrounding whitespace. Used in one-shot mode.
func (q Question) MatchesAnswer(text string) bool {
	text = strings.TrimSpace(text)
	for _, c := range q.CorrectOptions {
		if c >= 0 && c < len(q.Options) && strings.EqualFold(q.Options[c], text) {
			return true
		}
	}
	return false
}

// EventKind distinguishes submissions from withdrawals.
type EventKind string

const (
	EventSubmit   EventKind = "submit"
	EventWithdraw EventKind = "withdraw"
)

// AnswerEvent is one submission signal from the presentation channel. It is
// consumed by the active answer window and discarded.
type AnswerEvent struct {
	ParticipantID string
	DisplayName   string
	OptionIndex   int
	Text          string
	Kind          EventKind
	At            time.Time
}

// ParticipantRecord accumulates one participant's score and counters for a
// single session. TotalPoints is signed; repeated penalties can drive it
// negative.
type ParticipantRecord struct {
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	CorrectCount  int     `json:"correctCount"`
	WrongCount    int     `json:"wrongCount"`
	TotalPoints   float64 `json:"totalPoints"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant record.
type LeaderboardEntry struct {
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	CorrectCount  int     `json:"correctCount"`
	WrongCount    int     `json:"wrongCount"`
	TotalPoints   float64 `json:"totalPoints"`
}

// MessageHandle identifies a message previously sent through the
// presentation channel so it can later be edited or deleted.
type MessageHandle int64

// Message is the channel-agnostic payload the session engine asks the
// presentation channel to display. Rendering is the channel's concern.
type Message struct {
	Title    string             `json:"title,omitempty"`
	Body     string             `json:"body,omitempty"`
	Options  []string           `json:"options,omitempty"`
	ImageURL string             `json:"imageUrl,omitempty"`
	Entries  []LeaderboardEntry `json:"entries,omitempty"`
}

// SessionSummary is returned to the session's caller once the run ends.
type SessionSummary struct {
	TotalQuestions          int                `json:"totalQuestions"`
	TotalCorrectAnswerSlots int                `json:"totalCorrectAnswerSlots"`
	TotalPointsObtainable   float64            `json:"totalPointsObtainable"`
	FinalLeaderboard        []LeaderboardEntry `json:"finalLeaderboard"`
}

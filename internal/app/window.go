package app

import (
	"context"
	"log/slog"
	"time"

	"realm-trivia-bot/internal/domain"
)

type pickKey struct {
	participant string
	option      int
}

// AnswerWindow scores the submissions for one question. It is bounded by
// the question's duration: events stamped at or after the deadline are
// ignored, and Run returns once the deadline passes or the event stream
// ends.
//
// In toggle mode the window remembers the exact amount applied for each
// (participant, option) pick so a later withdrawal reverses that amount
// rather than recomputing it. In one-shot mode only a participant's first
// submission counts and withdrawals are meaningless.
type AnswerWindow struct {
	question domain.Question
	ledger   *Ledger
	scoring  Scoring
	openedAt time.Time
	deadline time.Time
	log      *slog.Logger

	pendingCorrect map[pickKey]float64
	pendingWrong   map[pickKey]float64
	answered       map[string]bool
}

// NewAnswerWindow opens a window for q starting at openedAt. Mutations go
// to ledger; nothing is applied after the deadline.
func NewAnswerWindow(q domain.Question, ledger *Ledger, scoring Scoring, openedAt time.Time, log *slog.Logger) *AnswerWindow {
	if log == nil {
		log = slog.Default()
	}
	return &AnswerWindow{
		question:       q,
		ledger:         ledger,
		scoring:        scoring,
		openedAt:       openedAt,
		deadline:       openedAt.Add(q.Duration()),
		log:            log,
		pendingCorrect: make(map[pickKey]float64),
		pendingWrong:   make(map[pickKey]float64),
		answered:       make(map[string]bool),
	}
}

// Deadline returns the instant the window stops accepting events.
func (w *AnswerWindow) Deadline() time.Time {
	return w.deadline
}

// Run consumes events until the stream closes, the deadline passes, or ctx
// is canceled. Events are applied strictly in arrival order; the channel is
// the serialization point, so the ledger needs no locking.
func (w *AnswerWindow) Run(ctx context.Context, events <-chan domain.AnswerEvent) error {
	timer := time.NewTimer(time.Until(w.deadline))
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.Apply(ev)
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Apply classifies and scores a single event. Events stamped at or after
// the deadline, or before the window opened, are dropped.
func (w *AnswerWindow) Apply(ev domain.AnswerEvent) {
	if !ev.At.Before(w.deadline) || ev.At.Before(w.openedAt) {
		w.log.Debug("dropping out-of-window event",
			"participant", ev.ParticipantID, "kind", ev.Kind, "at", ev.At)
		return
	}
	if w.question.Mode == domain.ModeOneShot {
		w.applyOneShot(ev)
		return
	}
	w.applyToggle(ev)
}

func (w *AnswerWindow) applyOneShot(ev domain.AnswerEvent) {
	if ev.Kind != domain.EventSubmit || w.answered[ev.ParticipantID] {
		return
	}
	w.answered[ev.ParticipantID] = true

	correct := false
	if ev.Text != "" {
		correct = w.question.MatchesAnswer(ev.Text)
	} else {
		correct = w.question.IsCorrectOption(ev.OptionIndex)
	}
	if correct {
		points := CorrectPoints(ev.At.Sub(w.openedAt), w.question.Duration(), w.question.MinPoints, w.question.MaxPoints)
		w.ledger.ApplyCorrect(ev.ParticipantID, ev.DisplayName, points)
		return
	}
	penalty := w.scoring.WrongPenalty(len(w.question.CorrectOptions), len(w.question.Options))
	w.ledger.ApplyWrong(ev.ParticipantID, ev.DisplayName, penalty)
}

func (w *AnswerWindow) applyToggle(ev domain.AnswerEvent) {
	if ev.OptionIndex < 0 || ev.OptionIndex >= len(w.question.Options) {
		return
	}
	key := pickKey{participant: ev.ParticipantID, option: ev.OptionIndex}

	switch ev.Kind {
	case domain.EventSubmit:
		if _, dup := w.pendingCorrect[key]; dup {
			return
		}
		if _, dup := w.pendingWrong[key]; dup {
			return
		}
		if w.question.IsCorrectOption(ev.OptionIndex) {
			points := CorrectPoints(ev.At.Sub(w.openedAt), w.question.Duration(), w.question.MinPoints, w.question.MaxPoints)
			w.pendingCorrect[key] = points
			w.ledger.ApplyCorrect(ev.ParticipantID, ev.DisplayName, points)
			return
		}
		penalty := w.scoring.WrongPenalty(len(w.question.CorrectOptions), len(w.question.Options))
		w.pendingWrong[key] = penalty
		w.ledger.ApplyWrong(ev.ParticipantID, ev.DisplayName, penalty)

	case domain.EventWithdraw:
		if points, ok := w.pendingCorrect[key]; ok {
			delete(w.pendingCorrect, key)
			w.ledger.ReverseCorrect(ev.ParticipantID, points)
			return
		}
		if penalty, ok := w.pendingWrong[key]; ok {
			delete(w.pendingWrong, key)
			w.ledger.ReverseWrong(ev.ParticipantID, penalty)
			return
		}
		w.log.Debug("withdrawal without a matching submission",
			"participant", ev.ParticipantID, "option", ev.OptionIndex)
	}
}

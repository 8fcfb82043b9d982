package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"realm-trivia-bot/internal/domain"
)

// Session phases, in the order a run moves through them.
const (
	StateIdle               = "idle"
	StateAnnouncing         = "announcing"
	StateLoadingQuestion    = "loading_question"
	StateActive             = "active"
	StateRevealing          = "revealing"
	StateShowingLeaderboard = "showing_leaderboard"
	StateEnded              = "ended"
)

// QuestionSource fetches the ordered question sequence for a set. It is
// called once per session, before the announcement.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// Channel is the presentation surface the session talks to. Implementations
// deliver messages to participants and stream their answer events back.
type Channel interface {
	Send(ctx context.Context, msg domain.Message) (domain.MessageHandle, error)
	Edit(ctx context.Context, handle domain.MessageHandle, msg domain.Message) error
	Delete(ctx context.Context, handle domain.MessageHandle) error
	AttachOptions(ctx context.Context, handle domain.MessageHandle, tokens []string) error
	// Listen yields the answer events addressed to handle for at most d.
	// The stream closes when d elapses; stop releases it early. Callers must
	// always call stop.
	Listen(ctx context.Context, handle domain.MessageHandle, d time.Duration) (<-chan domain.AnswerEvent, func(), error)
}

// SessionConfig carries the per-run knobs. Zero durations fall back to the
// stock timings.
type SessionConfig struct {
	SetID       string
	Description string
	StartsIn    time.Duration
	RevealDwell time.Duration
	NextPause   time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.StartsIn <= 0 {
		c.StartsIn = 10 * time.Second
	}
	if c.RevealDwell <= 0 {
		c.RevealDwell = 10 * time.Second
	}
	if c.NextPause <= 0 {
		c.NextPause = 5 * time.Second
	}
	return c
}

// SessionRunner drives one trivia session from announcement to the final
// summary. All mutable state lives in the run itself; nothing survives past
// a Run call.
type SessionRunner struct {
	source  QuestionSource
	channel Channel
	scoring Scoring
	log     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	state string
}

// NewSessionRunner wires a runner against real clocks.
func NewSessionRunner(source QuestionSource, channel Channel, scoring Scoring, log *slog.Logger) *SessionRunner {
	return NewSessionRunnerWithTimers(source, channel, scoring, log, time.Now, sleepContext)
}

// NewSessionRunnerWithTimers is the test hook for deterministic timing.
func NewSessionRunnerWithTimers(source QuestionSource, channel Channel, scoring Scoring, log *slog.Logger,
	now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *SessionRunner {
	if log == nil {
		log = slog.Default()
	}
	return &SessionRunner{
		source:  source,
		channel: channel,
		scoring: scoring,
		log:     log,
		now:     now,
		sleep:   sleep,
		state:   StateIdle,
	}
}

// State reports the phase the runner is currently in.
func (r *SessionRunner) State() string {
	return r.state
}

func (r *SessionRunner) setState(state string) {
	r.state = state
	r.log.Info("session state", "state", state)
}

// Run fetches the question set and plays it through. Any collaborator
// failure aborts the run and propagates; the ledger is discarded either
// way.
func (r *SessionRunner) Run(ctx context.Context, cfg SessionConfig) (domain.SessionSummary, error) {
	cfg = cfg.withDefaults()

	questions, err := r.source.FetchQuestions(ctx, cfg.SetID)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("fetch questions: %w", err)
	}
	if len(questions) == 0 {
		return domain.SessionSummary{}, domain.ErrNoQuestions
	}

	ledger := NewLedger()
	slots := 0
	obtainable := 0.0

	r.setState(StateAnnouncing)
	_, err = r.channel.Send(ctx, domain.Message{
		Title: "Trivia time!",
		Body: fmt.Sprintf("%s\nFirst question in %d seconds. Good luck!",
			cfg.Description, int(cfg.StartsIn.Seconds())),
	})
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("announce session: %w", err)
	}
	if err := r.sleep(ctx, cfg.StartsIn); err != nil {
		return domain.SessionSummary{}, err
	}

	var boardHandle domain.MessageHandle
	boardShown := false

	for i, q := range questions {
		slots += len(q.CorrectOptions)
		obtainable += q.MaxPoints * float64(len(q.CorrectOptions))

		r.setState(StateLoadingQuestion)
		handle, err := r.channel.Send(ctx, questionMessage(i+1, len(questions), q))
		if err != nil {
			return domain.SessionSummary{}, fmt.Errorf("post question %d: %w", q.ID, err)
		}
		if q.Mode != domain.ModeOneShot {
			if err := r.channel.AttachOptions(ctx, handle, optionTokens(q)); err != nil {
				return domain.SessionSummary{}, fmt.Errorf("attach options for question %d: %w", q.ID, err)
			}
		}

		r.setState(StateActive)
		events, stop, err := r.channel.Listen(ctx, handle, q.Duration())
		if err != nil {
			return domain.SessionSummary{}, fmt.Errorf("listen for question %d: %w", q.ID, err)
		}
		window := NewAnswerWindow(q, ledger, r.scoring, r.now(), r.log)
		runErr := window.Run(ctx, events)
		stop()
		if runErr != nil {
			return domain.SessionSummary{}, runErr
		}

		r.setState(StateRevealing)
		if _, err := r.channel.Send(ctx, revealMessage(q)); err != nil {
			return domain.SessionSummary{}, fmt.Errorf("reveal question %d: %w", q.ID, err)
		}
		if err := r.sleep(ctx, cfg.RevealDwell); err != nil {
			return domain.SessionSummary{}, err
		}

		if i == len(questions)-1 {
			break
		}

		r.setState(StateShowingLeaderboard)
		board := domain.Message{
			Title:   "Leaderboard",
			Entries: DisplayView(ledger),
		}
		if !boardShown {
			boardHandle, err = r.channel.Send(ctx, board)
			boardShown = true
		} else {
			err = r.channel.Edit(ctx, boardHandle, board)
		}
		if err != nil {
			return domain.SessionSummary{}, fmt.Errorf("show leaderboard: %w", err)
		}
		if err := r.sleep(ctx, cfg.NextPause); err != nil {
			return domain.SessionSummary{}, err
		}
	}

	summary := domain.SessionSummary{
		TotalQuestions:          len(questions),
		TotalCorrectAnswerSlots: slots,
		TotalPointsObtainable:   obtainable,
		FinalLeaderboard:        Rank(ledger),
	}

	final := domain.Message{
		Title: "Final results",
		Body: fmt.Sprintf("Questions: %d\nCorrect answer slots: %d\nPoints obtainable: %.0f",
			summary.TotalQuestions, summary.TotalCorrectAnswerSlots, summary.TotalPointsObtainable),
		Entries: summary.FinalLeaderboard,
	}
	if _, err := r.channel.Send(ctx, final); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("post final results: %w", err)
	}

	r.setState(StateEnded)
	r.log.Info("session ended",
		"questions", summary.TotalQuestions,
		"participants", ledger.Len(),
		"pointsObtainable", summary.TotalPointsObtainable)
	return summary, nil
}

func questionMessage(number, total int, q domain.Question) domain.Message {
	return domain.Message{
		Title:    fmt.Sprintf("Question %d/%d", number, total),
		Body:     fmt.Sprintf("%s\nYou have %d seconds.", q.Prompt, q.DurationSeconds),
		Options:  q.Options,
		ImageURL: q.ImageURL,
	}
}

func revealMessage(q domain.Question) domain.Message {
	answers := make([]string, 0, len(q.CorrectOptions))
	for _, idx := range q.CorrectOptions {
		if idx >= 0 && idx < len(q.Options) {
			answers = append(answers, q.Options[idx])
		}
	}
	return domain.Message{
		Title: "Time's up!",
		Body:  "Correct answer(s): " + strings.Join(answers, ", "),
	}
}

func optionTokens(q domain.Question) []string {
	tokens := make([]string, len(q.Options))
	for i := range q.Options {
		tokens[i] = strconv.Itoa(i + 1)
	}
	return tokens
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package domain

import "errors"

var (
	// ErrNoQuestions is returned when a question set fetch succeeds but
	// yields nothing to play.
	ErrNoQuestions = errors.New("question set is empty")
	// ErrQuestionSetNotFound indicates the requested set does not exist in
	// the backing store.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrMessageNotFound indicates an edit or delete referenced a handle the
	// channel no longer knows about.
	ErrMessageNotFound = errors.New("channel message not found")
	// ErrListenerActive indicates a second answer window tried to open while
	// one is still listening.
	ErrListenerActive = errors.New("an answer listener is already active")
	// ErrSessionActive indicates a session start was requested while one is
	// already running.
	ErrSessionActive = errors.New("a session is already running")
)

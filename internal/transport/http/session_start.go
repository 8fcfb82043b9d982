package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"realm-trivia-bot/internal/domain"
)

// roleTokenHeader carries the shared secret proving the caller holds the
// quizmaster role. The check happens here, before the session engine is
// ever involved.
const roleTokenHeader = "X-Role-Token"

// SessionStarter launches one full trivia session and blocks until it ends.
type SessionStarter func(ctx context.Context) error

// NewStartHandler gates and triggers session runs. One session at a time;
// the run detaches from the request so a dropped trigger connection does
// not abort the quiz.
func NewStartHandler(start SessionStarter, roleToken string, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	var running atomic.Bool

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if roleToken != "" && r.Header.Get(roleTokenHeader) != roleToken {
			http.Error(w, "missing quizmaster role", http.StatusForbidden)
			return
		}
		if !running.CompareAndSwap(false, true) {
			http.Error(w, domain.ErrSessionActive.Error(), http.StatusConflict)
			return
		}

		go func() {
			defer running.Store(false)
			if err := start(context.Background()); err != nil {
				log.Error("session aborted", "err", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "starting"})
	}
}

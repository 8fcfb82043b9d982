package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"realm-trivia-bot/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question sets from a backing store (e.g., a
// document DB).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionSource caches question sets in Redis as a JSON blob per set and
// falls back to a loader on cache miss:
//
//	SET trivia:questions:{setID} {json} EX ttl
type QuestionSource struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionSource(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionSource {
	return &QuestionSource{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *QuestionSource) FetchQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	key := s.key(setID)

	if questions, ok := s.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := s.sf.Do(setID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if questions, ok := s.fromCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := s.loader.LoadQuestions(ctx, setID)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			_ = s.client.Set(ctx, key, data, s.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *QuestionSource) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (s *QuestionSource) key(setID string) string {
	return "trivia:questions:" + setID
}

func (s *QuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// SessionLiveness marks which question set currently has a running session.
// Other instances (or an ops dashboard) can check the key; it expires on
// its own if the process dies mid-session.
type SessionLiveness struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionLiveness(client *redis.Client, ttl time.Duration) *SessionLiveness {
	return &SessionLiveness{client: client, ttl: ttl}
}

// Mark sets the liveness key, best effort.
func (l *SessionLiveness) Mark(ctx context.Context, setID string) {
	_ = l.client.Set(ctx, l.key(setID), "1", l.ttl).Err()
}

// Clear removes the liveness key once the session ends.
func (l *SessionLiveness) Clear(ctx context.Context, setID string) {
	_ = l.client.Del(ctx, l.key(setID)).Err()
}

func (l *SessionLiveness) key(setID string) string {
	return "trivia:session:" + setID
}

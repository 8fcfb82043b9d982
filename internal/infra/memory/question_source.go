package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"realm-trivia-bot/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question sets from a backing store (e.g., a
// document DB).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionSource caches question sets with TTL to avoid repeated store
// hits when sessions reuse the same set.
type QuestionSource struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSource(loader QuestionLoader, ttl time.Duration) *QuestionSource {
	return &QuestionSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (s *QuestionSource) FetchQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[setID]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.questions, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(setID, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[setID]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.questions, nil
		}
		s.mu.RUnlock()

		questions, err := s.loader.LoadQuestions(ctx, setID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[setID] = cachedSet{
			questions: questions,
			expiresAt: now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *QuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticLoader is a loader backed by an in-memory map (useful for tests and
// database-free demo runs).
type StaticLoader struct {
	sets map[string][]domain.Question
}

func NewStaticLoader(sets map[string][]domain.Question) *StaticLoader {
	return &StaticLoader{sets: sets}
}

func (l *StaticLoader) LoadQuestions(_ context.Context, setID string) ([]domain.Question, error) {
	if questions, ok := l.sets[setID]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuestionSetNotFound
}

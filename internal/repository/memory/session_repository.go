package memory

import (
	"context"
	"sync"

	"nearmiss-bot/internal/entity"
	"nearmiss-bot/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
	// guards read-modify-write on a single session
	mu sync.Mutex
}

func NewSessionRepository() *SessionRepository {
	// Abandoned sessions are kept until cancelled or the process restarts,
	// so nothing expires and no janitor runs.
	c := cache.New(cache.NoExpiration, 0)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Get(_ context.Context, userID string) (*entity.Session, bool, error) {
	if x, found := r.cache.Get(userID); found {
		return x.(*entity.Session).Clone(), true, nil
	}
	return nil, false, nil
}

func (r *SessionRepository) Create(_ context.Context, userID string) (*entity.Session, error) {
	session := entity.NewSession(userID)
	r.mu.Lock()
	r.cache.Set(userID, session, cache.NoExpiration)
	r.mu.Unlock()
	return session.Clone(), nil
}

func (r *SessionRepository) Update(_ context.Context, userID string, field entity.Field, value string) error {
	return r.mutate(userID, func(s *entity.Session) {
		s.Answers[field] = value
	})
}

func (r *SessionRepository) SetStage(_ context.Context, userID string, stage entity.Stage) error {
	return r.mutate(userID, func(s *entity.Session) {
		s.Stage = stage
	})
}

func (r *SessionRepository) Advance(_ context.Context, userID string, field entity.Field, value string, next entity.Stage) error {
	return r.mutate(userID, func(s *entity.Session) {
		s.Answers[field] = value
		s.Stage = next
	})
}

func (r *SessionRepository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	r.cache.Delete(userID)
	r.mu.Unlock()
	return nil
}

func (r *SessionRepository) mutate(userID string, fn func(s *entity.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(userID)
	if !found {
		return contract.ErrSessionNotFound
	}
	next := x.(*entity.Session).Clone()
	fn(next)
	r.cache.Set(userID, next, cache.NoExpiration)
	return nil
}

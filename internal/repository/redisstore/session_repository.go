package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nearmiss-bot/internal/entity"
	"nearmiss-bot/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "nearmiss:session:"
	maxRetries = 50
)

// SessionRepository keeps sessions in Redis so they survive a restart.
// Updates use WATCH/MULTI so concurrent writers to one key never lose an update.
type SessionRepository struct {
	rdb *redis.Client
}

func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

func sessionKey(userID string) string {
	return keyPrefix + userID
}

func (r *SessionRepository) Get(ctx context.Context, userID string) (*entity.Session, bool, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session: %w", err)
	}
	session, err := decode(raw)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (r *SessionRepository) Create(ctx context.Context, userID string) (*entity.Session, error) {
	session := entity.NewSession(userID)
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(userID), raw, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) Update(ctx context.Context, userID string, field entity.Field, value string) error {
	return r.mutate(ctx, userID, func(s *entity.Session) {
		s.Answers[field] = value
	})
}

func (r *SessionRepository) SetStage(ctx context.Context, userID string, stage entity.Stage) error {
	return r.mutate(ctx, userID, func(s *entity.Session) {
		s.Stage = stage
	})
}

func (r *SessionRepository) Advance(ctx context.Context, userID string, field entity.Field, value string, next entity.Stage) error {
	return r.mutate(ctx, userID, func(s *entity.Session) {
		s.Answers[field] = value
		s.Stage = next
	})
}

func (r *SessionRepository) Clear(ctx context.Context, userID string) error {
	if err := r.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) mutate(ctx context.Context, userID string, fn func(s *entity.Session)) error {
	key := sessionKey(userID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return contract.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		session, err := decode(raw)
		if err != nil {
			return err
		}
		fn(session)
		next, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, contract.ErrSessionNotFound) {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return err
	}
	return fmt.Errorf("failed to update session %s: too much contention", userID)
}

func decode(raw []byte) (*entity.Session, error) {
	var session entity.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Answers == nil {
		session.Answers = make(map[entity.Field]string)
	}
	return &session, nil
}

package contract

import (
	"context"
	"errors"

	"nearmiss-bot/internal/entity"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository holds at most one in-progress report per user.
// Every method is atomic for its key; returned sessions are copies.
type SessionRepository interface {
	Get(ctx context.Context, userID string) (*entity.Session, bool, error)
	// Create starts a fresh session at StageName, replacing any existing one.
	Create(ctx context.Context, userID string) (*entity.Session, error)
	Update(ctx context.Context, userID string, field entity.Field, value string) error
	SetStage(ctx context.Context, userID string, stage entity.Stage) error
	// Advance stores an answer and moves to next in one atomic write.
	Advance(ctx context.Context, userID string, field entity.Field, value string, next entity.Stage) error
	// Clear is a no-op when no session exists.
	Clear(ctx context.Context, userID string) error
}

package service

import (
	"context"
	"errors"

	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/entity"
)

var (
	ErrIncompleteReport = errors.New("report is missing answers")
	ErrInvalidReport    = errors.New("report failed validation")
	ErrMediaResolve     = errors.New("failed to resolve media")
	ErrAppendRow        = errors.New("failed to append report row")
)

// ITransport delivers bot replies back to the user.
type ITransport interface {
	Send(ctx context.Context, userID string, text string, opts dto.SendOptions) error
	AckCallback(ctx context.Context, callbackID string, text string) error
}

// IMediaResolver turns a transient file handle into a durable URL.
type IMediaResolver interface {
	Resolve(ctx context.Context, ref dto.MediaRef) (string, error)
}

// IRowAppender appends one row to the report sheet.
type IRowAppender interface {
	AppendRow(ctx context.Context, row []interface{}) error
}

// INotifier is told about every committed report. It is called on its own
// goroutine once the user is released and cannot fail the commit.
type INotifier interface {
	ReportSubmitted(ctx context.Context, report entity.Report)
}

type nopNotifier struct{}

func (nopNotifier) ReportSubmitted(context.Context, entity.Report) {}

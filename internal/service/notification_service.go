package service

import (
	"context"
	"fmt"
	"time"

	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/entity"
	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/pkg/mailer"
	"nearmiss-bot/pkg/events"

	"github.com/google/uuid"
)

const notifyTimeout = 30 * time.Second

// NotificationService fans a committed report out to the event bus and the
// safety officer's mailbox. Both channels are optional.
type NotificationService struct {
	publisher    events.Publisher
	email        mailer.IEmailService
	officerEmail string
	timeout      time.Duration
	logger       logger.ILogger
}

func NewNotificationService(pub events.Publisher, email mailer.IEmailService, officerEmail string, log logger.ILogger) *NotificationService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &NotificationService{
		publisher:    pub,
		email:        email,
		officerEmail: officerEmail,
		timeout:      notifyTimeout,
		logger:       log,
	}
}

// NewReportSubmittedEvent builds the bus event for a committed report.
func NewReportSubmittedEvent(report entity.Report) events.Event {
	id := uuid.NewString()
	return events.BaseEvent{
		ID:   id,
		Type: events.TypeReportSubmitted,
		Data: dto.ReportSubmittedPayload{
			ReportID:    id,
			Timestamp:   report.Timestamp.In(entity.ReportZone).Format(entity.ReportTimeLayout),
			Name:        report.Name,
			Location:    report.Location,
			Area:        report.Area,
			Severity:    report.Severity,
			Description: report.Description,
			MediaURL:    report.MediaURL,
			UserID:      report.UserID,
		},
		OccurredAt: report.Timestamp,
	}
}

// ReportSubmitted never returns an error; failures are logged only.
func (s *NotificationService) ReportSubmitted(ctx context.Context, report entity.Report) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if s.publisher != nil {
		event := NewReportSubmittedEvent(report)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("NOTIFY", "Failed to publish report event", map[string]interface{}{
				"user_id": report.UserID,
				"error":   err.Error(),
			})
		} else {
			s.logger.Debug("NOTIFY", "Report event published", map[string]interface{}{
				"event_id": event.EventID(),
			})
		}
	}

	if s.email != nil && s.officerEmail != "" {
		if err := s.sendEmail(ctx, report); err != nil {
			s.logger.Error("NOTIFY", "Failed to email safety officer", map[string]interface{}{
				"user_id": report.UserID,
				"error":   err.Error(),
			})
		}
	}
}

// sendEmail gives up when ctx ends. gomail has no deadline on the SMTP
// exchange, so a stalled server leaves only the send goroutine behind.
func (s *NotificationService) sendEmail(ctx context.Context, report entity.Report) error {
	done := make(chan error, 1)
	go func() {
		done <- s.email.SendReportNotification(s.officerEmail, report)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("email to %s abandoned: %w", s.officerEmail, ctx.Err())
	}
}

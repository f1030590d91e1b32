package service

import (
	"fmt"
	"time"

	"nearmiss-bot/internal/entity"

	"github.com/go-playground/validator/v10"
)

// ReportAssembler turns a finished session into a Report.
type ReportAssembler struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewReportAssembler(now func() time.Time) *ReportAssembler {
	if now == nil {
		now = time.Now
	}
	return &ReportAssembler{
		validate: validator.New(),
		now:      now,
	}
}

// Assemble requires every answer, including media (which may be empty),
// and stamps the report with the current time in entity.ReportZone.
func (a *ReportAssembler) Assemble(session *entity.Session) (entity.Report, error) {
	if session == nil {
		return entity.Report{}, ErrIncompleteReport
	}
	if session.Stage != entity.StageMedia {
		return entity.Report{}, fmt.Errorf("%w: session is in stage %s", ErrIncompleteReport, session.Stage)
	}
	for _, field := range entity.ReportFields {
		if _, ok := session.Answer(field); !ok {
			return entity.Report{}, fmt.Errorf("%w: %s", ErrIncompleteReport, field)
		}
	}

	report := entity.Report{
		Timestamp:   a.now().In(entity.ReportZone),
		Name:        session.Answers[entity.FieldName],
		Location:    session.Answers[entity.FieldLocation],
		Area:        session.Answers[entity.FieldArea],
		Severity:    session.Answers[entity.FieldSeverity],
		Description: session.Answers[entity.FieldDescription],
		MediaURL:    session.Answers[entity.FieldMedia],
		UserID:      session.UserID,
	}
	if err := a.validate.Struct(report); err != nil {
		return entity.Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return report, nil
}

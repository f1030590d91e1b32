package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nearmiss-bot/internal/constant"
	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/entity"
	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/pkg/metrics"
	"nearmiss-bot/internal/repository/contract"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const conversationModule = "CONVERSATION"

// IConversationService runs the near-miss report conversation.
type IConversationService interface {
	// Handle processes one inbound event. Events of one user are serialized;
	// events of different users run concurrently.
	Handle(ctx context.Context, event dto.Event) error
}

// ConversationDeps wires the conversation to its collaborators.
type ConversationDeps struct {
	Sessions  contract.SessionRepository
	Transport ITransport
	Resolver  IMediaResolver
	Appender  IRowAppender
	Notifier  INotifier
	Assembler *ReportAssembler
	Logger    logger.ILogger
	Metrics   metrics.Recorder
}

type routeHandler func(ctx context.Context, event dto.Event, session *entity.Session) (*pendingCommit, error)

// pendingCommit is produced under the user lock and finished outside it.
type pendingCommit struct {
	userID string
	media  *dto.MediaRef // nil when the user skipped
}

type conversationService struct {
	sessions  contract.SessionRepository
	transport ITransport
	resolver  IMediaResolver
	appender  IRowAppender
	notifier  INotifier
	assembler *ReportAssembler
	logger    logger.ILogger
	metrics   metrics.Recorder
	tracer    trace.Tracer

	handlers map[Route]routeHandler
	locks    *userLocks
	inflight sync.Map
}

func NewConversationService(deps ConversationDeps) IConversationService {
	s := &conversationService{
		sessions:  deps.Sessions,
		transport: deps.Transport,
		resolver:  deps.Resolver,
		appender:  deps.Appender,
		notifier:  deps.Notifier,
		assembler: deps.Assembler,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		tracer:    otel.Tracer("nearmiss-bot/conversation"),
		locks:     newUserLocks(),
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.assembler == nil {
		s.assembler = NewReportAssembler(nil)
	}
	if s.logger == nil {
		s.logger = logger.NewNopLogger()
	}
	if s.metrics == nil {
		s.metrics = metrics.NopRecorder{}
	}

	s.handlers = map[Route]routeHandler{
		RouteStart:       s.handleStart,
		RouteReport:      s.handleReport,
		RouteCancel:      s.handleCancel,
		RouteIdle:        s.handleIdle,
		RouteName:        s.handleText,
		RouteDescription: s.handleText,
		RouteLocation:    s.handleButton,
		RouteArea:        s.handleButton,
		RouteSeverity:    s.handleButton,
		RouteMedia:       s.handleMedia,
		RouteStaleButton: s.handleStaleButton,
		RouteFallback:    s.handleFallback,
	}
	return s
}

func (s *conversationService) Handle(ctx context.Context, event dto.Event) error {
	if event.UserID == "" {
		return errors.New("event has no user id")
	}

	unlock := s.locks.Lock(event.UserID)
	pending, err := s.dispatch(ctx, event)
	unlock()

	if err != nil || pending == nil {
		return err
	}
	return s.commit(ctx, pending)
}

func (s *conversationService) dispatch(ctx context.Context, event dto.Event) (*pendingCommit, error) {
	if _, busy := s.inflight.Load(event.UserID); busy {
		s.ack(ctx, event, "")
		s.send(ctx, event.UserID, constant.MsgSaving, dto.SendOptions{})
		return nil, nil
	}

	session, found, err := s.sessions.Get(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	stage := entity.StageIdle
	if found {
		stage = session.Stage
	}

	route := RouteEvent(event.Kind, event.Command, stage)
	s.metrics.ObserveEvent(string(event.Kind), stage.String())
	s.logger.Debug(conversationModule, "Routing event", map[string]interface{}{
		"user_id": event.UserID,
		"kind":    event.Kind,
		"stage":   stage.String(),
		"route":   route,
	})

	return s.handlers[route](ctx, event, session)
}

func (s *conversationService) handleStart(ctx context.Context, event dto.Event, _ *entity.Session) (*pendingCommit, error) {
	s.send(ctx, event.UserID, constant.MsgGreeting, dto.SendOptions{})
	return nil, nil
}

// handleReport starts a session. An unfinished one is replaced.
func (s *conversationService) handleReport(ctx context.Context, event dto.Event, session *entity.Session) (*pendingCommit, error) {
	from := entity.StageIdle
	if session != nil {
		from = session.Stage
		s.send(ctx, event.UserID, constant.MsgRestarted, dto.SendOptions{})
	}
	if _, err := nextStage(ctx, from, inputReport); err != nil {
		return nil, err
	}

	created, err := s.sessions.Create(ctx, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info(conversationModule, "Report started", map[string]interface{}{"user_id": event.UserID})
	s.prompt(ctx, created)
	return nil, nil
}

func (s *conversationService) handleCancel(ctx context.Context, event dto.Event, session *entity.Session) (*pendingCommit, error) {
	if session == nil {
		s.send(ctx, event.UserID, constant.MsgNothingToCancel, dto.SendOptions{})
		return nil, nil
	}
	if _, err := nextStage(ctx, session.Stage, inputCancel); err != nil {
		return nil, err
	}
	if err := s.sessions.Clear(ctx, event.UserID); err != nil {
		return nil, fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info(conversationModule, "Report cancelled", map[string]interface{}{
		"user_id": event.UserID,
		"stage":   session.Stage.String(),
	})
	s.send(ctx, event.UserID, constant.MsgCancelled, dto.SendOptions{RemoveKeyboard: true})
	return nil, nil
}

func (s *conversationService) handleIdle(ctx context.Context, event dto.Event, _ *entity.Session) (*pendingCommit, error) {
	s.send(ctx, event.UserID, constant.MsgIdle, dto.SendOptions{})
	return nil, nil
}

// handleText stores free text verbatim for the name and description stages.
func (s *conversationService) handleText(ctx context.Context, event dto.Event, session *entity.Session) (*pendingCommit, error) {
	return nil, s.advance(ctx, session, event.Text)
}

func (s *conversationService) handleButton(ctx context.Context, event dto.Event, session *entity.Session) (*pendingCommit, error) {
	tokenStage, value, err := dto.ParseCallbackToken(event.CallbackData)
	if err != nil || tokenStage != session.Stage.String() || !contains(optionsFor(session), value) {
		s.logger.Info(conversationModule, "Rejected button outside current options", map[string]interface{}{
			"user_id": event.UserID,
			"stage":   session.Stage.String(),
			"token":   event.CallbackData,
		})
		s.ack(ctx, event, constant.MsgStaleButton)
		return nil, nil
	}

	s.ack(ctx, event, "")
	return nil, s.advance(ctx, session, value)
}

func (s *conversationService) handleStaleButton(ctx context.Context, event dto.Event, _ *entity.Session) (*pendingCommit, error) {
	s.ack(ctx, event, constant.MsgStaleButton)
	return nil, nil
}

func (s *conversationService) handleMedia(ctx context.Context, event dto.Event, session *entity.Session) (*pendingCommit, error) {
	var ref *dto.MediaRef
	switch event.Kind {
	case dto.EventKindText:
		if !strings.EqualFold(strings.TrimSpace(event.Text), constant.SkipKeyword) {
			s.send(ctx, event.UserID, constant.MsgExpectMedia, mediaKeyboard())
			return nil, nil
		}
	default:
		best, ok := event.Media.Best()
		if !ok {
			s.send(ctx, event.UserID, constant.MsgExpectMedia, mediaKeyboard())
			return nil, nil
		}
		ref = &best
	}

	if _, err := nextStage(ctx, session.Stage, inputMedia); err != nil {
		return nil, err
	}
	s.inflight.Store(event.UserID, struct{}{})
	return &pendingCommit{userID: event.UserID, media: ref}, nil
}

func (s *conversationService) handleFallback(ctx context.Context, event dto.Event, session *entity.Session) (*pendingCommit, error) {
	s.ack(ctx, event, "")
	if session == nil {
		s.send(ctx, event.UserID, constant.MsgIdle, dto.SendOptions{})
		return nil, nil
	}
	switch session.Stage {
	case entity.StageName, entity.StageDescription:
		s.send(ctx, event.UserID, constant.MsgExpectText, dto.SendOptions{})
	case entity.StageLocation, entity.StageArea, entity.StageSeverity:
		s.send(ctx, event.UserID, constant.MsgUseButtons, dto.SendOptions{
			InlineKeyboard: inlineKeyboard(session.Stage, optionsFor(session)),
		})
	case entity.StageMedia:
		s.send(ctx, event.UserID, constant.MsgExpectMedia, mediaKeyboard())
	default:
		s.send(ctx, event.UserID, constant.MsgIdle, dto.SendOptions{})
	}
	return nil, nil
}

// advance records the answer for the current stage and moves to the next one.
func (s *conversationService) advance(ctx context.Context, session *entity.Session, value string) error {
	step, ok := stageSteps[session.Stage]
	if !ok {
		return fmt.Errorf("stage %s takes no answer", session.Stage)
	}
	next, err := nextStage(ctx, session.Stage, step.input)
	if err != nil {
		return err
	}

	if err := s.sessions.Advance(ctx, session.UserID, step.field, value, next); err != nil {
		return fmt.Errorf("failed to store %s and move to %s: %w", step.field, next, err)
	}

	session.Answers[step.field] = value
	session.Stage = next
	s.prompt(ctx, session)
	return nil
}

// commit resolves media, appends the row and clears the session. The user
// lock is only held to read and write the session, never across the
// resolver or the sheet call. Any failure leaves the stored session exactly
// as it was at the media stage. The notifier runs after the user is released.
func (s *conversationService) commit(ctx context.Context, p *pendingCommit) error {
	defer s.inflight.Delete(p.userID)

	ctx, span := s.tracer.Start(ctx, "conversation.commit",
		trace.WithAttributes(attribute.String("user_id", p.userID)))
	defer span.End()

	mediaURL := ""
	if p.media != nil {
		url, err := s.resolver.Resolve(ctx, *p.media)
		if err != nil {
			return s.failCommit(ctx, span, p.userID, "media", fmt.Errorf("%w: %v", ErrMediaResolve, err))
		}
		mediaURL = url
	}

	unlock := s.locks.Lock(p.userID)
	session, err := s.withMedia(ctx, p.userID, mediaURL)
	unlock()
	if err != nil {
		return s.failCommit(ctx, span, p.userID, "session", err)
	}

	report, err := s.assembler.Assemble(session)
	if err != nil {
		return s.failCommit(ctx, span, p.userID, "assemble", err)
	}

	start := time.Now()
	err = s.appender.AppendRow(ctx, report.Row())
	s.metrics.ObserveAppend(time.Since(start))
	if err != nil {
		return s.failCommit(ctx, span, p.userID, "append", fmt.Errorf("%w: %v", ErrAppendRow, err))
	}

	unlock = s.locks.Lock(p.userID)
	err = s.sessions.Clear(ctx, p.userID)
	unlock()
	if err != nil {
		// the row is already in the sheet; a leftover session is only cosmetic
		s.logger.Error(conversationModule, "Failed to clear committed session", map[string]interface{}{
			"user_id": p.userID,
			"error":   err.Error(),
		})
	}

	s.metrics.IncCommitted()
	s.logger.Info(conversationModule, "Report committed", map[string]interface{}{
		"user_id":   p.userID,
		"location":  report.Location,
		"area":      report.Area,
		"severity":  report.Severity,
		"has_media": report.MediaURL != "",
	})
	s.inflight.Delete(p.userID)
	s.send(ctx, p.userID, constant.MsgSaved, dto.SendOptions{RemoveKeyboard: true})
	go s.notifier.ReportSubmitted(context.WithoutCancel(ctx), report)
	return nil
}

// withMedia loads the session and sets the media answer on the copy only.
// The stored session never holds media, so a failed commit changes nothing.
func (s *conversationService) withMedia(ctx context.Context, userID, mediaURL string) (*entity.Session, error) {
	session, found, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !found {
		return nil, contract.ErrSessionNotFound
	}
	session.Answers[entity.FieldMedia] = mediaURL
	return session, nil
}

func (s *conversationService) failCommit(ctx context.Context, span trace.Span, userID, reason string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	s.metrics.IncCommitFailure(reason)
	s.logger.Error(conversationModule, "Failed to commit report", map[string]interface{}{
		"user_id": userID,
		"reason":  reason,
		"error":   err.Error(),
	})
	s.send(ctx, userID, constant.MsgSaveFailed, mediaKeyboard())
	return err
}

func (s *conversationService) prompt(ctx context.Context, session *entity.Session) {
	switch session.Stage {
	case entity.StageName:
		s.send(ctx, session.UserID, constant.MsgAskName, dto.SendOptions{RemoveKeyboard: true})
	case entity.StageLocation:
		s.send(ctx, session.UserID, constant.MsgAskLocation, dto.SendOptions{
			InlineKeyboard: inlineKeyboard(session.Stage, optionsFor(session)),
		})
	case entity.StageArea:
		s.send(ctx, session.UserID, constant.MsgAskArea, dto.SendOptions{
			InlineKeyboard: inlineKeyboard(session.Stage, optionsFor(session)),
		})
	case entity.StageSeverity:
		s.send(ctx, session.UserID, constant.MsgAskSeverity, dto.SendOptions{
			InlineKeyboard: inlineKeyboard(session.Stage, optionsFor(session)),
		})
	case entity.StageDescription:
		s.send(ctx, session.UserID, constant.MsgAskDescription, dto.SendOptions{})
	case entity.StageMedia:
		s.send(ctx, session.UserID, constant.MsgAskMedia, mediaKeyboard())
	}
}

func (s *conversationService) send(ctx context.Context, userID, text string, opts dto.SendOptions) {
	if err := s.transport.Send(ctx, userID, text, opts); err != nil {
		s.logger.Error(conversationModule, "Failed to send message", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func (s *conversationService) ack(ctx context.Context, event dto.Event, text string) {
	if event.CallbackID == "" {
		return
	}
	if err := s.transport.AckCallback(ctx, event.CallbackID, text); err != nil {
		s.logger.Warn(conversationModule, "Failed to answer callback", map[string]interface{}{
			"user_id": event.UserID,
			"error":   err.Error(),
		})
	}
}

// optionsFor lists the values a button may carry at the session's stage.
func optionsFor(session *entity.Session) []string {
	switch session.Stage {
	case entity.StageLocation:
		return constant.Locations
	case entity.StageArea:
		return constant.AreasFor(session.Answers[entity.FieldLocation])
	case entity.StageSeverity:
		return constant.Severities
	}
	return nil
}

func buttonsPerRow(stage entity.Stage) int {
	if stage == entity.StageSeverity {
		return 3
	}
	return 2
}

func inlineKeyboard(stage entity.Stage, values []string) [][]dto.InlineButton {
	perRow := buttonsPerRow(stage)
	var rows [][]dto.InlineButton
	for i := 0; i < len(values); i += perRow {
		end := i + perRow
		if end > len(values) {
			end = len(values)
		}
		row := make([]dto.InlineButton, 0, end-i)
		for _, v := range values[i:end] {
			row = append(row, dto.InlineButton{Label: v, Token: dto.CallbackToken(stage.String(), v)})
		}
		rows = append(rows, row)
	}
	return rows
}

func mediaKeyboard() dto.SendOptions {
	return dto.SendOptions{ReplyKeyboard: []string{constant.MsgSkipButton}}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

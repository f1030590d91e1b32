package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nearmiss-bot/internal/config"
	"nearmiss-bot/internal/controller"
	"nearmiss-bot/internal/pkg/logger"
	"nearmiss-bot/internal/pkg/mailer"
	"nearmiss-bot/internal/pkg/metrics"
	"nearmiss-bot/internal/repository/contract"
	"nearmiss-bot/internal/repository/memory"
	"nearmiss-bot/internal/repository/redisstore"
	"nearmiss-bot/internal/service"
	"nearmiss-bot/pkg/events"
	pktNats "nearmiss-bot/pkg/nats"
	"nearmiss-bot/pkg/sheets"
	"nearmiss-bot/pkg/telegram"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const mediaDownloadTimeout = 2 * time.Minute

type Container struct {
	Config   *config.Config
	Logger   logger.ILogger
	Registry *prometheus.Registry

	// Controllers
	HealthController  controller.IHealthController
	WebhookController controller.IWebhookController
	MediaController   controller.IMediaController

	// Event pipeline
	EventBus        *gochannel.GoChannel
	EventPublisher  service.IEventPublisher
	ConsumerService service.IConsumerService
	Conversation    service.IConversationService

	Telegram *telegram.Client

	natsPub *pktNats.Publisher
	rdb     *redis.Client
}

func NewContainer(ctx context.Context, cfg *config.Config, log logger.ILogger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	// 1. Metrics
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(c.Registry)

	// 2. Session store
	sessions, err := c.newSessionRepository(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Telegram
	tg, err := telegram.NewClient(telegram.Options{
		Token:        cfg.Telegram.Token,
		APIEndpoint:  cfg.Telegram.APIEndpoint,
		MediaBaseURL: cfg.App.PublicBaseURL,
		Debug:        cfg.Telegram.Debug,
	}, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Telegram = tg

	// 4. Spreadsheet sink
	creds, err := sheets.CredentialsJSON(cfg.Sheets.CredentialsJSON, cfg.Sheets.CredentialsFile)
	if err != nil {
		c.Close()
		return nil, err
	}
	appender, err := sheets.NewAppender(ctx, creds, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 5. Notifications
	notifier := service.NewNotificationService(c.newEventPublisher(ctx), c.newEmailService(), cfg.Notify.SafetyOfficerEmail, log)

	// 6. Conversation
	c.Conversation = service.NewConversationService(service.ConversationDeps{
		Sessions:  sessions,
		Transport: tg,
		Resolver:  tg,
		Appender:  appender,
		Notifier:  notifier,
		Assembler: service.NewReportAssembler(time.Now),
		Logger:    log,
		Metrics:   recorder,
	})

	// 7. Event Bus
	c.EventBus = service.NewEventBus(watermill.NewStdLogger(false, false))
	c.EventPublisher = service.NewEventPublisher(c.EventBus, cfg.App.EventTopic)
	c.ConsumerService = service.NewConsumerService(c.EventBus, cfg.App.EventTopic, c.Conversation, log)

	// 8. Controllers
	c.HealthController = controller.NewHealthController()
	c.WebhookController = controller.NewWebhookController(c.EventPublisher, cfg.Telegram.WebhookSecret, log)
	c.MediaController = controller.NewMediaController(tg, &http.Client{Timeout: mediaDownloadTimeout}, log)

	return c, nil
}

func (c *Container) newSessionRepository(ctx context.Context) (contract.SessionRepository, error) {
	if c.Config.App.SessionBackend != config.SessionBackendRedis {
		c.Logger.Info("SESSION", "Using in-memory session store", nil)
		return memory.NewSessionRepository(), nil
	}

	opt, err := redis.ParseURL(c.Config.App.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.rdb = rdb
	c.Logger.Info("SESSION", "Using redis session store", map[string]interface{}{"addr": opt.Addr})
	return redisstore.NewSessionRepository(rdb), nil
}

// newEventPublisher returns nil when NATS is not configured or unreachable.
func (c *Container) newEventPublisher(ctx context.Context) events.Publisher {
	if c.Config.App.NatsURL == "" {
		return nil
	}
	pub, err := pktNats.NewPublisher(ctx, c.Config.App.NatsURL)
	if err != nil {
		c.Logger.Warn("NOTIFY", "Failed to connect to NATS publisher, report events disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	c.natsPub = pub
	return pub
}

func (c *Container) newEmailService() mailer.IEmailService {
	smtp := c.Config.SMTP
	if smtp.Host == "" || c.Config.Notify.SafetyOfficerEmail == "" {
		return nil
	}
	return mailer.NewEmailService(smtp.Host, smtp.Port, smtp.Email, smtp.Password, smtp.SenderName)
}

// Close releases external connections. Safe to call more than once.
func (c *Container) Close() error {
	var errs []error
	if c.EventBus != nil {
		errs = append(errs, c.EventBus.Close())
	}
	if c.natsPub != nil {
		c.natsPub.Close()
		c.natsPub = nil
	}
	if c.rdb != nil {
		errs = append(errs, c.rdb.Close())
		c.rdb = nil
	}
	return errors.Join(errs...)
}

// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const dispatchModule = "DISPATCH"

// NewEventBus returns the in-process bus for chat events. Publish waits for
// the consumer's ack so events reach the mailboxes in arrival order.
func NewEventBus(log watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		},
		log,
	)
}

// IEventPublisher puts inbound chat events on the bus.
type IEventPublisher interface {
	Publish(ctx context.Context, event dto.Event) error
}

type eventPublisher struct {
	publisher message.Publisher
	topicName string
}

func NewEventPublisher(publisher message.Publisher, topicName string) IEventPublisher {
	return &eventPublisher{
		publisher: publisher,
		topicName: topicName,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event dto.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("user_id", event.UserID)
	msg.Metadata.Set("kind", string(event.Kind))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topicName, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

type IConsumerService interface {
	Consume(ctx context.Context) error
	// Wait blocks until every queued event has been handled.
	Wait()
}

// consumerService reads events off the bus and runs them through the
// conversation. Each user gets a queue drained by one goroutine, so a user's
// events keep their order while different users proceed in parallel.
type consumerService struct {
	subscriber   message.Subscriber
	topicName    string
	conversation IConversationService
	logger       logger.ILogger

	mu     sync.Mutex
	queues map[string]*userQueue
	wg     sync.WaitGroup
}

type userQueue struct {
	pending []dto.Event
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	conversation IConversationService,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:   subscriber,
		topicName:    topicName,
		conversation: conversation,
		logger:       logger,
		queues:       make(map[string]*userQueue),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) Wait() {
	cs.wg.Wait()
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var event dto.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.logger.Error(dispatchModule, "Failed to unmarshal event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}
	if event.UserID == "" {
		cs.logger.Warn(dispatchModule, "Dropping event without user", map[string]interface{}{"message_id": msg.UUID})
		msg.Ack()
		return
	}

	cs.enqueue(ctx, event)
	msg.Ack()
}

func (cs *consumerService) enqueue(ctx context.Context, event dto.Event) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	q, running := cs.queues[event.UserID]
	if !running {
		q = &userQueue{}
		cs.queues[event.UserID] = q
	}
	q.pending = append(q.pending, event)

	if !running {
		cs.wg.Add(1)
		go cs.drain(ctx, event.UserID, q)
	}
}

func (cs *consumerService) drain(ctx context.Context, userID string, q *userQueue) {
	defer cs.wg.Done()

	for {
		cs.mu.Lock()
		if len(q.pending) == 0 {
			delete(cs.queues, userID)
			cs.mu.Unlock()
			return
		}
		event := q.pending[0]
		q.pending = q.pending[1:]
		cs.mu.Unlock()

		if err := cs.conversation.Handle(ctx, event); err != nil {
			cs.logger.Warn(dispatchModule, "Event handling failed", map[string]interface{}{
				"user_id": userID,
				"kind":    event.Kind,
				"error":   err.Error(),
			})
		}
	}
}

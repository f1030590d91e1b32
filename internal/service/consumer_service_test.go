package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"nearmiss-bot/internal/constant"
	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/entity"
	"nearmiss-bot/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderRecorder struct {
	mu     sync.Mutex
	byUser map[string][]string
}

func (o *orderRecorder) Handle(_ context.Context, event dto.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byUser[event.UserID] = append(o.byUser[event.UserID], event.Text)
	return nil
}

func newPubSub() *gochannel.GoChannel {
	return NewEventBus(watermill.NopLogger{})
}

func TestConsumerKeepsPerUserOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := newPubSub()
	defer pubSub.Close()

	rec := &orderRecorder{byUser: make(map[string][]string)}
	consumer := NewConsumerService(pubSub, "test.events", rec, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewEventPublisher(pubSub, "test.events")
	for i := 0; i < 20; i++ {
		for _, user := range []string{"a", "b", "c"} {
			require.NoError(t, publisher.Publish(ctx, text(user, fmt.Sprintf("%d", i))))
		}
	}

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.byUser["a"]) == 20 && len(rec.byUser["b"]) == 20 && len(rec.byUser["c"]) == 20
	}, 2*time.Second, 10*time.Millisecond)
	consumer.Wait()

	for _, user := range []string{"a", "b", "c"} {
		for i, got := range rec.byUser[user] {
			assert.Equal(t, fmt.Sprintf("%d", i), got)
		}
	}
}

func TestConsumerDrivesConversation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := newPubSub()
	defer pubSub.Close()

	h := newHarness()
	consumer := NewConsumerService(pubSub, "test.events", h.svc, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewEventPublisher(pubSub, "test.events")
	for _, ev := range []dto.Event{
		command("42", constant.CommandReport),
		text("42", "Jane Doe"),
		tap("42", entity.StageLocation, constant.LocationU1Office),
		tap("42", entity.StageArea, "Pantry"),
		tap("42", entity.StageSeverity, constant.SeverityMedium),
		text("42", "Spilled water near entrance"),
		text("42", "skip"),
	} {
		require.NoError(t, publisher.Publish(ctx, ev))
	}

	assert.Eventually(t, func() bool {
		h.appender.mu.Lock()
		defer h.appender.mu.Unlock()
		return len(h.appender.rows) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

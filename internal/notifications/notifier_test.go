package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stallbook/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offeredEvent() Event {
	now := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	expires := now.Add(10 * time.Minute)
	ev := NewEvent(EventQueueOffered, "user-a", now)
	ev.StallID = "B05"
	ev.Date = "2026-02-01"
	ev.TicketID = "ticket-1"
	ev.Position = 1
	ev.ExpiresAt = &expires
	return ev
}

func TestKafkaNotifierPublishesKeyedByUser(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	ev := offeredEvent()
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "user-a" {
			return errors.New("unexpected partition key " + string(key))
		}
		var header string
		for _, h := range msg.Headers {
			if string(h.Key) == "stall_key" {
				header = string(h.Value)
			}
		}
		if header != "B05|2026-02-01" {
			return errors.New("missing stall_key header")
		}
		return nil
	})

	n := NewKafkaNotifierWithProducer(producer, "stall-notifications")
	require.NoError(t, n.Push(context.Background(), "user-a", ev))
	require.NoError(t, n.Close())
}

func TestKafkaNotifierSurfacesSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaNotifierWithProducer(producer, "stall-notifications")
	err := n.Push(context.Background(), "user-a", offeredEvent())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, n.Close())
}

func TestDispatchSwallowsErrors(t *testing.T) {
	rec := &Recorder{Err: errors.New("push gateway down")}
	Dispatch(context.Background(), rec, logger.Discard(), []Event{offeredEvent(), offeredEvent()})
	assert.Len(t, rec.Events(), 2)
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &Recorder{}
	bad := &Recorder{Err: errors.New("boom")}
	err := Multi{ok, bad}.Push(context.Background(), "user-a", offeredEvent())
	assert.Error(t, err)
	assert.Len(t, ok.Events(), 1)
	assert.Len(t, bad.OfType(EventQueueOffered), 1)
}

func TestEventJSONShape(t *testing.T) {
	raw, err := offeredEvent().ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "QUEUE_OFFERED", decoded["type"])
	assert.Equal(t, "HIGH", decoded["priority"])
	assert.Equal(t, "B05", decoded["stallId"])
}

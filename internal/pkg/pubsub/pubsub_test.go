package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cleanup := func() {
		rdb.Close()
		mr.Close()
	}
	return rdb, cleanup
}

func TestPlanChangeMessage_JSON(t *testing.T) {
	msg := &PlanChangeMessage{
		Type:      "plan_changed",
		UserID:    "user_abc",
		Plan:      "pro",
		Status:    "active",
		EventType: "checkout.session.completed",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "user_id")
	assert.Contains(t, raw, "event_type")

	var decoded PlanChangeMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg.UserID, decoded.UserID)
	assert.Equal(t, msg.Plan, decoded.Plan)
}

func TestPlanChangeMessage_OmitEmptyEventType(t *testing.T) {
	msg := &PlanChangeMessage{UserID: "user_abc", Plan: "free"}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	_, hasEventType := raw["event_type"]
	assert.False(t, hasEventType, "empty event_type should be omitted")
}

func TestPublishPlanChange_DefaultType(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(rdb)

	msg := &PlanChangeMessage{UserID: "user_abc", Plan: "pro", Status: "active"}
	err := publisher.PublishPlanChange(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "plan_changed", msg.Type)
}

func TestPublisherSubscriber_RoundTrip(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(rdb)
	subscriber := NewSubscriber(rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *PlanChangeMessage, 8)
	go func() {
		_ = subscriber.Run(ctx, func(msg *PlanChangeMessage) {
			received <- msg
		})
	}()

	// 订阅建立需要时间，循环发布直到收到为止
	var got *PlanChangeMessage
	require.Eventually(t, func() bool {
		err := publisher.PublishPlanChange(ctx, &PlanChangeMessage{
			UserID: "user_abc", Plan: "pro", Status: "active",
		})
		if err != nil {
			return false
		}
		select {
		case got = <-received:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	require.NotNil(t, got)
	assert.Equal(t, "user_abc", got.UserID)
	assert.Equal(t, "pro", got.Plan)
	assert.Equal(t, "plan_changed", got.Type)
}

func TestSubscriber_StopsOnContextCancel(t *testing.T) {
	rdb, cleanup := setupTestRedis(t)
	defer cleanup()

	subscriber := NewSubscriber(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- subscriber.Run(ctx, func(*PlanChangeMessage) {})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber did not stop after context cancel")
	}
}

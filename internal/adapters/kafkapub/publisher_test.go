package kafkapub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/ports"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewWriter(t *testing.T) {
	_, err := NewWriter(Config{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	w, err := NewWriter(Config{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.Equal(t, 3, w.MaxAttempts)
	assert.Equal(t, 10*time.Second, w.WriteTimeout)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}

func TestPublish(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.Event
		wantKey string
	}{
		{
			name:    "trade keyed by bot",
			event:   domain.Event{ID: "e1", Type: domain.EventTradeExecuted, BotID: "bot-7", Symbol: "BTCUSDT", Payload: map[string]interface{}{"quantity": 0.1}, Time: time.Unix(1700000000, 0).UTC()},
			wantKey: "bot-7",
		},
		{
			name:    "kill switch keyed by type",
			event:   domain.Event{ID: "e2", Type: domain.EventKillSwitchOn, Payload: map[string]interface{}{"reason": "daily loss"}, Time: time.Unix(1700000000, 0).UTC()},
			wantKey: string(domain.EventKillSwitchOn),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &mockWriter{}
			pub, err := New(w, "", &mockLogger{})
			require.NoError(t, err)

			require.NoError(t, pub.Publish(context.Background(), tt.event))
			require.Len(t, w.msgs, 1)
			msg := w.msgs[0]
			assert.Equal(t, "decision-engine.events", msg.Topic)
			assert.Equal(t, tt.wantKey, string(msg.Key))
			assert.Equal(t, string(tt.event.Type), string(msg.Headers[0].Value))

			var decoded domain.Event
			require.NoError(t, json.Unmarshal(msg.Value, &decoded))
			assert.Equal(t, tt.event.ID, decoded.ID)
			assert.Equal(t, tt.event.Type, decoded.Type)
			assert.True(t, tt.event.Time.Equal(decoded.Time))
		})
	}
}

func TestPublishFailure(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	pub, err := New(w, "events", &mockLogger{})
	require.NoError(t, err)

	err = pub.Publish(context.Background(), domain.Event{ID: "e1", Type: domain.EventTradeExecuted})
	assert.ErrorIs(t, err, ports.ErrPublishFailed)

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestNewRequiresWriter(t *testing.T) {
	_, err := New(nil, "events", &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

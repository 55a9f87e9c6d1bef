package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/NordCoder/pixelpages/internal/obs/retry"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestAuthEventsKafka_Publish(t *testing.T) {
	w := &fakeWriter{}
	ev := NewAuthEventsKafka(newProducer(w, "auth.events"))

	err := ev.PublishAuthEvent(context.Background(), "user.registered", "u-1", []byte(`{"email":"a@example.com"}`))
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	m := w.msgs[0]
	require.Equal(t, []byte("u-1"), m.Key)
	require.Equal(t, "user.registered", headerCarrier(m.Headers).Get(HeaderEventType))

	var env envelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	require.Equal(t, "user.registered", env.Type)
	require.JSONEq(t, `{"email":"a@example.com"}`, string(env.Data))
}

func TestAuthEventsKafka_Errors(t *testing.T) {
	w := &fakeWriter{}
	ev := NewAuthEventsKafka(newProducer(w, "auth.events"))

	err := ev.PublishAuthEvent(context.Background(), "user.registered", "u-1", []byte("not json"))
	require.True(t, retry.IsPermanent(err))
	require.Empty(t, w.msgs)

	boom := errors.New("broker down")
	w.err = boom
	err = ev.PublishAuthEvent(context.Background(), "user.registered", "u-1", []byte(`{}`))
	require.ErrorIs(t, err, boom)
}

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	var h headerCarrier
	h.Set("a", "1")
	h.Set("b", "2")
	h.Set("a", "3")
	require.Len(t, h, 2)
	require.Equal(t, "3", h.Get("a"))
	require.ElementsMatch(t, []string{"a", "b"}, h.Keys())
	require.Empty(t, h.Get("missing"))
}

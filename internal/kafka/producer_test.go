package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/events"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestProducer_EmitKeysBySubject(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	env, err := events.New(events.LoanCreated, time.Now(), "tech-1", 42, events.LoanPayload{LoanID: 42, SerialNumber: "SN-42"})
	require.NoError(t, err)
	require.NoError(t, p.Emit(context.Background(), env))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "loan:42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "application/json", string(msg.Headers[0].Value))

	var got events.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, env.EventID, got.EventID)
	assert.Equal(t, events.LoanCreated, got.EventType)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_WrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{writer: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kafka.Producer.Publish")
}

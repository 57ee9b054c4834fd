package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"example.com/octofit/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func userUpdatedMessage(offset int64, payload string) kafka.Message {
	return kafka.Message{
		Topic:     events.UserEventsTopic,
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Key:       []byte("user_1"),
		Value:     []byte(payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.UserUpdatedType)},
			{Key: "aggregate_id", Value: []byte("user_1")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := `{"user_id":"user_1","team_id":"team_dc"}`
	reader := &stubReader{messages: []kafka.Message{userUpdatedMessage(10, payload)}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(processedCounter.WithLabelValues(events.UserEventsTopic, events.UserUpdatedType))

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.UserUpdatedType, handler.last.EventType)
	require.Equal(t, "user_1", handler.last.AggregateID)
	require.Equal(t, "user_1", handler.last.Key)
	require.JSONEq(t, payload, string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues(events.UserEventsTopic, events.UserUpdatedType)), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{messages: []kafka.Message{userUpdatedMessage(20, `{"user_id":"user_1"}`)}}
	handler := &stubHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noHeader := userUpdatedMessage(30, `{}`)
	noHeader.Headers = nil
	badJSON := userUpdatedMessage(31, `{not json`)

	reader := &stubReader{messages: []kafka.Message{noHeader, badJSON}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues(events.UserEventsTopic))

	err := NewProcessor(reader, handler).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
	require.InDelta(t, before+2, testutil.ToFloat64(decodeErrorCounter.WithLabelValues(events.UserEventsTopic)), 0.0001)
}

func TestProcessorStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &blockingReader{}

	done := make(chan error, 1)
	go func() { done <- NewProcessor(reader, &stubHandler{}).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type blockingReader struct{}

func (blockingReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (blockingReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }

func (blockingReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

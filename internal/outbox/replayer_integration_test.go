//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/octofit/internal/events"
)

func TestReplayerRequeuesDeadLetters(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	aggregateID := uuid.NewString()
	seedOutbox(t, ctx, pool, aggregateID, events.UserUpdatedType)
	dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("broker unavailable")}, 10*time.Millisecond, 5, zaptest.NewLogger(t))
	require.NoError(t, dispatcher.processBatch(ctx))

	before := testutil.ToFloat64(dlqRequeuedCounter.WithLabelValues(events.UserEventsTopic))
	replayer := NewReplayer(pool, 3, time.Second, zaptest.NewLogger(t))
	n, err := replayer.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.InDelta(t, before+1, testutil.ToFloat64(dlqRequeuedCounter.WithLabelValues(events.UserEventsTopic)), 0.0001)

	var pending, dead int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND published_at IS NULL`, aggregateID).Scan(&pending))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dead))
	require.Equal(t, 1, pending)
	require.Zero(t, dead)

	producer := &stubProducer{}
	dispatcher = NewDispatcher(pool, producer, 10*time.Millisecond, 5, zaptest.NewLogger(t))
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
}

func TestReplayerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), "user.unknown")
	dispatcher := NewDispatcher(pool, &stubProducer{}, 10*time.Millisecond, 5, zaptest.NewLogger(t))
	require.NoError(t, dispatcher.processBatch(ctx))
	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 3 WHERE event_id = $1`, eventID)
	require.NoError(t, err)

	replayer := NewReplayer(pool, 3, time.Second, zaptest.NewLogger(t))
	n, err := replayer.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, n)

	var reason string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT quarantine_reason FROM outbox_dlq WHERE event_id = $1 AND quarantined_at IS NOT NULL`, eventID).Scan(&reason))
	require.Equal(t, "retry limit reached", reason)
	require.Zero(t, testutil.ToFloat64(dlqBacklogGauge))

	// Quarantined entries are never picked up again.
	n, err = replayer.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, n)
}

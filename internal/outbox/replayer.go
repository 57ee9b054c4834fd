package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const maxReplayDelay = time.Hour

// Replayer moves dead-lettered events back into the outbox and quarantines
// entries that keep failing.
type Replayer struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewReplayer constructs a Replayer. Non-positive limits fall back to five retries
// and a one minute base delay.
func NewReplayer(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *Replayer {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{pool: pool, logger: logger, maxRetries: maxRetries, baseDelay: baseDelay}
}

// RunOnce handles up to batchSize due entries and returns how many were requeued.
func (r *Replayer) RunOnce(ctx context.Context, batchSize int) (int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT dlq_id, event_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, retry_count
           FROM outbox_dlq
          WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
          ORDER BY created_at
          LIMIT $1`, batchSize)
	if err != nil {
		return 0, err
	}
	entries, err := pgx.CollectRows(rows, scanDeadLetter)
	if err != nil {
		return 0, err
	}

	requeued := 0
	var errs error
	for _, entry := range entries {
		ok, err := r.handle(ctx, entry)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if ok {
			requeued++
		}
	}
	r.updateBacklog(ctx)
	return requeued, errs
}

// Start polls the dead-letter table until ctx is cancelled.
func (r *Replayer) Start(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx, batchSize)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("dlq replay failed", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("dlq entries requeued", zap.Int("count", n))
			}
		}
	}
}

func (r *Replayer) handle(ctx context.Context, entry deadLetter) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= r.maxRetries {
		if _, err := tx.Exec(ctx,
			`UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`,
			"retry limit reached", entry.ID); err != nil {
			return false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return false, err
		}
		dlqQuarantinedCounter.WithLabelValues(entry.Topic).Inc()
		r.logger.Warn("dlq entry quarantined", zap.Int64("dlq_id", entry.ID), zap.String("aggregate_id", entry.AggregateID))
		return false, nil
	}

	if insertErr := requeue(ctx, tx, entry); insertErr != nil {
		// The failed insert aborted the transaction; record the retry on a fresh one.
		_ = tx.Rollback(ctx)
		if _, err := r.pool.Exec(ctx,
			`UPDATE outbox_dlq
                SET retry_count = retry_count + 1,
                    last_attempt_at = NOW(),
                    next_retry_at = NOW() + $1::interval,
                    reason = $2
              WHERE dlq_id = $3`,
			backoffDelay(r.baseDelay, entry.RetryCount+1), insertErr.Error(), entry.ID); err != nil {
			return false, err
		}
		dlqRetryCounter.WithLabelValues(entry.Topic).Inc()
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	dlqRequeuedCounter.WithLabelValues(entry.Topic).Inc()
	return true, nil
}

func (r *Replayer) updateBacklog(ctx context.Context) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}

// backoffDelay doubles base for every attempt after the first, capped at one hour.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxReplayDelay {
			return maxReplayDelay
		}
	}
	if delay > maxReplayDelay {
		return maxReplayDelay
	}
	return delay
}

func requeue(ctx context.Context, tx pgx.Tx, entry deadLetter) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.AggregateType, entry.AggregateID, entry.EventType, entry.Topic, entry.PartitionKey, entry.Payload,
		entry.AggregateID+":"+uuid.NewString(),
	)
	return err
}

type deadLetter struct {
	ID            int64
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       []byte
	RetryCount    int
}

func scanDeadLetter(row pgx.CollectableRow) (deadLetter, error) {
	var d deadLetter
	err := row.Scan(&d.ID, &d.EventID, &d.AggregateType, &d.AggregateID, &d.EventType, &d.Topic, &d.PartitionKey, &d.Payload, &d.RetryCount)
	return d, err
}

package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/hiveride/dispatch/pkg/common"
	"github.com/hiveride/dispatch/pkg/config"
	redisclient "github.com/hiveride/dispatch/pkg/redis"
)

// Queue materializes the ordered candidate list for one request as a Redis
// list. Seeding preserves input order (ascending distance from pickup); pops
// are single-reader atomic via LPOP.
type Queue struct {
	redis redisclient.ClientInterface
	cfg   config.DispatchConfig
}

// NewQueue creates a candidate queue backed by the coordination store.
func NewQueue(redis redisclient.ClientInterface, cfg config.DispatchConfig) *Queue {
	return &Queue{redis: redis, cfg: cfg}
}

// Seed pushes the ordered candidate list and returns its length. The queue
// carries the dispatch TTL: a request that cannot be serviced inside it is
// declared exhausted on the next pop.
func (q *Queue) Seed(ctx context.Context, requestID uuid.UUID, drivers []uuid.UUID) (int, error) {
	if len(drivers) == 0 {
		return 0, nil
	}

	values := make([]interface{}, len(drivers))
	for i, id := range drivers {
		values[i] = id.String()
	}

	if err := q.redis.RPush(ctx, queueKey(requestID), values...); err != nil {
		return 0, common.NewStoreUnavailableError("failed to seed candidate queue", err)
	}
	if err := q.redis.Expire(ctx, queueKey(requestID), q.cfg.QueueTTL()); err != nil {
		return 0, common.NewStoreUnavailableError("failed to expire candidate queue", err)
	}

	return len(drivers), nil
}

// PopNext atomically consumes the next candidate. ok is false when the queue
// is empty or expired.
func (q *Queue) PopNext(ctx context.Context, requestID uuid.UUID) (uuid.UUID, bool, error) {
	for {
		raw, found, err := q.redis.LPop(ctx, queueKey(requestID))
		if err != nil {
			return uuid.Nil, false, common.NewStoreUnavailableError("failed to pop candidate", err)
		}
		if !found {
			return uuid.Nil, false, nil
		}

		driverID, err := uuid.Parse(raw)
		if err != nil {
			// Corrupt entry; skip it rather than wedging the request.
			continue
		}
		return driverID, true, nil
	}
}

// Drop deletes the queue.
func (q *Queue) Drop(ctx context.Context, requestID uuid.UUID) error {
	if err := q.redis.Delete(ctx, queueKey(requestID)); err != nil {
		return common.NewStoreUnavailableError("failed to drop candidate queue", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/omyratechnologies/KCS-Backend-sub002/pkg/database"
)

// LockRepository provides Redis-backed advisory locks and a webhook replay
// cache. The settlement lock spans transaction selection through record
// creation; the storage unique constraint remains the hard guarantee if the
// lock expires mid-run.
type LockRepository struct {
	redis *database.RedisClient
}

func NewLockRepository(redis *database.RedisClient) *LockRepository {
	return &LockRepository{redis: redis}
}

func settlementLockKey(campusID, gateway string) string {
	return fmt.Sprintf("settlement:lock:%s:%s", campusID, gateway)
}

// AcquireSettlementLock takes the per-(campus, gateway) lock. Returns false
// when another run holds it.
func (r *LockRepository) AcquireSettlementLock(ctx context.Context, campusID, gateway string, ttl time.Duration) (bool, error) {
	return r.redis.SetNX(ctx, settlementLockKey(campusID, gateway), time.Now().Unix(), ttl)
}

func (r *LockRepository) ReleaseSettlementLock(ctx context.Context, campusID, gateway string) error {
	return r.redis.Delete(ctx, settlementLockKey(campusID, gateway))
}

// MarkWebhookSeen records a provider event ID and reports whether this
// delivery is the first. Gateways redeliver; the settlement state guard is
// the correctness mechanism and this cache just skips duplicate DB work.
func (r *LockRepository) MarkWebhookSeen(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	key := fmt.Sprintf("webhook:seen:%s:%s", gateway, eventID)
	return r.redis.SetNX(ctx, key, 1, ttl)
}

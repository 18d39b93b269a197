package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"github.com/bsm/redislock"
)

const (
	reservationLockTTL   = 30 * time.Second
	reservationLockRetry = 100 * time.Millisecond
)

// obtainReservationLock is what the workflow wrappers call; a variable so
// tests can observe when the lock is taken relative to row-locking reads.
var obtainReservationLock = ObtainReservationLock

func reservationLockKey(businessId string, productId int, facilityId *int) string {
	if facilityId != nil {
		return fmt.Sprintf("inv_reserve:%s:%d:%d", businessId, productId, *facilityId)
	}
	return fmt.Sprintf("inv_reserve:%s:%d", businessId, productId)
}

// ObtainReservationLock serializes reservation decisions across processes for
// one product scope. It returns a release func the caller must defer; the
// lock is held at most reservationLockTTL in case the process dies.
//
// When no lock backend is configured (unit tests, single-instance deploys)
// this degrades to a no-op: row locks inside the transaction still protect
// individual lots.
func ObtainReservationLock(ctx context.Context, key string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}

	lock, err := locker.Obtain(ctx, key, reservationLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(reservationLockRetry), 50),
	})
	if err != nil {
		return nil, fmt.Errorf("obtain reservation lock %s: %w", key, err)
	}
	return func() {
		// Release on a fresh context: the caller's ctx may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}

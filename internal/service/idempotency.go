package service

import (
	"context"
	"errors"
	"time"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// IdempotencyGuard makes order submission at-most-once per (tenant, key).
//
// Three layers, innermost first:
//   - singleflight: concurrent same-key callers in this process share one execution
//   - KeyLocker: a caller on another instance waits while the key is in flight
//   - the durable order row (unique on owner_id, idempotency_key) answers replays
type IdempotencyGuard struct {
	group   singleflight.Group
	locker  KeyLocker // nil = in-process only
	lockTTL time.Duration
	wait    time.Duration
	poll    time.Duration
}

func NewIdempotencyGuard(locker KeyLocker, lockTTL, wait time.Duration) *IdempotencyGuard {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &IdempotencyGuard{locker: locker, lockTTL: lockTTL, wait: wait, poll: 100 * time.Millisecond}
}

// ScopedKey namespaces a client key by tenant so two owners can never collide.
func ScopedKey(ownerID uuid.UUID, key string) string {
	return ownerID.String() + ":" + key
}

// lookupFn returns the order previously committed under the key, or nil.
type lookupFn func(ctx context.Context) (*model.Order, error)

type guardResult struct {
	order    *model.Order
	replayed bool
}

// Do returns the order for scopedKey, running create only if no previous
// submission succeeded. replayed reports that create did not run for this caller.
func (g *IdempotencyGuard) Do(ctx context.Context, scopedKey string, lookup lookupFn, create func(ctx context.Context) (*model.Order, error)) (*model.Order, bool, error) {
	leader := false
	v, err, _ := g.group.Do(scopedKey, func() (interface{}, error) {
		leader = true
		// Same-key followers share this result, so one caller's disconnect
		// must not abort the build for the others.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.lockTTL)
		defer cancel()
		return g.run(runCtx, scopedKey, lookup, create)
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(guardResult)
	return res.order, res.replayed || !leader, nil
}

func (g *IdempotencyGuard) run(ctx context.Context, key string, lookup lookupFn, create func(ctx context.Context) (*model.Order, error)) (guardResult, error) {
	if o, err := lookup(ctx); err != nil {
		return guardResult{}, err
	} else if o != nil {
		return guardResult{order: o, replayed: true}, nil
	}

	if g.locker == nil {
		return g.create(ctx, lookup, create)
	}

	deadline := time.Now().Add(g.wait)
	for {
		token, ok, err := g.locker.Acquire(ctx, key, g.lockTTL)
		if err != nil {
			// The unique index still rejects a duplicate insert; losing the
			// lock only costs the cross-instance wait.
			log.Warn().Err(err).Str("key", key).Msg("idempotency: lock unavailable, relying on unique index")
			return g.create(ctx, lookup, create)
		}
		if ok {
			defer func() {
				if err := g.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("idempotency: lock release failed")
				}
			}()
			// the previous holder may have committed between lookup and acquire
			if o, err := lookup(ctx); err != nil {
				return guardResult{}, err
			} else if o != nil {
				return guardResult{order: o, replayed: true}, nil
			}
			return g.create(ctx, lookup, create)
		}

		if time.Now().After(deadline) {
			return guardResult{}, conflict(CodeIdempotencyInFlight,
				"a submission with this idempotency key is still in progress; retry shortly")
		}
		select {
		case <-ctx.Done():
			return guardResult{}, ctx.Err()
		case <-time.After(g.poll):
		}
		if o, err := lookup(ctx); err != nil {
			return guardResult{}, err
		} else if o != nil {
			return guardResult{order: o, replayed: true}, nil
		}
	}
}

func (g *IdempotencyGuard) create(ctx context.Context, lookup lookupFn, create func(ctx context.Context) (*model.Order, error)) (guardResult, error) {
	o, err := create(ctx)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost an insert race against another instance holding no lock
		if prior, lerr := lookup(ctx); lerr == nil && prior != nil {
			return guardResult{order: prior, replayed: true}, nil
		}
	}
	if err != nil {
		return guardResult{}, err
	}
	return guardResult{order: o}, nil
}

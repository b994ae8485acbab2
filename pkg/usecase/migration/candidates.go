package migration

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type candidate struct {
	key string
	ts  time.Time // zero when no timestamp could be recovered
}

func (c candidate) millis() int64 {
	if c.ts.IsZero() {
		return 0
	}
	return c.ts.UnixMilli()
}

// candidateKeys returns prefixed keys in store enumeration order.
func (u *UseCase) candidateKeys(ctx context.Context) ([]string, error) {
	keys, err := u.store.Keys(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to enumerate keys")
	}

	candidates := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, u.policy.KeyPrefix) {
			candidates = append(candidates, key)
		}
	}
	return candidates, nil
}

// sortedCandidates returns candidates newest first. Ties keep enumeration order.
func (u *UseCase) sortedCandidates(ctx context.Context) ([]candidate, error) {
	keys, err := u.candidateKeys(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, len(keys))
	for i, key := range keys {
		candidates[i] = candidate{key: key, ts: u.effectiveTimestamp(ctx, key)}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].millis() > candidates[j].millis()
	})
	return candidates, nil
}

// effectiveTimestamp resolves the record time from its value, then from its key.
func (u *UseCase) effectiveTimestamp(ctx context.Context, key string) time.Time {
	if raw, ok, err := u.store.Get(ctx, key); err == nil && ok {
		if env, err := model.ParseEnvelope(raw); err == nil {
			if ts, ok := env.Timestamp(); ok {
				return ts
			}
		}
	}
	if ts, ok := model.KeyTimestamp(key); ok {
		return ts
	}
	return time.Time{}
}

// partition splits sorted candidates into the eager working set and the
// background remainder. The two sets are disjoint and together cover all candidates.
func (u *UseCase) partition(candidates []candidate) (eager, deferred []string) {
	cutoff := u.now().Add(-u.policy.EagerWindow)

	for i, c := range candidates {
		recent := !c.ts.IsZero() && !c.ts.Before(cutoff)
		if i < u.policy.EagerCount || recent {
			eager = append(eager, c.key)
		} else {
			deferred = append(deferred, c.key)
		}
	}
	return eager, deferred
}

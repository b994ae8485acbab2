package migration

import (
	"context"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
)

// Check reports whether a migration run looks necessary, by sampling the
// first few candidate keys in enumeration order. It does not modify the store.
// A false result is not a proof that every record is current.
func (u *UseCase) Check(ctx context.Context) (bool, error) {
	keys, err := u.candidateKeys(ctx)
	if err != nil {
		return false, err
	}
	if len(keys) > u.policy.CheckSampleSize {
		keys = keys[:u.policy.CheckSampleSize]
	}

	logger := logging.From(ctx)
	for _, key := range keys {
		raw, ok, err := u.store.Get(ctx, key)
		if err != nil {
			logger.Debug("unreadable record during check", "key", key, "error", err)
			continue
		}
		if !ok {
			continue
		}

		env, err := model.ParseEnvelope(raw)
		if err != nil {
			logger.Debug("unparsable record during check", "key", key)
			return true, nil
		}
		if !env.IsCurrent() {
			return true, nil
		}
	}

	return false, nil
}

package migration

import (
	"context"
	"unicode/utf16"

	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
)

// bytesPerCodeUnit is the storage cost of one UTF-16 code unit.
const bytesPerCodeUnit = 2

// EstimateUsage approximates the bytes held by every entry of the store,
// keys included. It fails open: any read error yields 0.
func (u *UseCase) EstimateUsage(ctx context.Context) int64 {
	logger := logging.From(ctx)

	keys, err := u.store.Keys(ctx)
	if err != nil {
		logger.Warn("failed to enumerate keys for usage estimate", "error", err)
		return 0
	}

	var units int64
	for _, key := range keys {
		value, _, err := u.store.Get(ctx, key)
		if err != nil {
			logger.Warn("failed to read value for usage estimate", "key", key, "error", err)
			return 0
		}
		units += int64(utf16Len(key) + utf16Len(value))
	}

	return units * bytesPerCodeUnit
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

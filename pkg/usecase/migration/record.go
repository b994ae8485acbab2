package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type outcome int

const (
	outcomeMigrated outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeMigrated:
		return "migrated"
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// migrateRecord moves one key to the current schema. Nothing escapes it:
// any failure removes the record and reports outcomeFailed.
func (u *UseCase) migrateRecord(ctx context.Context, key string) (out outcome) {
	logger := logging.From(ctx).With("key", key)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while migrating record", "panic", fmt.Sprint(r))
			u.removeQuietly(ctx, key)
			out = outcomeFailed
		}
	}()

	out, err := u.upgradeRecord(ctx, key)
	if err != nil {
		logger.Warn("failed to migrate record, removing it", "error", err)
		u.removeQuietly(ctx, key)
		return outcomeFailed
	}

	logger.Debug("record processed", "outcome", out.String())
	return out
}

func (u *UseCase) upgradeRecord(ctx context.Context, key string) (outcome, error) {
	logger := logging.From(ctx).With("key", key)

	raw, ok, err := u.store.Get(ctx, key)
	if err != nil {
		logger.Warn("failed to read record, skipping", "error", err)
		return outcomeSkipped, nil
	}
	if !ok || raw == "" {
		return outcomeSkipped, nil
	}

	env, err := model.ParseEnvelope(raw)
	if err != nil {
		return outcomeFailed, err
	}

	if env.IsCurrent() {
		return outcomeSkipped, nil
	}

	text, ok := env.Text()
	if !ok {
		if err := u.store.Remove(ctx, key); err != nil {
			return outcomeFailed, goerr.Wrap(err, "failed to remove record without text")
		}
		logger.Info("removed record without text")
		return outcomeSkipped, nil
	}

	lang := Classify(text)
	createdAt := model.FormatTimestamp(u.recordTime(env, key))

	analysis, convErr := convertAnalysis(env.Analysis(), text, lang, createdAt)
	if convErr != nil {
		logger.Debug("analysis replaced with default", "error", convErr)
	}

	record := &model.Record{
		SchemaVersion: model.SchemaV2,
		ID:            u.newID(),
		Lang:          lang,
		CreatedAt:     createdAt,
		Text:          text,
		Analysis:      analysis,
		Version:       model.RecordVersion,
		Migrated:      true,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return outcomeFailed, goerr.Wrap(err, "failed to marshal record")
	}
	if err := u.store.Set(ctx, key, string(data)); err != nil {
		return outcomeFailed, goerr.Wrap(err, "failed to write record")
	}

	return outcomeMigrated, nil
}

// recordTime picks the creation time: value timestamp, then key timestamp, then now.
func (u *UseCase) recordTime(env model.Envelope, key string) time.Time {
	if ts, ok := env.Timestamp(); ok {
		return ts
	}
	if ts, ok := model.KeyTimestamp(key); ok {
		return ts
	}
	return u.now()
}

func (u *UseCase) removeQuietly(ctx context.Context, key string) {
	if err := u.store.Remove(ctx, key); err != nil {
		logging.From(ctx).Warn("failed to remove record", "key", key, "error", err)
	}
}

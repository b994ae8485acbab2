package migration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/dreamlog/pkg/repository"
	"github.com/m-mizutani/dreamlog/pkg/usecase/migration"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

var fixedNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testPolicy() migration.Policy {
	p := migration.DefaultPolicy()
	p.YieldPause = time.Millisecond
	p.FallbackDelay = 0
	p.IdleTimeout = time.Hour
	return p
}

func newUseCase(store repository.Store, opts ...migration.Option) *migration.UseCase {
	base := []migration.Option{
		migration.WithPolicy(testPolicy()),
		migration.WithClock(func() time.Time { return fixedNow }),
	}
	return migration.New(store, append(base, opts...)...)
}

func put(t *testing.T, store repository.Store, key string, value any) {
	t.Helper()
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	default:
		data, err := json.Marshal(v)
		gt.NoError(t, err)
		raw = string(data)
	}
	gt.NoError(t, store.Set(context.Background(), key, raw))
}

func getRecord(t *testing.T, store repository.Store, key string) *model.Record {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), key)
	gt.NoError(t, err)
	gt.True(t, ok)

	var rec model.Record
	gt.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return &rec
}

func exists(t *testing.T, store repository.Store, key string) bool {
	t.Helper()
	_, ok, err := store.Get(context.Background(), key)
	gt.NoError(t, err)
	return ok
}

func snapshot(t *testing.T, store repository.Store) map[string]string {
	t.Helper()
	ctx := context.Background()
	keys, err := store.Keys(ctx)
	gt.NoError(t, err)

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v, _, err := store.Get(ctx, k)
		gt.NoError(t, err)
		values[k] = v
	}
	return values
}

// daysAgo returns a legacy record stamped the given number of days before fixedNow.
func daysAgo(days int, text string) map[string]any {
	return map[string]any{
		"text":      text,
		"timestamp": fixedNow.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli(),
	}
}

func currentRecord(text string) map[string]any {
	return map[string]any{
		"schemaVersion": model.SchemaV2,
		"id":            "existing-id",
		"lang":          "en",
		"createdAt":     "2025-05-30T10:00:00.000Z",
		"text":          text,
		"analysis":      model.DefaultAnalysis(),
		"version":       model.RecordVersion,
		"migrated":      false,
	}
}

var errInjected = goerr.New("injected failure")

// faultyStore fails selected operations of an underlying store.
type faultyStore struct {
	repository.Store
	keysErr    bool
	getFail    map[string]bool
	setFail    map[string]bool
	removeFail map[string]bool
	removed    []string
}

func newFaultyStore(inner repository.Store) *faultyStore {
	return &faultyStore{
		Store:      inner,
		getFail:    map[string]bool{},
		setFail:    map[string]bool{},
		removeFail: map[string]bool{},
	}
}

func (s *faultyStore) Keys(ctx context.Context) ([]string, error) {
	if s.keysErr {
		return nil, errInjected
	}
	return s.Store.Keys(ctx)
}

func (s *faultyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getFail[key] {
		return "", false, errInjected
	}
	return s.Store.Get(ctx, key)
}

func (s *faultyStore) Set(ctx context.Context, key, value string) error {
	if s.setFail[key] {
		return errInjected
	}
	return s.Store.Set(ctx, key, value)
}

func (s *faultyStore) Remove(ctx context.Context, key string) error {
	s.removed = append(s.removed, key)
	if s.removeFail[key] {
		return errInjected
	}
	return s.Store.Remove(ctx, key)
}

func key(ms int64) string {
	return fmt.Sprintf("dream_%d", ms)
}

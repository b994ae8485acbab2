package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/m-mizutani/dreamlog/pkg/adapter"
	"github.com/m-mizutani/dreamlog/pkg/repository"
	"github.com/m-mizutani/dreamlog/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var ErrMalformedEntry = goerr.New("malformed snapshot entry")

// maxLineSize bounds one snapshot line, i.e. one stored record.
const maxLineSize = 16 * 1024 * 1024

// Entry is one line of a snapshot.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Snapshot writes every entry of store to w as JSON lines, in enumeration
// order, and returns the number of entries written. Values are copied
// verbatim whatever their schema.
func Snapshot(ctx context.Context, store repository.Store, w io.Writer) (int, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to enumerate keys for snapshot")
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	written := 0
	for _, key := range keys {
		value, ok, err := store.Get(ctx, key)
		if err != nil {
			return written, goerr.Wrap(err, "failed to read entry for snapshot", goerr.V("key", key))
		}
		if !ok {
			continue
		}
		if err := enc.Encode(Entry{Key: key, Value: value}); err != nil {
			return written, goerr.Wrap(err, "failed to write snapshot entry", goerr.V("key", key))
		}
		written++
	}

	logging.From(ctx).Info("snapshot written", "entries", written)
	return written, nil
}

// Restore loads a snapshot produced by Snapshot into store. Existing keys are
// overwritten; keys absent from the snapshot are left alone. Blank lines are
// ignored.
func Restore(ctx context.Context, store repository.Store, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	restored, line := 0, 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return restored, goerr.Wrap(ErrMalformedEntry, "failed to decode snapshot line",
				goerr.V("line", line),
				goerr.V("error", err.Error()),
			)
		}
		if entry.Key == "" {
			return restored, goerr.Wrap(ErrMalformedEntry, "snapshot entry has no key", goerr.V("line", line))
		}

		if err := store.Set(ctx, entry.Key, entry.Value); err != nil {
			return restored, goerr.Wrap(err, "failed to restore entry", goerr.V("key", entry.Key))
		}
		restored++
	}
	if err := scanner.Err(); err != nil {
		return restored, goerr.Wrap(err, "failed to read snapshot", goerr.V("line", line))
	}

	logging.From(ctx).Info("snapshot restored", "entries", restored)
	return restored, nil
}

// Export writes a snapshot of store to key in st.
func Export(ctx context.Context, store repository.Store, st adapter.Storage, key string) (int, error) {
	w, err := st.Put(ctx, key)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open snapshot for writing", goerr.V("key", key))
	}

	n, err := Snapshot(ctx, store, w)
	if err != nil {
		_ = w.Close()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, goerr.Wrap(err, "failed to commit snapshot", goerr.V("key", key))
	}
	return n, nil
}

// Import restores the snapshot stored at key in st into store.
func Import(ctx context.Context, store repository.Store, st adapter.Storage, key string) (int, error) {
	r, err := st.Get(ctx, key)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open snapshot for reading", goerr.V("key", key))
	}
	defer func() {
		if err := r.Close(); err != nil {
			logging.From(ctx).Warn("failed to close snapshot", "key", key, "error", err)
		}
	}()

	return Restore(ctx, store, r)
}

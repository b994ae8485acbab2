package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/dreamlog/pkg/cli"
	"github.com/m-mizutani/gt"
)

type harness struct {
	dir     string
	backend []string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{dir: dir, backend: []string{"--backend", "bolt", "--bolt-path", filepath.Join(dir, "dreamlog.db")}}
}

func newSQLiteHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{dir: dir, backend: []string{"--backend", "sqlite", "--sqlite-path", filepath.Join(dir, "dreamlog.sqlite")}}
}

func (h *harness) run(t *testing.T, args ...string) (string, *cli.Error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	argv := append([]string{"dreamlog"}, args...)
	argv = append(argv, h.backend...)
	argv = append(argv, "--log-level", "error")
	err := cli.RunForTest(context.Background(), argv, &stdout, &stderr)
	return stdout.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %s", args, err.Message)
	}
	return out
}

// writeSnapshot writes legacy records 40 days apart, newest first, so only
// the newest one falls inside the eager window.
func (h *harness) writeSnapshot(t *testing.T, n int) string {
	t.Helper()
	var buf bytes.Buffer
	now := time.Now()
	for i := range n {
		ts := now.Add(-time.Duration(i) * 40 * 24 * time.Hour).UnixMilli()
		value, err := json.Marshal(map[string]any{"text": fmt.Sprintf("dream number %d", i), "timestamp": ts})
		gt.NoError(t, err)
		line, err := json.Marshal(map[string]string{"key": fmt.Sprintf("dream_%d", ts), "value": string(value)})
		gt.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}

	path := filepath.Join(h.dir, "legacy.jsonl")
	gt.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestMigrateWorkflow(t *testing.T) {
	for name, h := range map[string]*harness{
		"bolt":   newHarness(t),
		"sqlite": newSQLiteHarness(t),
	} {
		t.Run(name, func(t *testing.T) {
			testMigrateWorkflow(t, h)
		})
	}
}

func testMigrateWorkflow(t *testing.T, h *harness) {
	input := h.writeSnapshot(t, 6)

	gt.S(t, h.mustRun(t, "restore", "--input", input)).Contains("restored 6 entries")
	gt.S(t, h.mustRun(t, "check")).Contains("migration needed: true")

	out := h.mustRun(t, "migrate", "--dry-run")
	gt.S(t, out).Contains("dry run")
	gt.S(t, out).Contains("migrated=6")
	gt.S(t, h.mustRun(t, "check")).Contains("migration needed: true")

	out = h.mustRun(t, "migrate", "--eager-count", "2")
	gt.S(t, out).Contains("eager migration: migrated=2")
	gt.S(t, out).Contains("background migration: migrated=4")
	gt.S(t, h.mustRun(t, "check")).Contains("migration needed: false")

	out = h.mustRun(t, "migrate")
	gt.S(t, out).Contains("migrated=0 failed=0 skipped=6")
}

func TestEvictAndUsage(t *testing.T) {
	h := newHarness(t)
	input := h.writeSnapshot(t, 5)
	h.mustRun(t, "restore", "--input", input)

	gt.S(t, h.mustRun(t, "usage")).Contains("over\tfalse")
	gt.S(t, h.mustRun(t, "evict", "--keep", "2")).Contains("evicted 3 records")

	_, err := h.run(t, "evict", "--keep", "0")
	gt.True(t, err != nil)
	gt.Equal(t, err.Code, 1)
}

func TestBackupRoundTrip(t *testing.T) {
	h := newHarness(t)
	input := h.writeSnapshot(t, 3)
	h.mustRun(t, "restore", "--input", input)

	output := filepath.Join(h.dir, "out", "..", "backup.jsonl")
	gt.S(t, h.mustRun(t, "backup", "--output", output)).Contains("backed up 3 entries")

	data, err := os.ReadFile(filepath.Join(h.dir, "backup.jsonl"))
	gt.NoError(t, err)
	gt.Equal(t, strings.Count(string(data), "\n"), 3)
}

func TestInvalidInvocations(t *testing.T) {
	h := newHarness(t)

	for name, args := range map[string][]string{
		"backup without target":  {"backup"},
		"file and bucket":        {"backup", "--output", "x.jsonl", "--bucket", "b"},
		"unknown log format":     {"check", "--log-format", "xml"},
		"invalid eager override": {"migrate", "--eager-count=-1"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.run(t, args...)
			gt.True(t, err != nil)
		})
	}
}

package downloader

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/ificstats/internal/catalog"
	"github.com/brensch/ificstats/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(workers int, timeout time.Duration) *Manager {
	cfg := config.Default().Download
	cfg.Workers = workers
	cfg.Timeout = timeout
	cfg.ChunkSize = 1024
	return NewManager(cfg, nil, discardLogger())
}

func rec(u string) catalog.Record {
	return catalog.Record{Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), URL: u}
}

func TestLocalPath(t *testing.T) {
	dir := "/tmp/zips"
	assert.Equal(t, filepath.Join(dir, "ific3016.zip"), LocalPath(rec("https://example.org/sns/wic/ific3016.zip"), dir))
	assert.Equal(t, filepath.Join(dir, "ific3016.zip"), LocalPath(rec("https://example.org/a/ific3016.zip?token=1#x"), dir))
}

func TestPlanSkipsExistingAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "have.zip"), []byte("old"), 0o644))

	records := []catalog.Record{
		rec("https://example.org/a/have.zip"),
		rec("https://example.org/a/need.zip"),
		rec("https://mirror.example.org/b/need.zip"),
		rec("https://example.org/a/other.zip"),
	}
	tasks := Plan(records, dir)

	require.Len(t, tasks, 2)
	assert.Equal(t, "https://example.org/a/need.zip", tasks[0].Record.URL)
	assert.Equal(t, filepath.Join(dir, "need.zip"), tasks[0].LocalPath)
	assert.Equal(t, filepath.Join(dir, "other.zip"), tasks[1].LocalPath)
}

func TestExecuteThenReplanIsEmpty(t *testing.T) {
	payload := bytes.Repeat([]byte("ific"), 10_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	records := []catalog.Record{rec(srv.URL + "/a.zip"), rec(srv.URL + "/b.zip"), rec(srv.URL + "/c.zip")}

	results := testManager(2, 5*time.Second).Execute(context.Background(), Plan(records, dir))
	require.Len(t, results, 3)
	for _, r := range results {
		require.True(t, r.OK(), "download %s: %v", r.Task.Record.URL, r.Err)
		assert.Equal(t, int64(len(payload)), r.Bytes)
		got, err := os.ReadFile(r.Task.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}

	assert.Empty(t, Plan(records, dir), "second plan must not refetch anything")
}

func TestExecuteFailureIsIsolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.zip") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write([]byte("zipdata"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tasks := Plan([]catalog.Record{rec(srv.URL + "/ok1.zip"), rec(srv.URL + "/missing.zip"), rec(srv.URL + "/ok2.zip")}, dir)
	results := testManager(5, 5*time.Second).Execute(context.Background(), tasks)

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, ErrBadStatus)
	assert.True(t, results[2].OK())

	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, srv.URL+"/missing.zip", failed[0].Task.Record.URL)

	_, err := os.Stat(filepath.Join(dir, "missing.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist, "non-200 must not create a file")
}

func TestExecuteRespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	var records []catalog.Record
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		records = append(records, rec(srv.URL+"/"+name+".zip"))
	}
	results := testManager(3, 5*time.Second).Execute(context.Background(), Plan(records, t.TempDir()))

	assert.Empty(t, Failed(results))
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(2))
}

func TestExecuteStoppedBeforeStart(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := testManager(2, time.Second).Execute(ctx, Plan([]catalog.Record{rec(srv.URL + "/a.zip")}, t.TempDir()))
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Zero(t, hits.Load())
}

func TestExecuteIdleTimeoutLeavesPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	results := testManager(1, 200*time.Millisecond).Execute(context.Background(), Plan([]catalog.Record{rec(srv.URL + "/slow.zip")}, dir))

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "no data for")

	got, err := os.ReadFile(filepath.Join(dir, "slow.zip"))
	require.NoError(t, err)
	assert.Equal(t, "partial", string(got))
}

func TestExecuteWithProgressBar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zip"))
	}))
	defer srv.Close()

	cfg := config.Default().Download
	var buf bytes.Buffer
	m := NewManager(cfg, &buf, discardLogger())
	results := m.Execute(context.Background(), Plan([]catalog.Record{rec(srv.URL + "/a.zip"), rec(srv.URL + "/b.zip")}, t.TempDir()))

	assert.Empty(t, Failed(results))
	assert.Contains(t, buf.String(), "Downloading archives")
}

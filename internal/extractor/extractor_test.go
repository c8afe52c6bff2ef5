package extractor

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeZip creates an archive at dir/name holding the given entries.
func writeZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for entry, body := range entries {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func opts(dir string) Options {
	return Options{Dir: dir, Extension: ".mdb"}
}

func TestExtractAll(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "db")
	a := writeZip(t, src, "ific3016.zip", map[string]string{
		"ific3016/srs_ooak.MDB": "payload",
		"readme.txt":            "ignored",
	})

	results := ExtractAll(context.Background(), []string{a}, opts(dst), discardLogger())
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, []string{filepath.Join(dst, "srs_ooak.MDB")}, results[0].Extracted)

	got, err := os.ReadFile(filepath.Join(dst, "srs_ooak.MDB"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	_, err = os.Stat(filepath.Join(dst, "readme.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractAllIsIdempotent(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	a := writeZip(t, src, "a.zip", map[string]string{"a.mdb": "first"})

	ExtractAll(context.Background(), []string{a}, opts(dst), discardLogger())
	dest := filepath.Join(dst, "a.mdb")
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(dest, old, old))

	results := ExtractAll(context.Background(), []string{a}, opts(dst), discardLogger())
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Extracted)
	assert.Equal(t, []string{dest}, results[0].Skipped)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "existing payload must not be rewritten")
}

func TestExtractAllNoPayload(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	a := writeZip(t, src, "docs.zip", map[string]string{"notes.pdf": "x"})

	results := ExtractAll(context.Background(), []string{a}, opts(dst), discardLogger())
	require.Len(t, results, 1)
	assert.True(t, results[0].NoPayload)
	assert.True(t, results[0].OK())
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractAllCorruptArchiveIsIsolated(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	bad := filepath.Join(src, "bad.zip")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a zip"), 0o644))
	good := writeZip(t, src, "good.zip", map[string]string{"good.mdb": "ok"})
	missing := filepath.Join(src, "missing.zip")

	results := ExtractAll(context.Background(), []string{bad, good, missing}, opts(dst), discardLogger())
	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, []string{filepath.Join(dst, "good.mdb")}, results[1].Extracted)
	assert.ErrorIs(t, results[2].Err, os.ErrNotExist)
}

func TestExtractAllFirstWriteWins(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	a := writeZip(t, src, "a.zip", map[string]string{"one/srs.mdb": "from a"})
	b := writeZip(t, src, "b.zip", map[string]string{"two/srs.mdb": "from b"})

	results := ExtractAll(context.Background(), []string{a, b}, opts(dst), discardLogger())
	require.Len(t, results, 2)
	assert.Len(t, results[0].Extracted, 1)
	assert.Len(t, results[1].Skipped, 1)

	got, err := os.ReadFile(filepath.Join(dst, "srs.mdb"))
	require.NoError(t, err)
	assert.Equal(t, "from a", string(got))
}

func TestExtractAllCancelled(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	a := writeZip(t, src, "a.zip", map[string]string{"a.mdb": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := ExtractAll(ctx, []string{a}, opts(dst), discardLogger())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	_, err := os.Stat(filepath.Join(dst, "a.mdb"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBaseNameAndIsPayload(t *testing.T) {
	assert.Equal(t, "srs.mdb", BaseName(`ific\3016\srs.mdb`))
	assert.Equal(t, "srs.mdb", BaseName("ific/3016/srs.mdb"))
	assert.Equal(t, "srs.mdb", BaseName("srs.mdb"))

	assert.True(t, IsPayload("A/B.MdB", ".mdb"))
	assert.False(t, IsPayload("a/b.mdb.bak", ".mdb"))
	assert.False(t, IsPayload("a/b.mdb", ""))
}

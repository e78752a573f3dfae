package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArchiveTimestamp(t *testing.T) {
	ts, ok := parseArchiveTimestamp("studyflow-backup-2026-08-27-033000.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 27, 3, 30, 0, 0, time.UTC), ts)

	for _, key := range []string{
		"studyflow-backup-notadate.tar.gz",
		"other-backup-2026-08-27-033000.tar.gz",
		"studyflow-backup-2026-08-27-033000.zip",
		"",
	} {
		_, ok := parseArchiveTimestamp(key)
		assert.False(t, ok, "expected %q to be rejected", key)
	}
}

func TestPruneLocalKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		archivePrefix + "2026-08-20-033000.tar.gz",
		archivePrefix + "2026-08-21-033000.tar.gz",
		archivePrefix + "2026-08-22-033000.tar.gz",
		archivePrefix + "2026-08-23-033000.tar.gz",
		archivePrefix + "2026-08-24-033000.tar.gz",
	}
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	// Unrelated files survive rotation untouched.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	svc := New(nil, dir, 3, nil, zerolog.Nop())
	require.NoError(t, svc.pruneLocal(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var kept []string
	for _, e := range entries {
		kept = append(kept, e.Name())
	}
	assert.ElementsMatch(t, []string{
		names[2], names[3], names[4], "notes.txt",
	}, kept)
}

func TestNewEnforcesMinimumRetention(t *testing.T) {
	svc := New(nil, t.TempDir(), 0, nil, zerolog.Nop())
	assert.Equal(t, minBackupsToKeep, svc.retainLocal)
}

func TestCreateArchiveAndChecksum(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "snapshot.db")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	sum, err := checksumFile(src)
	require.NoError(t, err)
	// sha256("hello")
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	archivePath := filepath.Join(dir, "out.tar.gz")
	require.NoError(t, createArchive(archivePath, []string{src}))
	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

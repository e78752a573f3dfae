// Package backup creates consistent snapshots of the study database,
// archives them with checksummed metadata, and optionally replicates the
// archive to an S3-compatible bucket.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/studyflow/internal/database"
)

const (
	archivePrefix    = "studyflow-backup-"
	archiveTimestamp = "2006-01-02-150405"
	minBackupsToKeep = 3
)

// Metadata describes one backup archive's contents.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// Info summarizes a stored backup archive.
type Info struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// Service snapshots the database and manages local and remote archives.
// remote is nil when cloud replication is not configured.
type Service struct {
	db          *database.DB
	dataDir     string
	retainLocal int
	remote      *S3Client
	log         zerolog.Logger
}

// New creates a backup service. remote may be nil.
func New(db *database.DB, dataDir string, retainLocal int, remote *S3Client, log zerolog.Logger) *Service {
	if retainLocal < minBackupsToKeep {
		retainLocal = minBackupsToKeep
	}
	return &Service{
		db:          db,
		dataDir:     dataDir,
		retainLocal: retainLocal,
		remote:      remote,
		log:         log.With().Str("service", "backup").Logger(),
	}
}

// Run creates a backup archive, uploads it when a remote is configured, and
// prunes old local archives. Upload failure does not discard the local copy.
func (s *Service) Run(ctx context.Context) error {
	start := time.Now()
	backupDir := filepath.Join(s.dataDir, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	snapshotPath := filepath.Join(stagingDir, s.db.Name()+".db")
	if err := s.db.BackupTo(snapshotPath); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to stat snapshot: %w", err)
	}
	checksum, err := checksumFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to checksum snapshot: %w", err)
	}

	meta := Metadata{
		Timestamp: time.Now().UTC(),
		Database:  s.db.Name(),
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	metaPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeMetadata(metaPath, meta); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := archivePrefix + time.Now().Format(archiveTimestamp) + ".tar.gz"
	archivePath := filepath.Join(backupDir, archiveName)
	if err := createArchive(archivePath, []string{snapshotPath, metaPath}); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if s.remote != nil {
		if err := s.uploadArchive(ctx, archivePath, archiveName); err != nil {
			s.log.Error().Err(err).Str("archive", archiveName).Msg("Remote upload failed, local copy kept")
		}
	}

	if err := s.pruneLocal(backupDir); err != nil {
		s.log.Warn().Err(err).Msg("Local backup rotation failed")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("archive", archiveName).
		Int64("size_bytes", info.Size()).
		Msg("Backup completed")
	return nil
}

func (s *Service) uploadArchive(ctx context.Context, archivePath, archiveName string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return s.remote.Upload(ctx, archiveName, f)
}

// ListRemote lists archives in the bucket, newest first.
func (s *Service) ListRemote(ctx context.Context) ([]Info, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("remote backups are not configured")
	}
	objects, err := s.remote.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	backups := make([]Info, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		ts, ok := parseArchiveTimestamp(*obj.Key)
		if !ok {
			s.log.Warn().Str("key", *obj.Key).Msg("Skipping object with unparseable name")
			continue
		}
		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, Info{
			Filename:  *obj.Key,
			Timestamp: ts,
			SizeBytes: size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateRemote deletes remote archives older than retentionDays, always
// keeping the newest few regardless of age. retentionDays 0 keeps everything.
func (s *Service) RotateRemote(ctx context.Context, retentionDays int) error {
	if s.remote == nil || retentionDays <= 0 {
		return nil
	}
	backups, err := s.ListRemote(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minBackupsToKeep {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, b := range backups {
		if i < minBackupsToKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.remote.Delete(ctx, b.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", b.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}
	s.log.Info().Int("deleted", deleted).Msg("Remote backup rotation completed")
	return nil
}

// pruneLocal keeps only the newest retainLocal archives on disk.
func (s *Service) pruneLocal(backupDir string) error {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), archivePrefix) && strings.HasSuffix(e.Name(), ".tar.gz") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= s.retainLocal {
		return nil
	}
	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-s.retainLocal] {
		if err := os.Remove(filepath.Join(backupDir, name)); err != nil {
			s.log.Warn().Err(err).Str("archive", name).Msg("Failed to remove old local backup")
		}
	}
	return nil
}

func parseArchiveTimestamp(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, archivePrefix) || !strings.HasSuffix(key, ".tar.gz") {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(key, archivePrefix), ".tar.gz")
	ts, err := time.Parse(archiveTimestamp, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, meta Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// createArchive writes the given files into a tar.gz archive, flattening
// them to their basenames.
func createArchive(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, path := range files {
		if err := addFileToArchive(tw, path); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Package reliability provides database backups and maintenance jobs.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/harvest/internal/database"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	backupPrefix          = "harvest-backup-"
	backupSuffix          = ".tar.gz"
	backupTimestampLayout = "2006-01-02-150405"
	metadataFilename      = "backup-metadata.json"
	metadataVersion       = "1"
)

// BackupMetadata is written into every archive
type BackupMetadata struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database file in an archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes a stored backup archive
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	Uploaded  bool      `json:"uploaded"`
}

// BackupService writes consistent database snapshots into tar.gz archives,
// keeps the newest N locally and mirrors them to an optional Uploader.
type BackupService struct {
	databases []*database.DB
	dir       string
	keep      int
	uploader  Uploader
	log       zerolog.Logger

	now func() time.Time
}

// NewBackupService creates a backup service writing into dir. uploader may be nil.
func NewBackupService(databases []*database.DB, dir string, keep int, uploader Uploader, log zerolog.Logger) *BackupService {
	if keep < 1 {
		keep = 1
	}
	return &BackupService{
		databases: databases,
		dir:       dir,
		keep:      keep,
		uploader:  uploader,
		log:       log.With().Str("service", "backup").Logger(),
		now:       time.Now,
	}
}

// Dir returns the local backup directory
func (s *BackupService) Dir() string {
	return s.dir
}

// CreateBackup snapshots every database with VACUUM INTO, archives the
// snapshots with a metadata file, uploads the archive when an uploader is
// configured and rotates old archives.
func (s *BackupService) CreateBackup(ctx context.Context) (*BackupInfo, error) {
	startTime := s.now()
	id := uuid.New().String()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	stagingDir := filepath.Join(s.dir, ".staging-"+id)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		ID:        id,
		Timestamp: startTime.UTC(),
		Version:   metadataVersion,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	files := make([]string, 0, len(s.databases)+1)
	for _, db := range s.databases {
		filename := db.Name() + ".db"
		snapshot := filepath.Join(stagingDir, filename)

		if err := db.BackupTo(ctx, snapshot); err != nil {
			return nil, err
		}

		info, err := os.Stat(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s snapshot: %w", db.Name(), err)
		}
		checksum, err := fileChecksum(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum %s snapshot: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFilename), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFilename)

	archiveName := fmt.Sprintf("%s%s-%s%s", backupPrefix, startTime.UTC().Format(backupTimestampLayout), id[:8], backupSuffix)
	archivePath := filepath.Join(s.dir, archiveName)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	result := &BackupInfo{
		Filename:  archiveName,
		Timestamp: metadata.Timestamp,
		SizeBytes: archiveInfo.Size(),
	}

	if s.uploader != nil {
		if err := s.upload(ctx, archivePath, archiveName); err != nil {
			// the local archive is still usable
			s.log.Error().Err(err).Str("archive", archiveName).Msg("Failed to upload backup")
		} else {
			result.Uploaded = true
		}
	}

	if err := s.rotate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Bool("uploaded", result.Uploaded).
		Msg("Backup completed")

	return result, nil
}

func (s *BackupService) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.uploader.Upload(ctx, key, f)
}

// ListBackups lists local archives, newest first.
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Timestamp: ts,
			SizeBytes: info.Size(),
		})
	}

	sortNewestFirst(backups)
	return backups, nil
}

// rotate keeps the newest s.keep archives locally and remotely.
func (s *BackupService) rotate(ctx context.Context) error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}

	deleted := 0
	for i := s.keep; i < len(backups); i++ {
		if err := os.Remove(filepath.Join(s.dir, backups[i].Filename)); err != nil {
			s.log.Warn().Err(err).Str("filename", backups[i].Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Int("kept", s.keep).Msg("Rotated local backups")
	}

	if s.uploader == nil {
		return nil
	}

	objects, err := s.uploader.List(ctx, backupPrefix)
	if err != nil {
		return err
	}
	remote := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseBackupName(obj.Key)
		if !ok {
			continue
		}
		remote = append(remote, BackupInfo{Filename: obj.Key, Timestamp: ts, SizeBytes: obj.SizeBytes})
	}
	sortNewestFirst(remote)

	for i := s.keep; i < len(remote); i++ {
		if err := s.uploader.Delete(ctx, remote[i].Filename); err != nil {
			s.log.Warn().Err(err).Str("filename", remote[i].Filename).Msg("Failed to delete remote backup")
		}
	}
	return nil
}

// VerifyBackup re-reads an archive and checks every database file against
// the checksums recorded in its metadata.
func (s *BackupService) VerifyBackup(filename string) (*BackupMetadata, error) {
	if filepath.Base(filename) != filename {
		return nil, fmt.Errorf("invalid backup name %q", filename)
	}

	f, err := os.Open(filepath.Join(s.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	defer gz.Close()

	var metadata *BackupMetadata
	checksums := make(map[string]string)

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read backup: %w", err)
		}

		if header.Name == metadataFilename {
			metadata = &BackupMetadata{}
			if err := json.NewDecoder(tr).Decode(metadata); err != nil {
				return nil, fmt.Errorf("invalid backup metadata: %w", err)
			}
			continue
		}

		hash := sha256.New()
		if _, err := io.Copy(hash, tr); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		checksums[header.Name] = "sha256:" + hex.EncodeToString(hash.Sum(nil))
	}

	if metadata == nil {
		return nil, fmt.Errorf("backup %s has no metadata", filename)
	}
	for _, db := range metadata.Databases {
		got, ok := checksums[db.Filename]
		if !ok {
			return nil, fmt.Errorf("backup %s is missing %s", filename, db.Filename)
		}
		if got != db.Checksum {
			return nil, fmt.Errorf("checksum mismatch for %s in %s", db.Filename, filename)
		}
	}

	return metadata, nil
}

// parseBackupName extracts the timestamp from
// harvest-backup-2026-01-08-143022-1a2b3c4d.tar.gz
func parseBackupName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	if len(rest) < len(backupTimestampLayout) {
		return time.Time{}, false
	}
	ts, err := time.Parse(backupTimestampLayout, rest[:len(backupTimestampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func sortNewestFirst(backups []BackupInfo) {
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].Filename > backups[j].Filename
	})
}

// fileChecksum calculates the SHA256 checksum of a file
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return "sha256:" + hex.EncodeToString(hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive writes the named files of sourceDir into a tar.gz archive
func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}
	return archiveFile.Sync()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}

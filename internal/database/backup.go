package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storebridge/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// Snapshot files are named storebridge_<timestamp>.db; cleanup only
// ever touches files carrying this prefix so a shared backup directory
// stays safe.
const snapshotPrefix = "storebridge_"

// BackupService periodically snapshots the sqlite database holding
// tenants, sync runs and the event queue. Snapshots are taken online
// via VACUUM INTO; losing one is an inconvenience, not data loss, so
// every failure here is logged and the next tick tries again.
type BackupService struct {
	dbPath string
	cfg    config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{dbPath: dbPath, cfg: cfg, logger: logger}
}

// Start snapshots once immediately, then on every tick until ctx ends.
func (s *BackupService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("backup: disabled")
		return
	}

	interval := s.interval()
	s.logger.Info().Dur("interval", interval).Str("path", s.cfg.StoragePath).Msg("backup: service started")

	if err := s.Snapshot(); err != nil {
		s.logger.Error().Err(err).Msg("backup: initial snapshot failed")
	}
	s.Prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Snapshot(); err != nil {
				s.logger.Error().Err(err).Msg("backup: scheduled snapshot failed")
			}
			s.Prune()
		}
	}
}

func (s *BackupService) interval() time.Duration {
	if s.cfg.Schedule == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(s.cfg.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Str("schedule", s.cfg.Schedule).Msg("backup: unparseable schedule, using 24h")
		return 24 * time.Hour
	}
	return d
}

// Snapshot writes one timestamped copy of the live database.
// VACUUM INTO gives a consistent online copy;
// when it is unavailable (old sqlite) a plain file copy is attempted.
func (s *BackupService) Snapshot() error {
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	target := filepath.Join(s.cfg.StoragePath, s.snapshotName(time.Now()))

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("open live database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", target)); err != nil {
		s.logger.Warn().Err(err).Msg("backup: VACUUM INTO failed, copying file instead")
		if copyErr := s.copySnapshot(target); copyErr != nil {
			return copyErr
		}
	}

	s.logger.Info().Str("snapshot", target).Msg("backup: snapshot written")
	return nil
}

func (s *BackupService) snapshotName(now time.Time) string {
	return fmt.Sprintf("%s%s.db", snapshotPrefix, now.Format("20060102_150405"))
}

// copySnapshot copies the raw database file. Written to a temp name
// first so a crash mid-copy never leaves a plausible-looking snapshot.
// Concurrent writers can still tear the copy; VACUUM INTO is the safe
// path and this is only the fallback.
func (s *BackupService) copySnapshot(target string) error {
	source, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open live database file: %w", err)
	}
	defer source.Close()

	tmp := target + ".tmp"
	destination, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}

	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy database: %w", err)
	}
	if err := destination.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("flush snapshot file: %w", err)
	}

	return os.Rename(tmp, target)
}

// Prune removes snapshots older than the retention window. Only files
// this service named are considered; anything else in the directory is
// left alone.
func (s *BackupService) Prune() {
	if s.cfg.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup: read snapshot directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)

	for _, entry := range entries {
		if entry.IsDir() || !s.ownsFile(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.cfg.StoragePath, entry.Name())); err != nil {
			s.logger.Error().Err(err).Str("snapshot", entry.Name()).Msg("backup: prune failed")
			continue
		}
		s.logger.Info().Str("snapshot", entry.Name()).Msg("backup: pruned expired snapshot")
	}
}

func (s *BackupService) ownsFile(name string) bool {
	return strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, ".db")
}

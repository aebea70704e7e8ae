// Package backup snapshots the SQLite database before destructive operations
// and on request, keeping a bounded number of copies next to the database.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/keepup/internal/constants"
	"github.com/julianstephens/keepup/internal/logger"
)

const (
	// MaxBackups is the number of snapshots kept by rotation
	MaxBackups = 14
	DirName    = "backups"
	filePrefix = constants.AppName + "-"
	fileSuffix = ".db"
	stampFmt   = "20060102-150405"
)

// ErrNoDatabase is returned when there is no database file to back up
var ErrNoDatabase = errors.New("database does not exist")

// Info describes one snapshot
type Info struct {
	Path    string
	Created time.Time
	Size    int64
}

// Manager creates, lists and restores snapshots of one database file
type Manager struct {
	dbPath string
	dir    string
	now    func() time.Time
}

func NewManager(dbPath string) *Manager {
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		now:    time.Now,
	}
}

// Dir returns the snapshot directory
func (m *Manager) Dir() string {
	return m.dir
}

// Create snapshots the database and rotates old snapshots
func (m *Manager) Create(ctx context.Context) (Info, error) {
	info, err := m.create(ctx)
	if err != nil {
		return Info{}, err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate old backups", "error", err)
	}
	logger.Info("Database backed up", "path", info.Path, "size", info.Size)
	return info, nil
}

func (m *Manager) create(ctx context.Context) (Info, error) {
	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return Info{}, fmt.Errorf("%w: %s", ErrNoDatabase, m.dbPath)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return Info{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	created := m.now().UTC()
	path, err := m.freeName(created)
	if err != nil {
		return Info{}, err
	}

	if err := vacuumInto(ctx, m.dbPath, path); err != nil {
		return Info{}, fmt.Errorf("failed to back up database: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	return Info{Path: path, Created: created, Size: st.Size()}, nil
}

// freeName picks an unused file name for a snapshot taken at t
func (m *Manager) freeName(t time.Time) (string, error) {
	base := filePrefix + t.Format(stampFmt)
	path := filepath.Join(m.dir, base+fileSuffix)
	for n := 1; n <= 100; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s-%d%s", base, n, fileSuffix))
	}
	return "", fmt.Errorf("failed to generate unique backup filename")
}

// vacuumInto writes a consistent copy of src to dst. It is safe while
// another connection holds the database in WAL mode.
func vacuumInto(ctx context.Context, src, dst string) error {
	db, err := sql.Open("sqlite", src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	if err := checkDatabase(ctx, db); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return err
	}
	return nil
}

func checkDatabase(ctx context.Context, db *sql.DB) error {
	var count int
	return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&count)
}

// List returns the snapshots, newest first. Unrecognized files are ignored.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		created, ok := parseName(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}
		st, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:    filepath.Join(m.dir, entry.Name()),
			Created: created,
			Size:    st.Size(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Path > backups[j].Path
		}
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

// parseName extracts the timestamp from keepup-YYYYMMDD-HHMMSS[-N].db
func parseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(stamp) > len(stampFmt) {
		stamp = stamp[:len(stampFmt)]
	}
	t, err := time.Parse(stampFmt, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (m *Manager) rotate() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// Restore replaces the database with the snapshot at path. The current
// database is snapshotted first and returned. The store must be closed.
func (m *Manager) Restore(ctx context.Context, path string) (Info, error) {
	if err := verify(ctx, path); err != nil {
		return Info{}, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var current Info
	if _, err := os.Stat(m.dbPath); err == nil {
		// Not rotated, so the snapshot being restored cannot be removed
		if current, err = m.create(ctx); err != nil {
			return Info{}, fmt.Errorf("failed to back up current database before restore: %w", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return Info{}, fmt.Errorf("failed to copy backup file: %w", err)
	}
	for _, stale := range []string{m.dbPath + "-wal", m.dbPath + "-shm"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			_ = os.Remove(tmp)
			return Info{}, fmt.Errorf("failed to remove %s: %w", stale, err)
		}
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		_ = os.Remove(tmp)
		return Info{}, fmt.Errorf("failed to restore database: %w", err)
	}

	logger.Info("Database restored", "from", path)
	return current, nil
}

func verify(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	return checkDatabase(ctx, db)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

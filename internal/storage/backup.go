package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrBackupNotFound is returned when no backup exists for a suffix.
var ErrBackupNotFound = errors.New("backup not found")

// BackupInfo describes a found backup file of the database.
type BackupInfo struct {
	Path    string
	Suffix  string
	ModTime time.Time
	Size    int64
}

// BackupSuffix formats t the way backup file names carry it.
func BackupSuffix(t time.Time) string { return t.Format("20060102-150405.000") }

func backupPath(dbPath, suffix string) string { return dbPath + ".bak-" + suffix }

// Backup writes a consistent copy of the open database to <db>.bak-<suffix>.
func (d *DB) Backup(suffix string) (string, error) {
	dst := backupPath(d.path, suffix)
	if _, err := d.db.Exec("VACUUM INTO ?", dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", d.path, err)
	}
	if d.debug { log.Printf("[storage] backup written: %s", dst) }
	return dst, nil
}

// ListBackups returns all <db>.bak-* files next to dbPath sorted by ModTime desc.
func ListBackups(dbPath string) ([]BackupInfo, error) {
	dir := filepath.Dir(dbPath)
	prefix := filepath.Base(dbPath) + ".bak-"
	entries, err := os.ReadDir(dir)
	if err != nil { return nil, err }
	var out []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() { continue }
		if !strings.HasPrefix(name, prefix) { continue }
		info, err := e.Info()
		if err != nil { continue }
		out = append(out, BackupInfo{
			Path:    filepath.Join(dir, name),
			Suffix:  strings.TrimPrefix(name, prefix),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) { return out[i].Suffix > out[j].Suffix }
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// RestoreFromBackup replaces the database at dbPath with the backup carrying suffix.
// The database must not be open. Stale WAL files are removed so they cannot replay.
func RestoreFromBackup(dbPath, suffix string, debug bool) error {
	src := backupPath(dbPath, suffix)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, src)
	}
	if err := copyFile(src, dbPath); err != nil {
		return fmt.Errorf("restore %s: %w", dbPath, err)
	}
	for _, side := range []string{dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(side); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", side, err)
		}
	}
	if debug { log.Printf("[restore] restored %s from suffix %s", dbPath, suffix) }
	return nil
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil { return err }
	tmp := dst + ".tmp-" + time.Now().Format("20060102-150405")
	if err := os.WriteFile(tmp, b, 0o600); err != nil { return err }
	return os.Rename(tmp, dst)
}

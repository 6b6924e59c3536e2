package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"todo-man/internal/tasks"
)

func TestDBGetPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "todo.db")
	db, err := Open(path, false)
	if err != nil { t.Fatalf("open: %v", err) }
	defer db.Close()
	if db.Path() != path { t.Fatalf("path = %q, want %q", db.Path(), path) }

	if _, ok, err := db.Get("tasks"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := db.Put("tasks", []byte(`[]`)); err != nil { t.Fatalf("put: %v", err) }
	if err := db.Put("tasks", []byte(`[1]`)); err != nil { t.Fatalf("overwrite: %v", err) }
	v, ok, err := db.Get("tasks")
	if err != nil || !ok || string(v) != "[1]" { t.Fatalf("got %q ok=%v err=%v", v, ok, err) }
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.db")
	db, err := Open(path, false)
	if err != nil { t.Fatal(err) }
	s := tasks.NewStore(tasks.NewSlotPersister(db, ""))
	if _, err := s.Load(); err != nil { t.Fatal(err) }
	ch, err := s.Add("Buy milk")
	if err != nil { t.Fatal(err) }
	if _, err := s.Toggle(ch.Task.ID); err != nil { t.Fatal(err) }
	if _, err := s.Add("Walk dog"); err != nil { t.Fatal(err) }
	want := s.Tasks()
	if err := db.Close(); err != nil { t.Fatal(err) }

	db2, err := Open(path, false)
	if err != nil { t.Fatal(err) }
	defer db2.Close()
	s2 := tasks.NewStore(tasks.NewSlotPersister(db2, ""))
	if _, err := s2.Load(); err != nil { t.Fatal(err) }
	got := s2.Tasks()
	if len(got) != len(want) { t.Fatalf("expected %d tasks, got %d", len(want), len(got)) }
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Text != want[i].Text || got[i].Completed != want[i].Completed {
			t.Fatalf("task %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	if s2.Stats() != (tasks.Stats{Total: 2, Pending: 1, Completed: 1}) { t.Fatalf("unexpected stats %+v", s2.Stats()) }
}

func TestCorruptValueInDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "todo.db"), false)
	if err != nil { t.Fatal(err) }
	defer db.Close()
	if err := db.Put("tasks", []byte(`[{"id":"nope"}]`)); err != nil { t.Fatal(err) }
	s := tasks.NewStore(tasks.NewSlotPersister(db, "tasks"))
	if _, err := s.Load(); !errors.Is(err, tasks.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestBackupListRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.db")
	db, err := Open(path, false)
	if err != nil { t.Fatal(err) }
	if err := db.Put("tasks", []byte("before")); err != nil { t.Fatal(err) }
	older := BackupSuffix(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := BackupSuffix(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if _, err := db.Backup(older); err != nil { t.Fatalf("backup: %v", err) }
	bak, err := db.Backup(newer)
	if err != nil { t.Fatalf("backup: %v", err) }
	if _, err := os.Stat(bak); err != nil { t.Fatalf("backup file missing: %v", err) }
	// Make ordering independent of file system timestamp resolution
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(backupPath(path, older), past, past); err != nil { t.Fatal(err) }

	if err := db.Put("tasks", []byte("after")); err != nil { t.Fatal(err) }
	if err := db.Close(); err != nil { t.Fatal(err) }

	infos, err := ListBackups(path)
	if err != nil { t.Fatal(err) }
	if len(infos) != 2 { t.Fatalf("expected 2 backups, got %d", len(infos)) }
	if infos[0].Suffix != newer || infos[1].Suffix != older {
		t.Fatalf("expected newest first, got %s, %s", infos[0].Suffix, infos[1].Suffix)
	}

	if err := RestoreFromBackup(path, newer, false); err != nil { t.Fatalf("restore: %v", err) }
	db2, err := Open(path, false)
	if err != nil { t.Fatal(err) }
	defer db2.Close()
	v, ok, err := db2.Get("tasks")
	if err != nil || !ok || string(v) != "before" { t.Fatalf("expected restored value, got %q ok=%v err=%v", v, ok, err) }

	if err := RestoreFromBackup(path, "missing", false); !errors.Is(err, ErrBackupNotFound) {
		t.Fatalf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestMemorySlotCopies(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	if err := m.Put("k", buf); err != nil { t.Fatal(err) }
	buf[0] = 'z'
	v, ok, err := m.Get("k")
	if err != nil || !ok || string(v) != "abc" { t.Fatalf("got %q ok=%v err=%v", v, ok, err) }
	if _, ok, _ := m.Get("other"); ok { t.Fatal("absent key reported present") }
}

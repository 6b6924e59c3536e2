package zipper

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"todo-man/internal/tasks"
)

func TestExportImport(t *testing.T) {
	root := t.TempDir()
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	list := []tasks.Task{
		{ID: 1709285400000, Text: "Buy milk", CreatedAt: created},
		{ID: 1709285400001, Text: "Walk dog", Completed: true, CreatedAt: created.Add(time.Millisecond)},
	}

	zipPath := filepath.Join(root, "out", "todo.zip")
	if err := ExportTasks(list, zipPath); err != nil { t.Fatalf("export: %v", err) }

	// Sanity check zip has manifest and task list
	zr, err := zip.OpenReader(zipPath)
	if err != nil { t.Fatal(err) }
	names := map[string]bool{}
	for _, f := range zr.File { names[f.Name] = true }
	zr.Close()
	if !names[ManifestName] || !names[TasksName] { t.Fatalf("unexpected zip contents: %v", names) }

	got, m, err := ImportTasks(zipPath)
	if err != nil { t.Fatalf("import: %v", err) }
	if m.Version != ManifestVersion || m.Count != 2 { t.Fatalf("unexpected manifest %+v", m) }
	if m.Stats != (tasks.Stats{Total: 2, Pending: 1, Completed: 1}) { t.Fatalf("unexpected stats %+v", m.Stats) }
	if !reflect.DeepEqual(got, list) { t.Fatalf("round trip mismatch:\n%+v\n%+v", got, list) }
}

func TestImportRejectsMissingManifest(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "bare.zip")
	f, err := os.Create(zipPath)
	if err != nil { t.Fatal(err) }
	zw := zip.NewWriter(f)
	w, _ := zw.Create(TasksName)
	_, _ = w.Write([]byte("[]"))
	zw.Close()
	f.Close()

	if _, _, err := ImportTasks(zipPath); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestImportRejectsCorruptTasks(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "corrupt.zip")
	f, err := os.Create(zipPath)
	if err != nil { t.Fatal(err) }
	zw := zip.NewWriter(f)
	if err := writeJSON(zw, ManifestName, Manifest{Version: 1}); err != nil { t.Fatal(err) }
	w, _ := zw.Create(TasksName)
	_, _ = w.Write([]byte(`[{"id":1}]`))
	zw.Close()
	f.Close()

	if _, _, err := ImportTasks(zipPath); !errors.Is(err, tasks.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestExportFailureLeavesNoPartialFile(t *testing.T) {
	root := t.TempDir()
	// A directory at the target path makes the final rename fail
	target := filepath.Join(root, "todo.zip")
	if err := os.MkdirAll(filepath.Join(target, "keep"), 0o755); err != nil { t.Fatal(err) }

	list := []tasks.Task{{ID: 1, Text: "a", CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}}
	if err := ExportTasks(list, target); err == nil { t.Fatal("expected export onto a directory to fail") }

	entries, err := os.ReadDir(root)
	if err != nil { t.Fatal(err) }
	if len(entries) != 1 || entries[0].Name() != "todo.zip" || !entries[0].IsDir() {
		names := []string{}
		for _, e := range entries { names = append(names, e.Name()) }
		t.Fatalf("temp file left behind: %v", names)
	}
}

func TestExportReplacesExistingArchive(t *testing.T) {
	root := t.TempDir()
	zipPath := filepath.Join(root, "todo.zip")
	if err := os.WriteFile(zipPath, []byte("stale"), 0o644); err != nil { t.Fatal(err) }
	if err := ExportTasks(nil, zipPath); err != nil { t.Fatalf("export: %v", err) }
	got, m, err := ImportTasks(zipPath)
	if err != nil { t.Fatalf("import: %v", err) }
	if len(got) != 0 || m.Count != 0 { t.Fatalf("expected empty archive, got %d tasks, manifest %+v", len(got), m) }
	if entries, _ := os.ReadDir(root); len(entries) != 1 { t.Fatalf("expected only the archive in %s, got %d entries", root, len(entries)) }
}

package zipper

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todo-man/internal/config"
	"todo-man/internal/tasks"
)

const (
	ManifestName = "todo-manifest.json"
	TasksName    = "tasks.json"

	// ManifestVersion is written into new archives; older versions are still read.
	ManifestVersion = 1
)

var ErrNoManifest = errors.New("manifest missing")

type Manifest struct {
	Version    int         `json:"version"`
	ExportedAt time.Time   `json:"exportedAt"`
	Count      int         `json:"count"`
	Stats      tasks.Stats `json:"stats"`
}

// ExportTasks writes list into a zip at zipPath: a manifest plus tasks.json
// holding the same JSON array the store persists.
// The archive is built in a temp file next to zipPath and renamed into place;
// on failure nothing is left at zipPath.
func ExportTasks(list []tasks.Task, zipPath string) error {
	if err := config.EnsureDir(filepath.Dir(zipPath)); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(zipPath), filepath.Base(zipPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := writeArchive(f, list); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, zipPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func writeArchive(out io.Writer, list []tasks.Task) error {
	zw := zip.NewWriter(out)
	m := Manifest{Version: ManifestVersion, ExportedAt: time.Now().UTC(), Count: len(list), Stats: tasks.ComputeStats(list)}
	if err := writeJSON(zw, ManifestName, m); err != nil {
		return err
	}
	b, err := tasks.Encode(list)
	if err != nil {
		return err
	}
	w, err := zw.Create(TasksName)
	if err != nil { return err }
	if _, err := w.Write(b); err != nil { return err }
	return zw.Close()
}

// ImportTasks reads an archive written by ExportTasks. The task list is
// validated the same way persisted state is.
func ImportTasks(zipPath string) ([]tasks.Task, Manifest, error) {
	var m Manifest
	r, err := zip.OpenReader(zipPath)
	if err != nil { return nil, m, err }
	defer r.Close()

	var manifestFile, tasksFile *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() { continue }
		switch {
		case strings.EqualFold(filepath.Base(f.Name), ManifestName):
			manifestFile = f
		case strings.EqualFold(filepath.Base(f.Name), TasksName):
			tasksFile = f
		}
	}
	if manifestFile == nil {
		return nil, m, fmt.Errorf("%w in %s", ErrNoManifest, zipPath)
	}
	b, err := readFile(manifestFile)
	if err != nil { return nil, m, err }
	if err := json.Unmarshal(b, &m); err != nil || m.Version < 1 {
		return nil, m, fmt.Errorf("invalid manifest in %s", zipPath)
	}
	if m.Version > ManifestVersion {
		return nil, m, fmt.Errorf("archive version %d is newer than supported %d", m.Version, ManifestVersion)
	}
	if tasksFile == nil {
		return nil, m, fmt.Errorf("%s missing in %s", TasksName, zipPath)
	}
	b, err = readFile(tasksFile)
	if err != nil { return nil, m, err }
	list, err := tasks.Decode(b)
	if err != nil {
		return nil, m, fmt.Errorf("%s: %w", zipPath, err)
	}
	return list, m, nil
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	w, err := zw.Create(name)
	if err != nil { return err }
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil { return err }
	_, err = w.Write(b)
	return err
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil { return nil, err }
	defer rc.Close()
	return io.ReadAll(rc)
}

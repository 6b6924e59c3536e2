package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

type Config struct {
	DBPath        string `json:"dbPath"`        // SQLite file holding the task slot
	StorageKey    string `json:"storageKey"`    // key of the task list inside ItemTable
	HooksDir      string `json:"hooksDir"`
	ExportDir     string `json:"exportDir"`     // default destination for zip and markdown exports
	BackupOnClear bool   `json:"backupOnClear"` // back up the database before "clear all"
	Debug         bool   `json:"debug"`
}

func Default() Config {
	return Config{
		DBPath:     filepath.Join(UserHome(), ".config", "todo-man", "todo.db"),
		StorageKey: "tasks",
		HooksDir:   filepath.Join(UserHome(), ".config", "todo-man", "hooks"),
		// CWD by default; app will fallback to "." when empty
		ExportDir:     "",
		BackupOnClear: true,
		Debug:         false,
	}
}

// DefaultPath is where the config file lives unless --config says otherwise.
func DefaultPath() string {
	return filepath.Join(UserHome(), ".config", "todo-man.json")
}

// Load reads path over the values already in out. Fields missing from the
// file, and string fields set to "", keep the value from out.
func Load(path string, out *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c := *out
	if err := json.Unmarshal(b, &c); err != nil {
		return err
	}
	if c.DBPath == "" {
		c.DBPath = out.DBPath
	}
	if c.StorageKey == "" {
		c.StorageKey = out.StorageKey
	}
	if c.HooksDir == "" {
		c.HooksDir = out.HooksDir
	}
	*out = c
	return nil
}

func Save(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func UserHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	if runtime.GOOS == "windows" {
		if h := os.Getenv("USERPROFILE"); h != "" {
			return h
		}
	}
	return "."
}

func EnsureDir(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// ExportDirOrCWD returns ExportDir, or "." when it is unset.
func (c Config) ExportDirOrCWD() string {
	if c.ExportDir == "" {
		return "."
	}
	return c.ExportDir
}

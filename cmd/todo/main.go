package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"todo-man/internal/config"
	"todo-man/internal/hooks"
	"todo-man/internal/storage"
	"todo-man/internal/tasks"
	"todo-man/internal/tui"
	"todo-man/internal/version"
	"todo-man/internal/zipper"
)

// multiFlag collects every occurrence of a repeatable string flag.
type multiFlag []string

func (f *multiFlag) String() string     { return strings.Join(*f, ", ") }
func (f *multiFlag) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	// Flags
	var (
		cfgPath        string
		dbPath         string
		storageKey     string
		hooksDir       string
		exportDir      string
		adds           multiFlag
		toggleID       int64
		deleteID       int64
		clearCompleted bool
		clearAll       bool
		listOnly       bool
		statsOnly      bool
		exportZip      string
		importZip      string
		inspectZip     string
		dumpMD         string
		restore        bool
		debug          bool
		showVersion    bool
	)

	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	flag.StringVar(&dbPath, "db", "", "task database file (overrides config)")
	flag.StringVar(&storageKey, "key", "", "storage key holding the task list (overrides config)")
	flag.StringVar(&hooksDir, "hooks-dir", "", "directory containing JS hook files")
	flag.StringVar(&exportDir, "export-dir", "", "default export directory for TUI exports")
	flag.Var(&adds, "add", "batch: add a task (repeatable)")
	flag.Int64Var(&toggleID, "toggle", 0, "batch: toggle completion of the task with this id")
	flag.Int64Var(&deleteID, "delete", 0, "batch: delete the task with this id")
	flag.BoolVar(&clearCompleted, "clear-completed", false, "batch: remove completed tasks")
	flag.BoolVar(&clearAll, "clear-all", false, "batch: remove all tasks")
	flag.BoolVar(&listOnly, "list", false, "print tasks and exit")
	flag.BoolVar(&statsOnly, "stats", false, "print total/pending/completed and exit")
	flag.StringVar(&exportZip, "export", "", "batch export to a zip archive")
	flag.StringVar(&importZip, "import", "", "batch import from a zip archive")
	flag.StringVar(&inspectZip, "inspect", "", "open a zip archive in the TUI without touching the database")
	flag.StringVar(&dumpMD, "dump", "", "write the task list as markdown to this file")
	flag.BoolVar(&restore, "restore", false, "pick a database backup to restore")
	flag.BoolVar(&debug, "debug", false, "print debug info (paths, counts)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String())
		return
	}

	// Load config
	cfg := config.Default()
	if err := config.Load(cfgPath, &cfg); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to load config: %v", err)
	}
	// Merge overrides
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if storageKey != "" {
		cfg.StorageKey = storageKey
	}
	if hooksDir != "" {
		cfg.HooksDir = hooksDir
	}
	if exportDir != "" {
		cfg.ExportDir = exportDir
	}
	if debug {
		cfg.Debug = true
	}

	hooks.EnableDebug(cfg.Debug)

	if restore {
		runRestore(cfg)
		return
	}

	// Inspect mode keeps the archive in memory; nothing is written to disk
	var slot tasks.Slot
	var db *storage.DB
	if inspectZip != "" {
		list, _, err := zipper.ImportTasks(inspectZip)
		if err != nil { log.Fatalf("inspect failed: %v", err) }
		mem := storage.NewMemory()
		if err := tasks.NewSlotPersister(mem, cfg.StorageKey).Save(list); err != nil { log.Fatalf("inspect failed: %v", err) }
		slot = mem
	} else {
		var err error
		db, err = storage.Open(cfg.DBPath, cfg.Debug)
		if err != nil { log.Fatalf("open database: %v", err) }
		defer db.Close()
		slot = db
	}

	store := tasks.NewStore(tasks.NewSlotPersister(slot, cfg.StorageKey), tasks.WithDebug(cfg.Debug))
	if _, err := store.Load(); err != nil {
		if errors.Is(err, tasks.ErrCorruptState) {
			log.Fatalf("%v (run with --restore to roll back to a backup)", err)
		}
		log.Fatalf("failed to load tasks: %v", err)
	}
	if cfg.Debug {
		src := inspectZip
		if db != nil { src = db.Path() }
		log.Printf("source: %s key: %s tasks: %d", src, cfg.StorageKey, store.Stats().Total)
		store.Observe(logChange)
	}

	// Batch operations
	batch := len(adds) > 0 || toggleID != 0 || deleteID != 0 || clearCompleted || clearAll ||
		exportZip != "" || importZip != "" || dumpMD != "" || listOnly || statsOnly
	if batch {
		if err := runBatch(store, db, cfg, batchOps{
			adds: adds, toggle: toggleID, delete: deleteID,
			clearCompleted: clearCompleted, clearAll: clearAll,
			importZip: importZip, exportZip: exportZip, dumpMD: dumpMD,
		}, os.Stdout); err != nil {
			os.Exit(reportError(os.Stderr, err))
		}
		if listOnly { printList(os.Stdout, store.Tasks()) }
		printStats(os.Stdout, store.Stats())
		return
	}

	if !(term.IsTerminal(int(os.Stdin.Fd())) || term.IsTerminal(int(os.Stdout.Fd()))) {
		printList(os.Stdout, store.Tasks())
		printStats(os.Stdout, store.Stats())
		return
	}

	if cfg.Debug {
		f, err := tea.LogToFile("todo-man-debug.log", "debug")
		if err != nil { log.Fatalf("log file: %v", err) }
		defer f.Close()
	}
	var backup tui.Backuper
	if db != nil {
		backup = db
	}
	p := tea.NewProgram(tui.New(cfg, store, backup), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

type batchOps struct {
	adds           []string
	toggle         int64
	delete         int64
	clearCompleted bool
	clearAll       bool
	importZip      string
	exportZip      string
	dumpMD         string
}

// runBatch applies the requested operations in a fixed order: import, add,
// toggle, delete, clear completed, clear all, then export and dump.
func runBatch(store *tasks.Store, db *storage.DB, cfg config.Config, ops batchOps, out io.Writer) error {
	if ops.importZip != "" {
		list, m, err := zipper.ImportTasks(ops.importZip)
		if err != nil { return fmt.Errorf("import failed: %w", err) }
		n, _, err := store.Import(list)
		if err != nil { return err }
		fmt.Fprintf(out, "imported %d of %d tasks from %s (exported %s)\n", n, len(list), ops.importZip, m.ExportedAt.Local().Format("2006-01-02 15:04"))
	}

	var cmds []tasks.Command
	if len(ops.adds) > 0 {
		env, _ := hooks.LoadDir(cfg.HooksDir)
		for _, raw := range ops.adds {
			text, err := tasks.ValidateText(raw)
			if err != nil { return err }
			cmds = append(cmds, tasks.Command{Op: tasks.OpAdd, Text: env.TransformText(text)})
		}
	}
	if ops.toggle != 0 {
		cmds = append(cmds, tasks.Command{Op: tasks.OpToggle, ID: ops.toggle})
	}
	if ops.delete != 0 {
		cmds = append(cmds, tasks.Command{Op: tasks.OpDelete, ID: ops.delete})
	}
	if ops.clearCompleted {
		cmds = append(cmds, tasks.Command{Op: tasks.OpClearCompleted})
	}
	if ops.clearAll {
		if db != nil && cfg.BackupOnClear && store.Stats().Total > 0 {
			p, err := db.Backup(storage.BackupSuffix(time.Now()))
			if err != nil { return err }
			fmt.Fprintf(out, "backup: %s\n", p)
		}
		cmds = append(cmds, tasks.Command{Op: tasks.OpClearAll})
	}
	for _, c := range cmds {
		ch, err := store.Dispatch(c)
		if err != nil { return fmt.Errorf("%s: %w", c.Op, err) }
		switch {
		case c.Op == tasks.OpAdd:
			fmt.Fprintf(out, "added %d\t%s\n", ch.Task.ID, ch.Task.Text)
		case ch.Kind == tasks.ChangeNone:
			fmt.Fprintf(out, "%s: nothing to do\n", c.Op)
		default:
			fmt.Fprintf(out, "%s: ok\n", c.Op)
		}
	}

	if ops.exportZip != "" {
		if err := zipper.ExportTasks(store.Tasks(), ops.exportZip); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintf(out, "exported %d tasks -> %s\n", store.Stats().Total, ops.exportZip)
	}
	if ops.dumpMD != "" {
		if err := tasks.DumpMarkdown(ops.dumpMD, store.Tasks()); err != nil {
			return fmt.Errorf("dump failed: %w", err)
		}
		fmt.Fprintf(out, "markdown -> %s\n", ops.dumpMD)
	}
	return nil
}

func runRestore(cfg config.Config) {
	infos, err := storage.ListBackups(cfg.DBPath)
	if err != nil { log.Fatalf("list backups: %v", err) }
	if len(infos) == 0 {
		fmt.Printf("no backups found next to %s\n", cfg.DBPath)
		return
	}
	final, err := tea.NewProgram(tui.NewRestore(infos, cfg.DBPath)).Run()
	if err != nil { log.Fatalf("tui error: %v", err) }
	suffix := final.(tui.RestoreModel).Selected()
	if suffix == "" { return }
	if err := storage.RestoreFromBackup(cfg.DBPath, suffix, cfg.Debug); err != nil {
		log.Fatalf("restore failed: %v", err)
	}
	fmt.Printf("restored %s from backup %s\n", cfg.DBPath, suffix)
}

// reportError prints err the way batch failures are shown and returns the exit code.
func reportError(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}

func logChange(c tasks.Change) {
	log.Printf("[store] %s id=%d total=%d pending=%d completed=%d", c.Op, c.ID, c.Stats.Total, c.Stats.Pending, c.Stats.Completed)
}

func printList(w io.Writer, list []tasks.Task) {
	for _, t := range list {
		box := " "
		if t.Completed { box = "x" }
		text, _, _ := tasks.CleanOneLine(t.Text, 0)
		fmt.Fprintf(w, "%d\t[%s]\t%s\n", t.ID, box, text)
	}
}

func printStats(w io.Writer, st tasks.Stats) {
	fmt.Fprintf(w, "%d tasks (%d pending, %d completed)\n", st.Total, st.Pending, st.Completed)
}

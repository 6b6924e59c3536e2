package tasks

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrUnknownOp is returned by Dispatch for a command it has no handler for.
var ErrUnknownOp = errors.New("unknown command")

// Persister loads and saves the whole task sequence.
type Persister interface {
	Load() ([]Task, error)
	Save([]Task) error
}

// Op names a store command.
type Op int

const (
	OpAdd Op = iota + 1
	OpToggle
	OpDelete
	OpClearCompleted
	OpClearAll
	OpImport
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpToggle:
		return "toggle"
	case OpDelete:
		return "delete"
	case OpClearCompleted:
		return "clear-completed"
	case OpClearAll:
		return "clear-all"
	case OpImport:
		return "import"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Command is a request to mutate the store. Text is read by OpAdd, ID by
// OpToggle and OpDelete, Tasks by OpImport.
type Command struct {
	Op    Op
	Text  string
	ID    int64
	Tasks []Task
}

// ChangeKind tells the view how much of itself to update.
type ChangeKind int

const (
	// ChangeNone means nothing changed and nothing was written.
	ChangeNone ChangeKind = iota
	// ChangeAppend carries one new task to append as a row.
	ChangeAppend
	// ChangeStats means one row changed in place (toggle) or went away (delete).
	ChangeStats
	// ChangeRedraw carries the full sequence to redraw from scratch.
	ChangeRedraw
)

// Change describes the outcome of a store operation.
type Change struct {
	Kind  ChangeKind
	Op    Op
	ID    int64
	Task  Task
	Tasks []Task
	Stats Stats
}

// Store owns the ordered task sequence and writes it back after every mutation.
// It is not safe for concurrent use; callers drive it from a single goroutine.
type Store struct {
	persist   Persister
	tasks     []Task
	now       func() time.Time
	observers []func(Change)
	debug     bool
}

type Option func(*Store)

// WithClock replaces time.Now for id and timestamp generation.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithDebug enables per-operation logging.
func WithDebug(debug bool) Option { return func(s *Store) { s.debug = debug } }

func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{persist: p, tasks: []Task{}, now: time.Now}
	for _, o := range opts { o(s) }
	return s
}

// Observe registers fn to be called after every persisted change.
func (s *Store) Observe(fn func(Change)) { s.observers = append(s.observers, fn) }

// Load replaces the sequence with what the persister holds.
func (s *Store) Load() (Change, error) {
	list, err := s.persist.Load()
	if err != nil {
		return Change{}, fmt.Errorf("load tasks: %w", err)
	}
	if list == nil { list = []Task{} }
	s.tasks = list
	if s.debug { log.Printf("[store] loaded %d tasks", len(list)) }
	return Change{Kind: ChangeRedraw, Tasks: s.Tasks(), Stats: s.Stats()}, nil
}

// Tasks returns a copy of the sequence in display order.
func (s *Store) Tasks() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) Stats() Stats { return ComputeStats(s.tasks) }

func (s *Store) Find(id int64) (Task, bool) {
	for _, t := range s.tasks {
		if t.ID == id { return t, true }
	}
	return Task{}, false
}

// Dispatch routes cmd to its handler.
func (s *Store) Dispatch(cmd Command) (Change, error) {
	switch cmd.Op {
	case OpAdd:
		return s.Add(cmd.Text)
	case OpToggle:
		return s.Toggle(cmd.ID)
	case OpDelete:
		return s.Delete(cmd.ID)
	case OpClearCompleted:
		return s.ClearCompleted()
	case OpClearAll:
		return s.ClearAll()
	case OpImport:
		_, ch, err := s.Import(cmd.Tasks)
		return ch, err
	}
	return Change{}, fmt.Errorf("%w: %s", ErrUnknownOp, cmd.Op)
}

// Add appends a new pending task. Blank text is ignored; use ValidateText first.
func (s *Store) Add(text string) (Change, error) {
	text, err := ValidateText(text)
	if err != nil {
		return Change{Op: OpAdd}, nil
	}
	// Persisted timestamps are UTC milliseconds
	now := s.now().UTC().Truncate(time.Millisecond)
	t := Task{ID: s.nextID(now), Text: text, CreatedAt: now}
	s.tasks = append(s.tasks, t)
	return s.commit(Change{Kind: ChangeAppend, Op: OpAdd, ID: t.ID, Task: t})
}

// Toggle flips the completed flag of the task with id. Unknown ids are ignored.
func (s *Store) Toggle(id int64) (Change, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Completed = !s.tasks[i].Completed
			return s.commit(Change{Kind: ChangeStats, Op: OpToggle, ID: id, Task: s.tasks[i]})
		}
	}
	return Change{Op: OpToggle, ID: id}, nil
}

// Delete removes every task with id and always writes the result.
func (s *Store) Delete(id int64) (Change, error) {
	kept := s.tasks[:0:0]
	var removed Task
	for _, t := range s.tasks {
		if t.ID == id {
			removed = t
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	return s.commit(Change{Kind: ChangeStats, Op: OpDelete, ID: id, Task: removed})
}

// ClearCompleted drops completed tasks. It writes only when at least one was dropped.
func (s *Store) ClearCompleted() (Change, error) {
	kept := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.Completed { kept = append(kept, t) }
	}
	if len(kept) == len(s.tasks) {
		return Change{Op: OpClearCompleted}, nil
	}
	s.tasks = kept
	return s.commit(Change{Kind: ChangeRedraw, Op: OpClearCompleted})
}

// ClearAll empties the sequence unless it is already empty.
func (s *Store) ClearAll() (Change, error) {
	if len(s.tasks) == 0 {
		return Change{Op: OpClearAll}, nil
	}
	s.tasks = []Task{}
	return s.commit(Change{Kind: ChangeRedraw, Op: OpClearAll})
}

// Import appends tasks whose ids are not already present and returns how many were added.
func (s *Store) Import(list []Task) (int, Change, error) {
	seen := make(map[int64]struct{}, len(s.tasks))
	for _, t := range s.tasks { seen[t.ID] = struct{}{} }
	added := 0
	for _, t := range list {
		if _, ok := seen[t.ID]; ok { continue }
		if _, err := ValidateText(t.Text); err != nil || t.ID <= 0 { continue }
		seen[t.ID] = struct{}{}
		s.tasks = append(s.tasks, t)
		added++
	}
	if added == 0 {
		return 0, Change{Op: OpImport}, nil
	}
	ch, err := s.commit(Change{Kind: ChangeRedraw, Op: OpImport})
	return added, ch, err
}

// nextID is the creation time in milliseconds, bumped past the largest existing id.
func (s *Store) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	for _, t := range s.tasks {
		if t.ID >= id { id = t.ID + 1 }
	}
	return id
}

// commit persists the sequence and fills in stats. On a save error the
// in-memory sequence keeps the mutation and the change is still returned.
func (s *Store) commit(c Change) (Change, error) {
	c.Stats = s.Stats()
	if c.Kind == ChangeRedraw { c.Tasks = s.Tasks() }
	if err := s.persist.Save(s.tasks); err != nil {
		return c, fmt.Errorf("save tasks: %w", err)
	}
	for _, fn := range s.observers { fn(c) }
	return c, nil
}

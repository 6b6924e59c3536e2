package tasks

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type memSlot struct {
	data   map[string][]byte
	puts   int
	putErr error
}

func newMemSlot() *memSlot { return &memSlot{data: map[string][]byte{}} }

func (m *memSlot) Get(key string) ([]byte, bool, error) {
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memSlot) Put(key string, value []byte) error {
	if m.putErr != nil { return m.putErr }
	m.puts++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// fixedClock returns the same instant on every call.
func fixedClock() func() time.Time {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newTestStore(t *testing.T) (*Store, *memSlot) {
	t.Helper()
	slot := newMemSlot()
	s := NewStore(NewSlotPersister(slot, ""), WithClock(fixedClock()))
	if _, err := s.Load(); err != nil { t.Fatalf("load: %v", err) }
	return s, slot
}

func mustAdd(t *testing.T, s *Store, text string) Task {
	t.Helper()
	ch, err := s.Add(text)
	if err != nil { t.Fatalf("add %q: %v", text, err) }
	if ch.Kind != ChangeAppend { t.Fatalf("add %q: expected ChangeAppend, got %v", text, ch.Kind) }
	return ch.Task
}

func TestAddSingleTask(t *testing.T) {
	s, slot := newTestStore(t)
	ch, err := s.Add("Buy milk")
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeAppend { t.Fatalf("expected append, got %v", ch.Kind) }
	list := s.Tasks()
	if len(list) != 1 { t.Fatalf("expected 1 task, got %d", len(list)) }
	if list[0].Text != "Buy milk" || list[0].Completed {
		t.Fatalf("unexpected task %+v", list[0])
	}
	if ch.Stats != (Stats{Total: 1, Pending: 1, Completed: 0}) {
		t.Fatalf("unexpected stats %+v", ch.Stats)
	}
	if slot.puts != 1 { t.Fatalf("expected 1 write, got %d", slot.puts) }
}

func TestAddTrimsAndIgnoresBlank(t *testing.T) {
	s, slot := newTestStore(t)
	ch, err := s.Add("   \t ")
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeNone { t.Fatalf("blank add should be a no-op, got %v", ch.Kind) }
	if slot.puts != 0 { t.Fatalf("blank add should not write, got %d writes", slot.puts) }

	tk := mustAdd(t, s, "  padded  ")
	if tk.Text != "padded" { t.Fatalf("expected trimmed text, got %q", tk.Text) }
}

func TestAddSameMillisecondGetsDistinctIDs(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, "A")
	b := mustAdd(t, s, "B")
	c := mustAdd(t, s, "C")
	if !(a.ID < b.ID && b.ID < c.ID) {
		t.Fatalf("ids not increasing: %d %d %d", a.ID, b.ID, c.ID)
	}
	if a.ID != fixedClock()().UnixMilli() {
		t.Fatalf("first id should be the creation time in ms, got %d", a.ID)
	}
}

func TestToggle(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, "A")
	mustAdd(t, s, "B")

	ch, err := s.Toggle(a.ID)
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeStats || !ch.Task.Completed {
		t.Fatalf("unexpected change %+v", ch)
	}
	if got := s.Stats(); got != (Stats{Total: 2, Pending: 1, Completed: 1}) {
		t.Fatalf("unexpected stats %+v", got)
	}

	// Two toggles restore the original state
	if _, err := s.Toggle(a.ID); err != nil { t.Fatal(err) }
	got, ok := s.Find(a.ID)
	if !ok || got.Completed { t.Fatalf("expected task back to pending, got %+v", got) }
}

func TestToggleUnknownIDIsNoop(t *testing.T) {
	s, slot := newTestStore(t)
	mustAdd(t, s, "A")
	before := slot.puts
	ch, err := s.Toggle(42)
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeNone { t.Fatalf("expected no change, got %v", ch.Kind) }
	if slot.puts != before { t.Fatal("unknown id should not write") }
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	x := mustAdd(t, s, "X")
	ch, err := s.Delete(x.ID)
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeStats || ch.ID != x.ID { t.Fatalf("unexpected change %+v", ch) }
	if len(s.Tasks()) != 0 || s.Stats().Total != 0 {
		t.Fatalf("expected empty store, got %+v", s.Tasks())
	}
}

func TestDeleteRemovesEveryMatch(t *testing.T) {
	s, _ := newTestStore(t)
	created := fixedClock()()
	s.tasks = []Task{
		{ID: 7, Text: "dup 1", CreatedAt: created},
		{ID: 8, Text: "other", CreatedAt: created},
		{ID: 7, Text: "dup 2", CreatedAt: created},
	}
	if _, err := s.Delete(7); err != nil { t.Fatal(err) }
	list := s.Tasks()
	if len(list) != 1 || list[0].ID != 8 { t.Fatalf("expected only id 8 left, got %+v", list) }
}

func TestClearCompleted(t *testing.T) {
	s, slot := newTestStore(t)
	mustAdd(t, s, "A")
	mustAdd(t, s, "B")

	before := slot.puts
	ch, err := s.ClearCompleted()
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeNone { t.Fatalf("nothing completed: expected no change, got %v", ch.Kind) }
	if len(s.Tasks()) != 2 { t.Fatalf("sequence should be unchanged, got %d tasks", len(s.Tasks())) }
	if slot.puts != before { t.Fatal("no-op clear should not write") }

	list := s.Tasks()
	if _, err := s.Toggle(list[0].ID); err != nil { t.Fatal(err) }
	ch, err = s.ClearCompleted()
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeRedraw { t.Fatalf("expected redraw, got %v", ch.Kind) }
	if ch.Stats.Completed != 0 || s.Stats().Completed != 0 {
		t.Fatalf("completed should be 0 after clear, got %+v", ch.Stats)
	}
	if len(ch.Tasks) != 1 || ch.Tasks[0].Text != "B" { t.Fatalf("unexpected remaining tasks %+v", ch.Tasks) }
}

func TestClearAll(t *testing.T) {
	s, slot := newTestStore(t)
	ch, err := s.ClearAll()
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeNone || slot.puts != 0 { t.Fatalf("clearing an empty list should be a no-op") }

	mustAdd(t, s, "A")
	mustAdd(t, s, "B")
	ch, err = s.ClearAll()
	if err != nil { t.Fatal(err) }
	if ch.Kind != ChangeRedraw || len(ch.Tasks) != 0 { t.Fatalf("unexpected change %+v", ch) }
	if s.Stats().Total != 0 { t.Fatalf("expected total 0, got %d", s.Stats().Total) }
}

func TestTotalTracksAddsAndRemovals(t *testing.T) {
	s, _ := newTestStore(t)
	want := 0
	var ids []int64
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, mustAdd(t, s, text).ID)
		want++
	}
	for _, id := range ids[:2] {
		if _, err := s.Delete(id); err != nil { t.Fatal(err) }
		want--
	}
	if got := s.Stats().Total; got != want { t.Fatalf("total = %d, want %d", got, want) }
	if _, err := s.ClearAll(); err != nil { t.Fatal(err) }
	if got := s.Stats().Total; got != 0 { t.Fatalf("total after clear = %d", got) }
}

func TestDispatch(t *testing.T) {
	s, _ := newTestStore(t)
	ch, err := s.Dispatch(Command{Op: OpAdd, Text: "A"})
	if err != nil || ch.Kind != ChangeAppend { t.Fatalf("add: %+v %v", ch, err) }
	id := ch.Task.ID
	if ch, err = s.Dispatch(Command{Op: OpToggle, ID: id}); err != nil || !ch.Task.Completed {
		t.Fatalf("toggle: %+v %v", ch, err)
	}
	if ch, err = s.Dispatch(Command{Op: OpClearCompleted}); err != nil || ch.Kind != ChangeRedraw {
		t.Fatalf("clear completed: %+v %v", ch, err)
	}
	if ch, err = s.Dispatch(Command{Op: OpClearAll}); err != nil || ch.Kind != ChangeNone {
		t.Fatalf("clear all on empty: %+v %v", ch, err)
	}
	if _, err := s.Dispatch(Command{Op: Op(99)}); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("expected ErrUnknownOp, got %v", err)
	}
}

func TestObserverSeesPersistedChanges(t *testing.T) {
	s, _ := newTestStore(t)
	var kinds []ChangeKind
	s.Observe(func(c Change) { kinds = append(kinds, c.Kind) })
	a := mustAdd(t, s, "A")
	_, _ = s.Toggle(999)
	_, _ = s.Toggle(a.ID)
	_, _ = s.ClearCompleted()
	want := []ChangeKind{ChangeAppend, ChangeStats, ChangeRedraw}
	if !reflect.DeepEqual(kinds, want) { t.Fatalf("observed %v, want %v", kinds, want) }
}

func TestSaveErrorIsReturned(t *testing.T) {
	s, slot := newTestStore(t)
	boom := errors.New("disk full")
	slot.putErr = boom
	ch, err := s.Add("A")
	if !errors.Is(err, boom) { t.Fatalf("expected wrapped save error, got %v", err) }
	// The mutation stays in memory so the view can still show it
	if ch.Kind != ChangeAppend || len(s.Tasks()) != 1 { t.Fatalf("unexpected state after failed save: %+v", ch) }
}

func TestImportSkipsKnownIDs(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustAdd(t, s, "A")
	created := fixedClock()()
	n, ch, err := s.Import([]Task{
		{ID: a.ID, Text: "A again", CreatedAt: created},
		{ID: 5, Text: "imported", Completed: true, CreatedAt: created},
		{ID: 6, Text: "  ", CreatedAt: created},
	})
	if err != nil { t.Fatal(err) }
	if n != 1 { t.Fatalf("expected 1 imported, got %d", n) }
	if ch.Kind != ChangeRedraw || len(ch.Tasks) != 2 { t.Fatalf("unexpected change %+v", ch) }
	if ch.Stats != (Stats{Total: 2, Pending: 1, Completed: 1}) { t.Fatalf("unexpected stats %+v", ch.Stats) }
}

func TestLoadSaveRoundTrip(t *testing.T) {
	s, slot := newTestStore(t)
	a := mustAdd(t, s, "first")
	mustAdd(t, s, "second")
	if _, err := s.Toggle(a.ID); err != nil { t.Fatal(err) }

	p := NewSlotPersister(slot, "")
	loaded, err := p.Load()
	if err != nil { t.Fatal(err) }
	if err := p.Save(loaded); err != nil { t.Fatal(err) }
	again, err := p.Load()
	if err != nil { t.Fatal(err) }
	if !reflect.DeepEqual(loaded, again) { t.Fatalf("round trip mismatch:\n%+v\n%+v", loaded, again) }
	if len(again) != 2 || again[0].Text != "first" || !again[0].Completed || again[1].Text != "second" {
		t.Fatalf("unexpected order or fields: %+v", again)
	}
}

func TestAddedTaskMatchesReloadedTask(t *testing.T) {
	slot := newMemSlot()
	s := NewStore(NewSlotPersister(slot, ""))
	if _, err := s.Load(); err != nil { t.Fatal(err) }
	mustAdd(t, s, "Buy milk")
	mustAdd(t, s, "Walk dog")

	fresh := NewStore(NewSlotPersister(slot, ""))
	if _, err := fresh.Load(); err != nil { t.Fatal(err) }
	if !reflect.DeepEqual(s.Tasks(), fresh.Tasks()) {
		t.Fatalf("added tasks differ from their stored form:\n%#v\n%#v", s.Tasks(), fresh.Tasks())
	}
	created := s.Tasks()[0].CreatedAt
	if created.Location() != time.UTC || created.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("createdAt should be UTC milliseconds, got %v", created)
	}
}

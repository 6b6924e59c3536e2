package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyText is returned by ValidateText for empty or whitespace-only input.
	ErrEmptyText = errors.New("task text required")
	// ErrCorruptState marks persisted task data that cannot be decoded or fails validation.
	ErrCorruptState = errors.New("corrupt persisted state")
)

// Task is a single to-do entry. Completed is the only field that changes after creation.
type Task struct {
	ID        int64
	Text      string
	Completed bool
	CreatedAt time.Time
}

// Stats holds counts derived from the task sequence.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

// timeLayout matches what JSON.stringify produces for a JS Date.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type record struct {
	ID        *int64  `json:"id"`
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
	CreatedAt *string `json:"createdAt"`
}

// ValidateText trims s and rejects it when nothing is left.
func ValidateText(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", ErrEmptyText
	}
	return t, nil
}

// ComputeStats counts total, pending and completed tasks.
func ComputeStats(list []Task) Stats {
	var st Stats
	st.Total = len(list)
	for _, t := range list {
		if t.Completed { st.Completed++ }
	}
	st.Pending = st.Total - st.Completed
	return st
}

func (t Task) MarshalJSON() ([]byte, error) {
	created := t.CreatedAt.UTC().Format(timeLayout)
	return json.Marshal(record{ID: &t.ID, Text: &t.Text, Completed: &t.Completed, CreatedAt: &created})
}

// Encode serializes the sequence as a JSON array. A nil slice encodes as [].
func Encode(list []Task) ([]byte, error) {
	if list == nil { list = []Task{} }
	return json.Marshal(list)
}

// Decode parses a JSON array of task records. Empty input and a JSON null decode
// to an empty sequence; anything else that does not parse, lacks a field, or
// repeats an id yields an error wrapping ErrCorruptState.
func Decode(b []byte) ([]Task, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return []Task{}, nil
	}
	var raw []record
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	out := make([]Task, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for i, r := range raw {
		t, err := r.task()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptState, i, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: record %d: duplicate id %d", ErrCorruptState, i, t.ID)
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func (r record) task() (Task, error) {
	switch {
	case r.ID == nil:
		return Task{}, errors.New("missing id")
	case *r.ID <= 0:
		return Task{}, fmt.Errorf("invalid id %d", *r.ID)
	case r.Text == nil:
		return Task{}, errors.New("missing text")
	case strings.TrimSpace(*r.Text) == "":
		return Task{}, errors.New("empty text")
	case strings.TrimSpace(*r.Text) != *r.Text:
		return Task{}, errors.New("text has surrounding whitespace")
	case r.Completed == nil:
		return Task{}, errors.New("missing completed")
	case r.CreatedAt == nil:
		return Task{}, errors.New("missing createdAt")
	}
	created, err := time.Parse(time.RFC3339Nano, *r.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("createdAt: %v", err)
	}
	return Task{ID: *r.ID, Text: *r.Text, Completed: *r.Completed, CreatedAt: created}, nil
}

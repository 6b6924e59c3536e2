package tasks

import "fmt"

// DefaultKey is the slot key the task list is stored under.
const DefaultKey = "tasks"

// Slot is a single-key value store. Get reports false when the key is absent.
type Slot interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

// SlotPersister keeps the whole sequence as one JSON array under Key.
type SlotPersister struct {
	Slot Slot
	Key  string
}

func NewSlotPersister(slot Slot, key string) *SlotPersister {
	if key == "" { key = DefaultKey }
	return &SlotPersister{Slot: slot, Key: key}
}

func (p *SlotPersister) Load() ([]Task, error) {
	b, ok, err := p.Slot.Get(p.Key)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p.Key, err)
	}
	if !ok {
		return []Task{}, nil
	}
	list, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", p.Key, err)
	}
	return list, nil
}

func (p *SlotPersister) Save(list []Task) error {
	b, err := Encode(list)
	if err != nil { return err }
	if err := p.Slot.Put(p.Key, b); err != nil {
		return fmt.Errorf("write %q: %w", p.Key, err)
	}
	return nil
}

package storage

// Memory is a map-backed slot. Nothing written to it outlives the process.
type Memory struct {
	items map[string][]byte
}

func NewMemory() *Memory { return &Memory{items: map[string][]byte{}} }

func (m *Memory) Get(key string) ([]byte, bool, error) {
	v, ok := m.items[key]
	if !ok { return nil, false, nil }
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Put(key string, value []byte) error {
	m.items[key] = append([]byte(nil), value...)
	return nil
}

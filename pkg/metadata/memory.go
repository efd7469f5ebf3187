package metadata

import (
	"sync"
)

// Memory is an in-process Store. Each call is applied under a single lock,
// so it is as atomic as an exiftool invocation.
type Memory struct {
	mu        sync.Mutex
	tags      map[string]Tags
	processed map[string]bool
	writes    int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{tags: map[string]Tags{}, processed: map[string]bool{}}
}

// Set replaces the stored tags for path.
func (m *Memory) Set(path string, t Tags) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[path] = t.clone()
}

// Writes returns how many mutating calls have changed stored state.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (t Tags) clone() Tags {
	c := Tags{}
	for _, f := range Fields {
		if t[f] != nil {
			c[f] = append([]string{}, t[f]...)
		}
	}
	return c
}

func (m *Memory) ReadTags(path string) (Tags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tags[path].clone()
	for _, f := range Fields {
		if _, ok := t[f]; !ok {
			t[f] = nil
		}
	}
	return t, nil
}

func (m *Memory) WriteTags(path string, additions Tags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tags[path].clone()
	changed := false
	for _, f := range Fields {
		merged, c := Merge(t[f], additions[f])
		if c {
			t[f] = merged
			changed = true
		}
	}
	if changed {
		m.tags[path] = t
		m.writes++
	}
	return nil
}

func (m *Memory) Deduplicate(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tags[path].clone()
	changed := false
	for _, f := range Fields {
		if u, c := Unique(t[f]); c {
			t[f] = u
			changed = true
		}
	}
	if changed {
		m.tags[path] = t
		m.writes++
	}
	return nil
}

func (m *Memory) IsProcessed(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[path], nil
}

func (m *Memory) SetProcessed(path string, processed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed[path] != processed {
		m.writes++
	}
	m.processed[path] = processed
	return nil
}

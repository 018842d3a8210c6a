package confstore

import (
	"context"
	"maps"
	"sync"
)

// Memory keeps configuration records in process memory.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]string
}

// NewMemory returns a store seeded with a copy of initial.
func NewMemory(initial map[string]map[string]string) *Memory {
	m := &Memory{records: make(map[string]map[string]string, len(initial))}
	for pid, props := range initial {
		m.records[pid] = maps.Clone(props)
	}
	return m
}

// Get returns a copy of the properties stored under pid.
func (m *Memory) Get(_ context.Context, pid string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	props := maps.Clone(m.records[pid])
	if props == nil {
		props = map[string]string{}
	}
	return props, nil
}

// Update replaces the properties stored under pid.
func (m *Memory) Update(_ context.Context, pid string, props map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[pid] = maps.Clone(props)
	return nil
}

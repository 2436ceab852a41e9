package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playok/adminsync/internal/model"
)

// Memory is a process-local store. Data is lost on exit.
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.Setting
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.Setting)}
}

func (m *Memory) Get(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[name]
	return rec.Value, ok, nil
}

func (m *Memory) Create(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[name]; !ok {
		m.records[name] = model.Setting{Name: name, Value: value, Updated: time.Now().UTC()}
	}
	return nil
}

func (m *Memory) Update(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = model.Setting{Name: name, Value: value, Updated: time.Now().UTC()}
	return nil
}

func (m *Memory) List(_ context.Context) ([]model.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Setting, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Close() error { return nil }

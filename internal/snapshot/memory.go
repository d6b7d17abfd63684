package snapshot

import (
	"context"
	"slices"
	"sync"

	"github.com/mfenderov/duyuru-watch/pkg/models"
)

// Memory keeps the snapshot in process memory. It does not survive restarts.
type Memory struct {
	mu   sync.RWMutex
	snap models.Snapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.Snapshot{Items: slices.Clone(m.snap.Items), CheckedAt: m.snap.CheckedAt}, nil
}

func (m *Memory) Save(ctx context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = models.Snapshot{Items: slices.Clone(snap.Items), CheckedAt: snap.CheckedAt}
	return nil
}

func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = models.Snapshot{}
	return nil
}

func (m *Memory) Close() error {
	return nil
}

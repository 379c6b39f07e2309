package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spigell/panel-interview/internal/domain"
)

// Memory keeps everything in process. It is used by tests and by
// `store.driver: memory`.
type Memory struct {
	mu         sync.RWMutex
	panels     map[string]*domain.PanelRecord
	interviews map[string][]byte
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		panels:     make(map[string]*domain.PanelRecord),
		interviews: make(map[string][]byte),
		now:        time.Now,
	}
}

func (m *Memory) CreatePanel(_ context.Context, panel *domain.PanelRecord) error {
	if panel == nil || panel.ID == "" {
		return fmt.Errorf("create panel: id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.panels[panel.ID]; ok {
		return fmt.Errorf("create panel %s: already exists", panel.ID)
	}
	stored := panel.Clone()
	now := m.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.panels[panel.ID] = stored
	return nil
}

func (m *Memory) UpdatePanel(_ context.Context, panel *domain.PanelRecord) error {
	if panel == nil {
		return fmt.Errorf("update panel: nil panel")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.panels[panel.ID]
	if !ok {
		return fmt.Errorf("update panel %s: %w", panel.ID, ErrNotFound)
	}
	existing.Agents = domain.CloneAgents(panel.Agents)
	existing.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) GetPanel(_ context.Context, id string) (*domain.PanelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	panel, ok := m.panels[id]
	if !ok {
		return nil, fmt.Errorf("panel %s: %w", id, ErrNotFound)
	}
	return panel.Clone(), nil
}

func (m *Memory) FindMostSimilar(_ context.Context, embedding []float64) (*domain.PanelRecord, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]*domain.PanelRecord, 0, len(m.panels))
	for _, panel := range m.panels {
		candidates = append(candidates, panel)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	best, score := mostSimilar(candidates, embedding)
	return best.Clone(), score, nil
}

func (m *Memory) SaveInterview(_ context.Context, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interviews[id] = append([]byte(nil), doc...)
	return nil
}

func (m *Memory) LoadInterview(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.interviews[id]
	if !ok {
		return nil, fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	return append([]byte(nil), doc...), nil
}

// PanelCount reports the number of stored panels.
func (m *Memory) PanelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.panels)
}

func (m *Memory) Close() error { return nil }

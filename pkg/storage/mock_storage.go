package storage

import (
	"sync"

	"github.com/mkostova/taskgrid/pkg/models"
)

// mockStore implements Store with in-memory maps. Transactions are a no-op;
// Begin returns the same instance.
type mockStore struct {
	mu      sync.RWMutex
	configs map[string]models.RunConfig
	reports map[string]models.RunReport
}

// NewMockStore returns an in-memory Store for tests and examples.
func NewMockStore() Store {
	return &mockStore{
		configs: make(map[string]models.RunConfig),
		reports: make(map[string]models.RunReport),
	}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveRunConfig(cfg models.RunConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.PlanName] = cfg
	return nil
}

func (m *mockStore) GetRunConfig(planName string) (models.RunConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[planName]
	if !ok {
		return models.RunConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (m *mockStore) SaveRunReport(rep models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Keyed by plan name: saving twice overwrites, matching the Postgres
	// upsert semantics.
	m.reports[rep.PlanName] = rep
	return nil
}

func (m *mockStore) GetRunReport(planName string) (models.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rep, ok := m.reports[planName]
	if !ok {
		return models.RunReport{}, ErrNotFound
	}
	return rep, nil
}

func (m *mockStore) ListRunReports() ([]models.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RunReport, 0, len(m.reports))
	for _, rep := range m.reports {
		out = append(out, rep)
	}
	return out, nil
}

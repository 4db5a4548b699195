package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fxbot/internal/provider"
	"fxbot/internal/render"
	"fxbot/internal/repository"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Mock snapshot store
type memSnapshotStore struct {
	mu      sync.Mutex
	snaps   []repository.RateSnapshot
	puts    atomic.Int32
	putErr  error
	readErr error
}

func (m *memSnapshotStore) Put(_ context.Context, snap repository.RateSnapshot) error {
	m.puts.Add(1)
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memSnapshotStore) LatestAfter(_ context.Context, base string, after time.Time) (*repository.RateSnapshot, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *repository.RateSnapshot
	for i := range m.snaps {
		s := m.snaps[i]
		if s.Base != base || !s.CapturedAt.After(after) {
			continue
		}
		if best == nil || s.CapturedAt.After(best.CapturedAt) {
			best = &s
		}
	}
	return best, nil
}

// Mock provider
type mockRatesProvider struct {
	calls        atomic.Int32
	getRatesFunc func(ctx context.Context, q provider.Query) (map[string]float64, error)
}

func (m *mockRatesProvider) GetRates(ctx context.Context, q provider.Query) (map[string]float64, error) {
	m.calls.Add(1)
	return m.getRatesFunc(ctx, q)
}

func staticProvider(rates map[string]float64) *mockRatesProvider {
	return &mockRatesProvider{
		getRatesFunc: func(context.Context, provider.Query) (map[string]float64, error) {
			return rates, nil
		},
	}
}

// Mock renderer
type mockRenderer struct {
	calls      atomic.Int32
	renderFunc func(ctx context.Context, name string, points []render.Point) (string, error)
}

func (m *mockRenderer) Render(ctx context.Context, name string, points []render.Point) (string, error) {
	m.calls.Add(1)
	return m.renderFunc(ctx, name, points)
}

// fixedRates is a minimal USD snapshot used across tests.
var fixedRates = map[string]float64{
	"USD": 1,
	"CAD": 1.25,
	"EUR": 0.9,
	"JPY": 150.1234,
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

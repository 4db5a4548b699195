package api

import (
	"context"

	"fxbot/internal/service"
)

// mockRateService implements service.RateServiceInterface for testing.
type mockRateService struct {
	latestRatesFunc     func(ctx context.Context) (map[string]float64, error)
	exchangeFunc        func(ctx context.Context, text string) (*service.ExchangeResult, error)
	historyFunc         func(ctx context.Context, text string) (service.Artifact, error)
	resolveArtifactFunc func(ctx context.Context, token string) (service.Artifact, error)
}

func (m *mockRateService) LatestRates(ctx context.Context) (map[string]float64, error) {
	return m.latestRatesFunc(ctx)
}

func (m *mockRateService) ListRates(_ context.Context) (string, error) {
	return "", nil // Not used in handler tests
}

func (m *mockRateService) Exchange(ctx context.Context, text string) (*service.ExchangeResult, error) {
	return m.exchangeFunc(ctx, text)
}

func (m *mockRateService) History(ctx context.Context, text string) (service.Artifact, error) {
	return m.historyFunc(ctx, text)
}

func (m *mockRateService) RequestHistory(_ context.Context, _ string, _, _ int64) (*service.HistoryJob, error) {
	return nil, nil // Not used in handler tests
}

func (m *mockRateService) BuildHistory(_ context.Context, _ service.HistoryRequest) (service.Artifact, error) {
	return service.Artifact{}, nil // Not used in handler tests
}

func (m *mockRateService) ResolveArtifact(ctx context.Context, token string) (service.Artifact, error) {
	return m.resolveArtifactFunc(ctx, token)
}

//go:build integration

package integration

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fxbot/internal/provider"
	"fxbot/internal/service"
)

// fakeOpenExchangeRates serves latest.json and historical/<date>.json, counting every hit.
func fakeOpenExchangeRates(t *testing.T, fail func(path string) bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail != nil && fail(r.URL.Path) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":true,"status":500,"message":"upstream"}`))
			return
		}
		rate := 1.25
		if strings.Contains(r.URL.Path, "historical/") {
			rate = 1.23
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"base":"USD","timestamp":%d,"rates":{"USD":1,"CAD":%v,"EUR":0.9}}`, time.Now().Unix(), rate)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRateCache_RefreshWritesSnapshotOnce(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)

	srv, hits := fakeOpenExchangeRates(t, nil)
	prov := provider.NewOpenExchangeRatesProvider(srv.URL, "test-app", 5)
	cache := service.NewRateCache(newRepo(t), prov, testRDB, service.DefaultFreshnessWindow, nopLogger())

	for i := 0; i < 3; i++ {
		rates, err := cache.LatestRates(ctx)
		if err != nil {
			t.Fatalf("LatestRates #%d: %v", i, err)
		}
		if rates["CAD"] != 1.25 {
			t.Fatalf("expected CAD 1.25, got %v", rates["CAD"])
		}
	}

	if got := hits.Load(); got != 1 {
		t.Fatalf("expected exactly 1 provider call, got %d", got)
	}
	if n := countSnapshots(t); n != 1 {
		t.Fatalf("expected exactly 1 stored snapshot, got %d", n)
	}
}

func TestRateCache_ServesFromStoreAfterRedisFlush(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)

	srv, hits := fakeOpenExchangeRates(t, nil)
	prov := provider.NewOpenExchangeRatesProvider(srv.URL, "test-app", 5)
	cache := service.NewRateCache(newRepo(t), prov, testRDB, service.DefaultFreshnessWindow, nopLogger())

	if _, err := cache.LatestRates(ctx); err != nil {
		t.Fatalf("LatestRates: %v", err)
	}
	if err := testRDB.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// a fresh cache instance (e.g. after restart) must reuse the durable snapshot
	restarted := service.NewRateCache(newRepo(t), prov, testRDB, service.DefaultFreshnessWindow, nopLogger())
	if _, err := restarted.LatestRates(ctx); err != nil {
		t.Fatalf("LatestRates after restart: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected the stored snapshot to satisfy the read, provider calls = %d", got)
	}
}

func TestRateCache_ProviderFailure(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)

	srv, _ := fakeOpenExchangeRates(t, func(string) bool { return true })
	prov := provider.NewOpenExchangeRatesProvider(srv.URL, "test-app", 5)
	cache := service.NewRateCache(newRepo(t), prov, testRDB, service.DefaultFreshnessWindow, nopLogger())

	_, err := cache.LatestRates(ctx)
	if !errors.Is(err, service.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if n := countSnapshots(t); n != 0 {
		t.Fatalf("expected nothing stored after a failed fetch, got %d rows", n)
	}
}

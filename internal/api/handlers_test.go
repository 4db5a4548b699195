package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxbot/internal/service"
)

func newRouter(svc service.RateServiceInterface) http.Handler {
	r := chi.NewRouter()
	r.Get("/rates/latest", HandleGetLatestRates(svc))
	r.Post("/commands/exchange", HandleExchange(svc))
	r.Post("/commands/history", HandleHistory(svc))
	r.Get("/artifacts/{token}", HandleGetArtifact(svc))
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandleGetLatestRates(t *testing.T) {
	t.Run("returns rates", func(t *testing.T) {
		svc := &mockRateService{latestRatesFunc: func(context.Context) (map[string]float64, error) {
			return map[string]float64{"CAD": 1.25}, nil
		}}

		w := do(t, newRouter(svc), http.MethodGet, "/rates/latest", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp LatestRatesResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "USD", resp.Base)
		assert.Equal(t, 1.25, resp.Rates["CAD"])
	})

	errCases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: timeout", service.ErrProvider), http.StatusBadGateway},
		{fmt.Errorf("%w: disk", service.ErrStore), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range errCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			svc := &mockRateService{latestRatesFunc: func(context.Context) (map[string]float64, error) {
				return nil, tc.err
			}}
			w := do(t, newRouter(svc), http.MethodGet, "/rates/latest", "")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestHandleExchange(t *testing.T) {
	svc := &mockRateService{
		exchangeFunc: func(_ context.Context, text string) (*service.ExchangeResult, error) {
			if text != "/exchange $10 to CAD" {
				return nil, service.NewValidationError(service.KindUnknownCurrency)
			}
			return &service.ExchangeResult{
				Amount: 10, Currency: "CAD", Rate: 1.25, Direction: service.BaseToQuote, Value: 12.5, Text: "12.5 CAD",
			}, nil
		},
	}
	h := newRouter(svc)

	t.Run("converts", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/commands/exchange", `{"text":"/exchange $10 to CAD"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ExchangeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "12.5 CAD", resp.Text)
		assert.Equal(t, "base_to_quote", resp.Direction)
		assert.Equal(t, 12.5, resp.Value)
	})

	t.Run("validation error is 400 with message", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/commands/exchange", `{"text":"/exchange $10 to XYZ"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeError(t, w)
		assert.Equal(t, service.MsgUnknownCurrency, resp.Error)
		assert.Equal(t, "unknown_currency", resp.Kind)
	})

	t.Run("bad body", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/commands/exchange", `{`).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/commands/exchange", `{"text":"  "}`).Code)
	})
}

func TestHandleHistory(t *testing.T) {
	svc := &mockRateService{
		historyFunc: func(_ context.Context, text string) (service.Artifact, error) {
			switch text {
			case "/history USD/CAD for 7 days":
				return service.Artifact{Token: "USD-CAD", Status: service.ArtifactReady, Path: "/tmp/USD-CAD.png"}, nil
			case "/history USD/XYZ for 7 days":
				return service.UnavailableArtifact(), nil
			default:
				return service.Artifact{}, service.NewValidationError(service.KindBaseNotFirst)
			}
		},
	}
	h := newRouter(svc)

	w := do(t, h, http.MethodPost, "/commands/history", `{"text":"/history USD/CAD for 7 days"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ArtifactResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ArtifactResponse{Token: "USD-CAD", Status: "ready", URL: "/artifacts/USD-CAD"}, resp)

	w = do(t, h, http.MethodPost, "/commands/history", `{"text":"/history USD/XYZ for 7 days"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = ArtifactResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ArtifactResponse{Token: "0", Status: "unavailable"}, resp)

	w = do(t, h, http.MethodPost, "/commands/history", `{"text":"/history CAD/USD for 7 days"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgBaseNotFirst, decodeError(t, w).Error)
}

func TestHandleGetArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "USD-CAD.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nchart"), 0o644))

	svc := &mockRateService{
		resolveArtifactFunc: func(_ context.Context, token string) (service.Artifact, error) {
			switch token {
			case "USD-CAD":
				return service.Artifact{Token: token, Status: service.ArtifactReady, Path: path}, nil
			case service.NoDataToken:
				return service.UnavailableArtifact(), nil
			default:
				return service.Artifact{Token: token, Status: service.ArtifactUnknown}, nil
			}
		},
	}
	h := newRouter(svc)

	w := do(t, h, http.MethodGet, "/artifacts/USD-CAD", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG\r\n\x1a\nchart", w.Body.String())

	w = do(t, h, http.MethodGet, "/artifacts/0", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.MsgNoData, decodeError(t, w).Error)

	w = do(t, h, http.MethodGet, "/artifacts/USD-GBP", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealth(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthz().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "OK", w.Body.String())

	ok := Dependency{Name: "store", Ping: func(context.Context) error { return nil }}
	down := Dependency{Name: "cache", Ping: func(context.Context) error { return errors.New("refused") }}

	w = httptest.NewRecorder()
	HandleReadyz(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	HandleReadyz(ok, down).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "cache not ready", decodeError(t, w).Error)
}

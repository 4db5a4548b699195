// Package provider implements external rate providers for fetching currency exchange rates.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var _ RatesProvider = (*OpenExchangeRatesProvider)(nil)

const dateLayout = "2006-01-02"

// OpenExchangeRatesProvider fetches rates from the openexchangerates.org API.
type OpenExchangeRatesProvider struct {
	baseURL string
	appID   string
	client  *http.Client
	now     func() time.Time
}

// NewOpenExchangeRatesProvider creates a new OpenExchangeRatesProvider with the given configuration.
func NewOpenExchangeRatesProvider(baseURL, appID string, timeoutSec int) *OpenExchangeRatesProvider {
	if baseURL == "" {
		baseURL = "https://openexchangerates.org/api"
	}
	return &OpenExchangeRatesProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		client:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		now:     time.Now,
	}
}

type oxrResponse struct {
	Base        string             `json:"base"`
	Timestamp   int64              `json:"timestamp"`
	Rates       map[string]float64 `json:"rates"`
	Error       bool               `json:"error"`
	Description string             `json:"description"`
}

// requestURL picks latest.json for today (or no date) and historical/<date>.json otherwise.
// Only historical requests carry the symbols filter.
func (p *OpenExchangeRatesProvider) requestURL(q Query) string {
	params := url.Values{}
	params.Set("app_id", p.appID)
	params.Set("base", q.Base)

	today := p.now().Format(dateLayout)
	if q.Date.IsZero() || q.Date.Format(dateLayout) == today {
		return p.baseURL + "/latest.json?" + params.Encode()
	}

	if len(q.Symbols) > 0 {
		params.Set("symbols", strings.Join(q.Symbols, ","))
	}
	return fmt.Sprintf("%s/historical/%s.json?%s", p.baseURL, q.Date.Format(dateLayout), params.Encode())
}

// GetRates fetches the code->rate mapping for the query.
func (p *OpenExchangeRatesProvider) GetRates(ctx context.Context, q Query) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(q), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("openexchangerates request creation failed: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openexchangerates request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openexchangerates returned status %d: %s", resp.StatusCode, string(body))
	}

	var result oxrResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode openexchangerates response: %w", err)
	}
	if result.Error {
		return nil, fmt.Errorf("openexchangerates error: %s", result.Description)
	}
	if result.Rates == nil {
		return nil, fmt.Errorf("openexchangerates response has no rates")
	}

	return result.Rates, nil
}

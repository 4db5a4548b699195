package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fxbot/internal/service"
)

// CommandRequest carries a chat command verbatim.
type CommandRequest struct {
	Text string `json:"text" example:"/exchange $10 to CAD"`
}

// LatestRatesResponse represents the latest USD rate table
type LatestRatesResponse struct {
	Base  string             `json:"base" example:"USD"`
	Rates map[string]float64 `json:"rates"`
}

// ExchangeResponse represents a completed conversion
type ExchangeResponse struct {
	Amount    float64 `json:"amount" example:"10"`
	Currency  string  `json:"currency" example:"CAD"`
	Rate      float64 `json:"rate" example:"1.25"`
	Direction string  `json:"direction" example:"base_to_quote"`
	Value     float64 `json:"value" example:"12.5"`
	Text      string  `json:"text" example:"12.5 CAD"`
}

// ArtifactResponse represents a history chart build result
type ArtifactResponse struct {
	Token  string `json:"token" example:"USD-CAD"`
	Status string `json:"status" example:"ready"`
	URL    string `json:"url,omitempty" example:"/artifacts/USD-CAD"`
}

// HandleGetLatestRates godoc
// @Summary Get latest USD rates
// @Description Returns the cached USD rate table. Fetches from the provider only when the stored snapshot is older than the freshness window.
// @Tags rates
// @Produce json
// @Success 200 {object} LatestRatesResponse "Current rates"
// @Failure 502 {object} ErrorResponse "Rate provider unavailable"
// @Failure 503 {object} ErrorResponse "Rate store unavailable"
// @Router /rates/latest [get]
func HandleGetLatestRates(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rates, err := svc.LatestRates(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, LatestRatesResponse{Base: service.BaseCurrency, Rates: rates})
	}
}

// HandleExchange godoc
// @Summary Convert an amount
// @Description Parses an /exchange command such as "/exchange $10 to CAD" or "/exchange 10 CAD to USD" and converts the amount.
// @Tags commands
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command text"
// @Success 200 {object} ExchangeResponse "Converted amount"
// @Failure 400 {object} ErrorResponse "Invalid command"
// @Failure 502 {object} ErrorResponse "Rate provider unavailable"
// @Failure 503 {object} ErrorResponse "Rate store unavailable"
// @Router /commands/exchange [post]
func HandleExchange(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, ok := decodeCommand(w, r)
		if !ok {
			return
		}

		res, err := svc.Exchange(r.Context(), text)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ExchangeResponse{
			Amount:    res.Amount,
			Currency:  res.Currency,
			Rate:      res.Rate,
			Direction: res.Direction.String(),
			Value:     res.Value,
			Text:      res.Text,
		})
	}
}

// HandleHistory godoc
// @Summary Build a history chart
// @Description Parses a /history command such as "/history USD/CAD for 7 days", fetches one rate per day and renders a chart. Blocks until the chart is written. A failed day yields the "0" token with status unavailable.
// @Tags commands
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command text"
// @Success 200 {object} ArtifactResponse "Build finished"
// @Failure 400 {object} ErrorResponse "Invalid command"
// @Failure 500 {object} ErrorResponse "Internal error"
// @Router /commands/history [post]
func HandleHistory(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, ok := decodeCommand(w, r)
		if !ok {
			return
		}

		artifact, err := svc.History(r.Context(), text)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := ArtifactResponse{Token: artifact.Token, Status: artifact.Status.String()}
		if artifact.Status == service.ArtifactReady {
			resp.URL = "/artifacts/" + artifact.Token
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGetArtifact godoc
// @Summary Download a history chart
// @Description Serves the PNG registered under token. The "0" token never has a chart.
// @Tags commands
// @Produce png
// @Param token path string true "Artifact token" example(USD-CAD)
// @Success 200 {file} file "Chart image"
// @Failure 404 {object} ErrorResponse "No chart for token"
// @Failure 500 {object} ErrorResponse "Internal error"
// @Router /artifacts/{token} [get]
func HandleGetArtifact(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		artifact, err := svc.ResolveArtifact(r.Context(), token)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		switch artifact.Status {
		case service.ArtifactReady:
			w.Header().Set("Content-Type", "image/png")
			http.ServeFile(w, r, artifact.Path)
		case service.ArtifactUnavailable:
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: service.MsgNoData})
		default:
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Unknown artifact token"})
		}
	}
}

func decodeCommand(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return "", false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return "", false
	}
	return req.Text, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	if vErr, ok := service.AsValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: vErr.Message, Kind: string(vErr.Kind)})
		return
	}

	switch {
	case errors.Is(err, service.ErrProvider):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "Rate provider unavailable"})
	case errors.Is(err, service.ErrStore):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Rate store unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
	}
}

// Package service implements the currency bot's business logic: the rate cache,
// command parsing, conversion and historical chart builds.
package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HelpText is sent for /start, /help and any plain (non-command) message.
const HelpText = "Help:\n" +
	"/list or /lst - returns list of all available rates\n\n" +
	"/exchange $10 to CAD or /exchange 10 USD to CAD -  converts to the second currency " +
	"with two decimal precision and returns\n\n" +
	"/history USD/CAD for 7 days - returns an image graph chart which shows the exchange " +
	"rate graph/chart of the selected currency for the last days"

// RateServiceInterface defines the operations exposed to the bot and HTTP surfaces.
type RateServiceInterface interface {
	LatestRates(ctx context.Context) (map[string]float64, error)
	ListRates(ctx context.Context) (string, error)
	Exchange(ctx context.Context, text string) (*ExchangeResult, error)
	History(ctx context.Context, text string) (Artifact, error)
	RequestHistory(ctx context.Context, text string, chatID, messageID int64) (*HistoryJob, error)
	BuildHistory(ctx context.Context, req HistoryRequest) (Artifact, error)
	ResolveArtifact(ctx context.Context, token string) (Artifact, error)
}

// ExchangeResult is a completed conversion.
type ExchangeResult struct {
	Amount    float64
	Currency  string
	Rate      float64
	Direction Direction
	Value     float64
	Text      string
}

// HistoryJob identifies an enqueued history build.
type HistoryJob struct {
	ID      string
	Request HistoryRequest
}

// TaskTypeBuildHistory is the Asynq task type for history chart builds.
const TaskTypeBuildHistory = "history:build"

// BuildHistoryPayload is the payload of a history build task. ChatID and MessageID
// locate the placeholder message to edit once the build finishes.
type BuildHistoryPayload struct {
	JobID     string `json:"job_id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Base      string `json:"base"`
	Quote     string `json:"quote"`
	Days      int    `json:"days"`
}

// Request rebuilds the validated request carried by the payload.
func (p BuildHistoryPayload) Request() HistoryRequest {
	return HistoryRequest{Base: p.Base, Quote: p.Quote, Days: p.Days}
}

// HistoryEnqueuer hands history builds to the background queue.
type HistoryEnqueuer interface {
	EnqueueHistoryTask(ctx context.Context, payload BuildHistoryPayload) error
}

// RateService ties the rate cache, the history builder and the artifact registry together.
type RateService struct {
	cache     *RateCache
	history   *HistoryBuilder
	artifacts ArtifactRegistry
	enqueuer  HistoryEnqueuer
	log       *zap.SugaredLogger
}

// NewRateService creates a RateService. enqueuer may be nil, in which case
// RequestHistory is unavailable.
func NewRateService(cache *RateCache, history *HistoryBuilder, artifacts ArtifactRegistry, enqueuer HistoryEnqueuer, logger *zap.SugaredLogger) *RateService {
	return &RateService{
		cache:     cache,
		history:   history,
		artifacts: artifacts,
		enqueuer:  enqueuer,
		log:       logger,
	}
}

// LatestRates returns the cached USD rate mapping.
func (s *RateService) LatestRates(ctx context.Context) (map[string]float64, error) {
	return s.cache.LatestRates(ctx)
}

// ListRates renders every known rate as "CODE: rate" lines sorted by code.
func (s *RateService) ListRates(ctx context.Context) (string, error) {
	rates, err := s.cache.LatestRates(ctx)
	if err != nil {
		return "", err
	}
	return FormatRatesList(rates), nil
}

// Exchange parses an /exchange command and converts the amount.
func (s *RateService) Exchange(ctx context.Context, text string) (*ExchangeResult, error) {
	req, err := ParseExchange(ctx, text, s.cache)
	if err != nil {
		return nil, err
	}

	value := Convert(req.Amount, req.Rate, req.Direction)
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return nil, NewValidationError(KindBadAmount)
	}
	return &ExchangeResult{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Rate:      req.Rate,
		Direction: req.Direction,
		Value:     value,
		Text:      FormatRate(value) + " " + req.Currency,
	}, nil
}

// History parses a /history command and builds its chart synchronously.
func (s *RateService) History(ctx context.Context, text string) (Artifact, error) {
	req, err := ParseHistory(text)
	if err != nil {
		return Artifact{}, err
	}
	return s.history.Build(ctx, *req)
}

// RequestHistory parses a /history command and enqueues the build.
func (s *RateService) RequestHistory(ctx context.Context, text string, chatID, messageID int64) (*HistoryJob, error) {
	req, err := ParseHistory(text)
	if err != nil {
		return nil, err
	}
	if s.enqueuer == nil {
		return nil, fmt.Errorf("history queue is not configured")
	}

	job := &HistoryJob{ID: uuid.New().String(), Request: *req}
	err = s.enqueuer.EnqueueHistoryTask(ctx, BuildHistoryPayload{
		JobID:     job.ID,
		ChatID:    chatID,
		MessageID: messageID,
		Base:      req.Base,
		Quote:     req.Quote,
		Days:      req.Days,
	})
	if err != nil {
		s.log.Errorw("Failed to enqueue history task", "job_id", job.ID, "error", err)
		return nil, fmt.Errorf("enqueue history build: %w", err)
	}

	s.log.Infow("Enqueued history task", "job_id", job.ID, "pair", req.Pair(), "days", req.Days)
	return job, nil
}

// BuildHistory builds the chart for an already validated request.
func (s *RateService) BuildHistory(ctx context.Context, req HistoryRequest) (Artifact, error) {
	return s.history.Build(ctx, req)
}

// ResolveArtifact looks up a chart token.
func (s *RateService) ResolveArtifact(ctx context.Context, token string) (Artifact, error) {
	return s.artifacts.Resolve(ctx, token)
}

// FormatRate renders v the way the bot has always printed floats: the shortest
// representation, always with a fractional part ("13.0", "12.5").
func FormatRate(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatRatesList renders rates as "CODE: rate" lines, rates rounded to two decimals.
func FormatRatesList(rates map[string]float64) string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	lines := make([]string, 0, len(codes))
	for _, code := range codes {
		rounded := decimal.NewFromFloat(rates[code]).Round(2).InexactFloat64()
		lines = append(lines, code+": "+FormatRate(rounded))
	}
	return strings.Join(lines, "\n")
}

var _ RateServiceInterface = (*RateService)(nil)

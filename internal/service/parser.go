package service

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// Day-count bounds for /history.
const (
	MinHistoryDays = 2
	MaxHistoryDays = 30
)

// Direction says which way an exchange converts.
type Direction int

// Directions. BaseToQuote converts USD into the named currency, QuoteToBase converts the named currency into USD.
const (
	BaseToQuote Direction = iota
	QuoteToBase
)

func (d Direction) String() string {
	if d == QuoteToBase {
		return "quote_to_base"
	}
	return "base_to_quote"
}

// ExchangeRequest is a validated /exchange command together with the rate it resolved to.
type ExchangeRequest struct {
	Amount    float64
	Currency  string
	Rate      float64
	Direction Direction
}

// HistoryRequest is a validated /history command.
type HistoryRequest struct {
	Base  string
	Quote string
	Days  int
}

// Pair renders the request as BASE/QUOTE.
func (r HistoryRequest) Pair() string {
	return r.Base + "/" + r.Quote
}

// RatesSource supplies the current rate mapping used to recognise currency codes.
type RatesSource interface {
	LatestRates(ctx context.Context) (map[string]float64, error)
}

// ParseExchange validates an /exchange command. Rates are only fetched once the amount
// and the USD marker have been checked; a failure to fetch them is returned unchanged.
//
// Accepted shapes:
//
//	/exchange $10 to CAD
//	/exchange 10 USD to CAD   (or 10 $ to CAD)
//	/exchange 10 CAD to USD   (or 10 CAD to $)
func ParseExchange(ctx context.Context, text string, src RatesSource) (*ExchangeRequest, error) {
	if strings.Contains(text, "\n") {
		return nil, NewValidationError(KindMultiline)
	}

	tokens := strings.Fields(text)
	if len(tokens) < 4 || len(tokens) > 5 {
		return nil, NewValidationError(KindExchangeFormat)
	}

	amount, ok := parseAmount(tokens[1])
	if !ok {
		return nil, NewValidationError(KindBadAmount)
	}
	if amount <= 0 {
		return nil, NewValidationError(KindNonPositive)
	}

	if !strings.Contains(text, "$") && !strings.Contains(strings.ToUpper(text), BaseCurrency) {
		return nil, NewValidationError(KindMissingBaseMarker)
	}

	rates, err := src.LatestRates(ctx)
	if err != nil {
		return nil, err
	}

	req := &ExchangeRequest{Amount: amount}
	switch len(tokens) {
	case 4:
		code := strings.ToUpper(tokens[3])
		if strings.Contains(tokens[1], "$") && hasRate(rates, code) {
			req.Currency, req.Direction = code, BaseToQuote
		}
	case 5:
		target := strings.ToUpper(tokens[4])
		source := strings.ToUpper(tokens[2])
		switch {
		case isBaseMark(tokens[2]) && hasRate(rates, target):
			req.Currency, req.Direction = target, BaseToQuote
		case hasRate(rates, source):
			req.Currency, req.Direction = source, QuoteToBase
		}
	}

	if req.Currency == "" {
		return nil, NewValidationError(KindUnknownCurrency)
	}
	req.Rate = rates[req.Currency]
	return req, nil
}

// ParseHistory validates a /history command of the form "/history USD/CAD for 7 days".
func ParseHistory(text string) (*HistoryRequest, error) {
	tokens := strings.Fields(text)
	if len(tokens) != 5 {
		return nil, NewValidationError(KindHistoryFormat)
	}

	pair := tokens[1]
	if !strings.Contains(pair, "/") {
		return nil, NewValidationError(KindHistoryFormat)
	}
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, NewValidationError(KindMissingBase)
	}

	base, quote := strings.ToUpper(parts[0]), strings.ToUpper(parts[1])
	if base != BaseCurrency {
		return nil, NewValidationError(KindBaseNotFirst)
	}
	if base == quote {
		return nil, NewValidationError(KindBaseEqualsQuote)
	}

	days, err := strconv.Atoi(tokens[3])
	if err != nil || days < MinHistoryDays || days > MaxHistoryDays {
		return nil, NewValidationError(KindBadDayCount)
	}

	return &HistoryRequest{Base: base, Quote: quote, Days: days}, nil
}

// parseAmount strips any '$' and parses the rest as a finite float.
func parseAmount(token string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(token, "$", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isBaseMark(token string) bool {
	return strings.Contains(token, "$") || strings.Contains(strings.ToUpper(token), BaseCurrency)
}

func hasRate(rates map[string]float64, code string) bool {
	_, ok := rates[code]
	return ok
}

package service

import "errors"

// ErrProvider marks a failed remote rate fetch.
var ErrProvider = errors.New("rate provider unavailable")

// ErrStore marks a failed read or write of durable state.
var ErrStore = errors.New("rate store unavailable")

// ValidationKind identifies why user input was rejected.
type ValidationKind string

// Validation kinds for exchange and history commands.
const (
	KindMultiline         ValidationKind = "multiline"
	KindExchangeFormat    ValidationKind = "exchange_format"
	KindBadAmount         ValidationKind = "bad_amount"
	KindNonPositive       ValidationKind = "non_positive"
	KindMissingBaseMarker ValidationKind = "missing_base_marker"
	KindUnknownCurrency   ValidationKind = "unknown_currency"
	KindHistoryFormat     ValidationKind = "history_format"
	KindMissingBase       ValidationKind = "missing_base"
	KindBaseNotFirst      ValidationKind = "base_not_first"
	KindBaseEqualsQuote   ValidationKind = "base_equals_quote"
	KindBadDayCount       ValidationKind = "bad_day_count"
)

// User-facing messages. These strings are part of the bot's contract.
const (
	MsgMultiline         = "You should enter data without enters"
	MsgExchangeFormat    = "Use this format: /exchange [$10] to [CAD] or /exchange [10] [USD] to [CAD]"
	MsgBadAmount         = "You should enter correct value after '/exchange'"
	MsgNonPositive       = "You should enter value that >0"
	MsgMissingBaseMarker = "You should use base currency '$' or 'USD' to exchange successful"
	MsgUnknownCurrency   = "There is no entered currency"
	MsgHistoryFormat     = "Use this format: /history [USD]/[CAD] for [7] days"
	MsgBaseNotFirst      = "This bot supports only USD base currency. (USD should be first)"
	MsgBaseEqualsQuote   = "USD should be used with another currency"
	MsgBadDayCount       = "Entered less then 2 or more then 30 days"
	MsgNoData            = "No exchange rate data is available for the selected currency."
)

var validationMessages = map[ValidationKind]string{
	KindMultiline:         MsgMultiline,
	KindExchangeFormat:    MsgExchangeFormat,
	KindBadAmount:         MsgBadAmount,
	KindNonPositive:       MsgNonPositive,
	KindMissingBaseMarker: MsgMissingBaseMarker,
	KindUnknownCurrency:   MsgUnknownCurrency,
	KindHistoryFormat:     MsgHistoryFormat,
	KindMissingBase:       MsgHistoryFormat,
	KindBaseNotFirst:      MsgBaseNotFirst,
	KindBaseEqualsQuote:   MsgBaseEqualsQuote,
	KindBadDayCount:       MsgBadDayCount,
}

// ValidationError is a rejected command. Message is safe to show to the user verbatim.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is matches another *ValidationError of the same kind, so errors.Is(err, NewValidationError(k)) works.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// NewValidationError builds the error for kind with its fixed message.
func NewValidationError(kind ValidationKind) *ValidationError {
	return &ValidationError{Kind: kind, Message: validationMessages[kind]}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}

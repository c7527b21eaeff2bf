package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the dd.mm.yyyy layout used by the feed and the queue wire format
const DateLayout = "02.01.2006"

type Currency string

func (c Currency) String() string {
	return string(c)
}

var (
	errInvalidCurrencyLength = errors.New("invalid currency (must be 3 letters)")
	errInvalidCurrencyChars  = errors.New("invalid currency (must be A-Z)")
)

// ParseCurrency parses a 3-letter currency code, upper-casing it
func ParseCurrency(v string) (Currency, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if len(s) != 3 {
		return "", errInvalidCurrencyLength
	}

	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errInvalidCurrencyChars
		}
	}

	return Currency(s), nil
}

// ParseDate parses a dd.mm.yyyy date into UTC midnight
func ParseDate(v string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(v), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (must be dd.mm.yyyy)", v)
	}

	return t, nil
}

// Day truncates the given time to its calendar day (UTC midnight)
func Day(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RateQuery is a single rate resolution job
type RateQuery struct {
	Date     time.Time
	Currency Currency
	Base     Currency
}

// Equal returns true if both queries ask for the same pair on the same day
func (q RateQuery) Equal(other RateQuery) bool {
	return Day(q.Date).Equal(Day(other.Date)) &&
		q.Currency == other.Currency &&
		q.Base == other.Base
}

// wireQuery is the queue representation of a RateQuery.
// Field order defines the encoded key order
type wireQuery struct {
	Date     string `json:"date"`
	Currency string `json:"currency"`
	Base     string `json:"base_currency"`
}

func (q RateQuery) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireQuery{
		Date:     q.Date.Format(DateLayout),
		Currency: q.Currency.String(),
		Base:     q.Base.String(),
	})
}

func (q *RateQuery) UnmarshalJSON(data []byte) error {
	var w wireQuery

	if err := json.Unmarshal(data, &w); err != nil {
		return NewError(KindDecode, "malformed job payload", err)
	}

	date, err := ParseDate(w.Date)
	if err != nil {
		return NewError(KindDecode, "malformed job date", err)
	}

	currency, err := ParseCurrency(w.Currency)
	if err != nil {
		return NewError(KindDecode, "malformed job currency", err)
	}

	base, err := ParseCurrency(w.Base)
	if err != nil {
		return NewError(KindDecode, "malformed job base currency", err)
	}

	q.Date = date
	q.Currency = currency
	q.Base = base

	return nil
}

// EncodeQuery encodes the query into the queue wire format
func EncodeQuery(q RateQuery) ([]byte, error) {
	return json.Marshal(q)
}

// DecodeQuery decodes the queue wire format into a query.
// Any failure is a KindDecode error
func DecodeQuery(data []byte) (RateQuery, error) {
	var q RateQuery

	if err := json.Unmarshal(data, &q); err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			return RateQuery{}, typed
		}

		return RateQuery{}, NewError(KindDecode, "malformed job payload", err)
	}

	return q, nil
}

// RateResult is the outcome of a single job.
// Exactly one of the Ok fields or Err is meaningful
type RateResult struct {
	Err          *Error
	Rate         float64
	PreviousRate float64
}

// OK creates a successful result
func OK(rate, previousRate float64) RateResult {
	return RateResult{
		Rate:         rate,
		PreviousRate: previousRate,
	}
}

// Failed creates a failed result out of any error.
// Errors that are not already typed are classified by AsError
func Failed(err error) RateResult {
	if err == nil {
		err = errors.New("unspecified failure")
	}

	return RateResult{
		Err: AsError(err),
	}
}

// IsOK returns true if the result holds rates
func (r RateResult) IsOK() bool {
	return r.Err == nil
}

// Difference returns the change from the previous trading day
func (r RateResult) Difference() float64 {
	return r.Rate - r.PreviousRate
}

// CurrencyNode is a single currency record parsed out of the daily feed.
// Value is quoted per Nominal units against the feed's native base
type CurrencyNode struct {
	Code    Currency
	Value   float64
	Nominal int
}

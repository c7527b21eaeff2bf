package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sig-0/cbrates/provider/currencies"
	"github.com/sig-0/cbrates/storage/types"
)

var (
	errUnableToFetchRates = errors.New("unable to fetch rates")
	errFutureDate         = errors.New("invalid date (must not be in the future)")
)

// Rate resolves a single rate directly
func (s *Server) Rate(w http.ResponseWriter, r *http.Request) {
	query, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	rate, err := s.fetcher.FetchExchangeRate(r.Context(), query.Date, query.Currency, query.Base)
	if err != nil {
		s.logger.Debug(
			"unable to fetch rate",
			"currency", query.Currency,
			"base", query.Base,
			"err", err,
		)

		writeFetchError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, &RateResponse{
		Date:     query.Date.Format(types.DateLayout),
		Currency: query.Currency,
		Base:     query.Base,
		Rate:     rate,
	})
}

// RateChange resolves the rate and its change from
// the previous trading day, through the job queue
func (s *Server) RateChange(w http.ResponseWriter, r *http.Request) {
	query, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var result types.RateResult

	select {
	case <-r.Context().Done():
		// The client went away
		return
	case result = <-s.fetcher.FetchRatesAsync(r.Context(), query):
	}

	if !result.IsOK() {
		s.logger.Debug(
			"unable to fetch rate change",
			"currency", query.Currency,
			"base", query.Base,
			"err", result.Err,
		)

		writeFetchError(w, result.Err)

		return
	}

	writeJSON(w, http.StatusOK, &RateChangeResponse{
		Date:         query.Date.Format(types.DateLayout),
		Currency:     query.Currency,
		Base:         query.Base,
		Rate:         result.Rate,
		PreviousRate: result.PreviousRate,
		Difference:   result.Difference(),
	})
}

// parseQuery parses the rate query out of the request.
// The date defaults to today, the base to RUR
func (s *Server) parseQuery(r *http.Request) (types.RateQuery, error) {
	var (
		currencyParam = chi.URLParam(r, "currency")

		dateParam = r.URL.Query().Get("date")
		baseParam = r.URL.Query().Get("base")
	)

	currency, err := types.ParseCurrency(currencyParam)
	if err != nil {
		return types.RateQuery{}, err
	}

	base := currencies.RUR

	if strings.TrimSpace(baseParam) != "" {
		base, err = types.ParseCurrency(baseParam)
		if err != nil {
			return types.RateQuery{}, err
		}
	}

	date, err := parseDate(dateParam, s.now())
	if err != nil {
		return types.RateQuery{}, err
	}

	return types.RateQuery{
		Date:     date,
		Currency: currency,
		Base:     base,
	}, nil
}

// parseDate parses an optional dd.mm.yyyy date, rejecting future dates
func parseDate(v string, now time.Time) (time.Time, error) {
	today := types.Day(now.UTC())

	if strings.TrimSpace(v) == "" {
		return today, nil
	}

	date, err := types.ParseDate(v)
	if err != nil {
		return time.Time{}, err
	}

	if date.After(today) {
		return time.Time{}, errFutureDate
	}

	return date, nil
}

// statusFor maps a resolution failure to its HTTP status
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindFetch, types.KindParse:
		return http.StatusBadGateway
	case types.KindBroker:
		return http.StatusServiceUnavailable
	case types.KindTimedOut:
		return http.StatusGatewayTimeout
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}

		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}

// writeFetchError writes a resolution failure, keeping its kind
// but not its cause
func writeFetchError(w http.ResponseWriter, err error) {
	resp := &ErrorResponse{
		Error: errUnableToFetchRates.Error(),
	}

	if kind := types.KindOf(err); kind != types.KindUnknown {
		resp.Kind = kind.String()
	}

	writeJSON(w, statusFor(err), resp)
}

// Package rates resolves cross exchange rates out of the daily CBR feed
package rates

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sig-0/cbrates/cache"
	"github.com/sig-0/cbrates/provider/cbr"
	"github.com/sig-0/cbrates/provider/currencies"
	"github.com/sig-0/cbrates/storage/types"
)

// Provider resolves the rate of a currency against a base, for a date
type Provider interface {
	// GetRate returns the number of base units one unit of currency is worth
	GetRate(ctx context.Context, date time.Time, currency, base types.Currency) (float64, error)
}

// Feed fetches the daily rates document for a date
type Feed interface {
	Fetch(ctx context.Context, date time.Time) (*cbr.Document, error)
}

// Resolver is the cached feed-backed Provider
type Resolver struct {
	feed   Feed
	cache  *cache.RateCache
	logger *slog.Logger

	nativeBase types.Currency
}

// New creates a new resolver over the given feed and cache
func New(feed Feed, cache *cache.RateCache, opts ...Option) *Resolver {
	r := &Resolver{
		feed:       feed,
		cache:      cache,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		nativeBase: currencies.RUR,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetRate returns the currency rate against the base on the given date.
// Rates against the feed's native base are the raw quoted values,
// any other base is resolved as a cross rate of the two quoted values
func (r *Resolver) GetRate(
	ctx context.Context,
	date time.Time,
	currency,
	base types.Currency,
) (float64, error) {
	date = types.Day(date)

	if currency == base {
		return 1, nil
	}

	key := cache.Key(currency, base, date)

	rate, err := r.cache.GetOrCompute(ctx, key, func(ctx context.Context) (float64, error) {
		return r.compute(ctx, date, currency, base)
	})
	if err != nil {
		r.logger.Error(
			"unable to resolve exchange rate",
			"currency", currency,
			"base", base,
			"date", date.Format(types.DateLayout),
			"err", err,
		)

		return 0, err
	}

	return rate, nil
}

// compute fetches the document for the date and derives the rate
func (r *Resolver) compute(
	ctx context.Context,
	date time.Time,
	currency,
	base types.Currency,
) (float64, error) {
	doc, err := r.feed.Fetch(ctx, date)
	if err != nil {
		return 0, err
	}

	node, err := r.lookup(doc, currency)
	if err != nil {
		return 0, err
	}

	// Native base rates are the quoted value, as published per nominal units
	if r.isNative(base) {
		return node.Value, nil
	}

	baseNode, err := r.lookup(doc, base)
	if err != nil {
		return 0, err
	}

	rate := (node.Value / baseNode.Value) * (float64(baseNode.Nominal) / float64(node.Nominal))

	r.logger.Debug(
		"resolved cross rate",
		"currency", currency,
		"base", base,
		"date", date.Format(types.DateLayout),
		"rate", rate,
	)

	return rate, nil
}

// lookup returns the node for the currency.
// The native base is not quoted by the feed, and is worth exactly one unit
func (r *Resolver) lookup(doc *cbr.Document, currency types.Currency) (types.CurrencyNode, error) {
	if r.isNative(currency) {
		return types.CurrencyNode{
			Code:    currency,
			Value:   1,
			Nominal: 1,
		}, nil
	}

	return doc.Lookup(currency)
}

func (r *Resolver) isNative(c types.Currency) bool {
	if c == r.nativeBase {
		return true
	}

	// RUB and RUR denote the same currency
	return currencies.IsRouble(r.nativeBase) && currencies.IsRouble(c)
}

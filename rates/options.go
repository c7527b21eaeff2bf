package rates

import (
	"log/slog"

	"github.com/sig-0/cbrates/storage/types"
)

type Option func(r *Resolver)

// WithLogger specifies the logger for the resolver
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithNativeBase specifies the currency the feed quotes against.
// Defaults to RUR
func WithNativeBase(c types.Currency) Option {
	return func(r *Resolver) {
		r.nativeBase = c
	}
}

package currencies

import "github.com/sig-0/cbrates/storage/types"

var (
	// RUR is the native base currency of the CBR daily feed
	RUR types.Currency = "RUR"

	// RUB is the ISO 4217 code of the rouble, accepted as an alias of RUR
	RUB types.Currency = "RUB"

	USD types.Currency = "USD"
	EUR types.Currency = "EUR"
	CNY types.Currency = "CNY"
	GBP types.Currency = "GBP"
	JPY types.Currency = "JPY"
	TRY types.Currency = "TRY"
)

// IsRouble returns true if the currency denotes the rouble under either code
func IsRouble(c types.Currency) bool {
	return c == RUR || c == RUB
}

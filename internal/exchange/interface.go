package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client is the contract with the exchange connectivity collaborator. The
// gateway is the only caller; everything above it consumes gateway results.
type Client interface {
	// FetchTicker returns the current top-of-book for a venue-scoped symbol.
	FetchTicker(ctx context.Context, venue, symbol string) (*TickerResponse, error)
	// FetchMarkets lists the symbols currently tradable on a venue.
	FetchMarkets(ctx context.Context, venue string) (*MarketsResponse, error)
	// PlaceMarketOrder submits a market order. The client order ID inside the
	// request de-duplicates resubmissions on the connector side.
	PlaceMarketOrder(ctx context.Context, req *OrderRequest) (*FillResult, error)
	// Close releases any held resources.
	Close() error
}

// TradingFee returns the taker fee to use for a ticker, falling back to a
// default when the connector does not report one.
func TradingFee(t *TickerResponse, fallback decimal.Decimal) decimal.Decimal {
	if t != nil && t.Fee.IsPositive() {
		return t.Fee
	}
	return fallback
}

var _ Client = (*HTTPClient)(nil)

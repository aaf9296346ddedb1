package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerResponse is the connector's top-of-book payload for one symbol.
type TickerResponse struct {
	Venue     string          `json:"venue"`
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	BidVolume decimal.Decimal `json:"bid_volume"`
	AskVolume decimal.Decimal `json:"ask_volume"`
	Fee       decimal.Decimal `json:"fee"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderRequest asks the connector to place one market order. ClientOrderID is
// the idempotency key: resubmitting the same ID must not create a second order.
type OrderRequest struct {
	Venue         string          `json:"venue"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Amount        decimal.Decimal `json:"amount"`
	ClientOrderID string          `json:"client_order_id"`
}

// FillResult reports how a market order actually filled.
type FillResult struct {
	OrderID      string          `json:"order_id"`
	FilledAmount decimal.Decimal `json:"filled_amount"`
	AvgFillPrice decimal.Decimal `json:"avg_fill_price"`
	Status       string          `json:"status"`
}

// MarketsResponse lists the symbols a venue currently trades.
type MarketsResponse struct {
	Venue   string   `json:"venue"`
	Symbols []string `json:"symbols"`
}

// ErrorResponse is the connector's error payload. Code carries the error kind
// ("network", "rate_limited", "symbol_not_found", "rejected",
// "insufficient_balance") so the gateway can classify it.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

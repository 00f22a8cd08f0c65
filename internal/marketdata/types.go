package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the aggressor side of a trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Quote is one update of the best bid and offer
type Quote struct {
	Exchange       string
	Symbol         string
	Timestamp      time.Time // exchange timestamp
	LocalTimestamp time.Time // vendor receive time
	AskAmount      float64
	AskPrice       decimal.Decimal
	BidPrice       decimal.Decimal
	BidAmount      float64
}

// Trade is one executed trade
type Trade struct {
	Exchange       string
	Symbol         string
	Timestamp      time.Time
	LocalTimestamp time.Time
	ID             string
	Side           Side
	Price          decimal.Decimal
	Amount         float64
}

// IsBuy reports whether the buyer was the aggressor
func (t Trade) IsBuy() bool {
	return t.Side == SideBuy
}

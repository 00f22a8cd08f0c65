// Package orderflow computes order-flow imbalance, trade-flow imbalance, mid price
// changes and average depth from best bid/offer quotes and trades.
package orderflow

import (
	"math"

	"github.com/shopspring/decimal"

	"impactcli/internal/marketdata"
)

// DefaultTickSize is the price increment of the instrument
const DefaultTickSize = 0.01

// MidPriceTicks returns the mid price expressed in ticks
func MidPriceTicks(ask, bid decimal.Decimal, tick float64) float64 {
	twoTicks := decimal.NewFromFloat(tick).Mul(decimal.NewFromInt(2))
	return ask.Add(bid).Div(twoTicks).InexactFloat64()
}

// EventFlows returns the order-flow contribution e_n of every quote update:
//
//	e_n = 1{ΔPb>=0}·qb_n - 1{ΔPb<=0}·qb_{n-1} - 1{ΔPa<=0}·qa_n + 1{ΔPa>=0}·qa_{n-1}
//
// The first update has no predecessor and yields NaN.
func EventFlows(quotes []marketdata.Quote) []float64 {
	flows := make([]float64, len(quotes))
	for n := range quotes {
		if n == 0 {
			flows[n] = math.NaN()
			continue
		}
		prev, cur := quotes[n-1], quotes[n]
		bidMove := cur.BidPrice.Cmp(prev.BidPrice)
		askMove := cur.AskPrice.Cmp(prev.AskPrice)

		var e float64
		if bidMove >= 0 {
			e += cur.BidAmount
		}
		if bidMove <= 0 {
			e -= prev.BidAmount
		}
		if askMove <= 0 {
			e -= cur.AskAmount
		}
		if askMove >= 0 {
			e += prev.AskAmount
		}
		flows[n] = e
	}
	return flows
}

// SignedAmount is the traded amount signed by the aggressor: positive for buys
func SignedAmount(trade marketdata.Trade) float64 {
	if trade.IsBuy() {
		return trade.Amount
	}
	return -trade.Amount
}

// MidPrices returns the mid price in ticks of every quote
func MidPrices(quotes []marketdata.Quote, tick float64) []float64 {
	mids := make([]float64, len(quotes))
	for i, q := range quotes {
		mids[i] = MidPriceTicks(q.AskPrice, q.BidPrice, tick)
	}
	return mids
}

// SignedAmounts applies SignedAmount to every trade
func SignedAmounts(trades []marketdata.Trade) []float64 {
	out := make([]float64, len(trades))
	for i, tr := range trades {
		out[i] = SignedAmount(tr)
	}
	return out
}

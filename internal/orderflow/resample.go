package orderflow

import (
	"math"
	"slices"
	"time"

	"impactcli/internal/marketdata"
)

// Point is one bin of a resampled series
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Aggregator reduces the values that fall into one bin
type Aggregator func(values []float64) float64

// Sum adds the non-NaN values. An empty bin sums to 0.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// Change is last minus first when the bin holds at least two values, otherwise 0
func Change(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return values[len(values)-1] - values[0]
}

// BinStart floors t to a multiple of width counted from the Unix epoch
func BinStart(t time.Time, width time.Duration) time.Time {
	ns := t.UnixNano()
	w := int64(width)
	start := ns - ns%w
	if ns%w < 0 {
		start -= w
	}
	return time.Unix(0, start).UTC()
}

// Resample groups time-ordered observations into epoch-aligned bins of width and
// reduces each bin with agg. Every bin from the first observation's to the last
// observation's is returned, empty ones included.
func Resample(times []time.Time, values []float64, width time.Duration, agg Aggregator) []Point {
	if len(times) == 0 {
		return nil
	}

	first := BinStart(times[0], width)
	last := BinStart(times[len(times)-1], width)
	n := int(last.Sub(first)/width) + 1

	points := make([]Point, 0, n)
	i := 0
	for bin := first; !bin.After(last); bin = bin.Add(width) {
		end := bin.Add(width)
		j := i
		for j < len(times) && times[j].Before(end) {
			j++
		}
		points = append(points, Point{Timestamp: bin, Value: agg(values[i:j])})
		i = j
	}
	return points
}

// Bar is one resampling interval of the prepared dataset
type Bar struct {
	Timestamp     time.Time
	DeltaMidPrice float64
	OFI           float64
	TFI           float64
}

// Value returns the named regressor or response column
func (b Bar) Value(name string) (float64, bool) {
	switch name {
	case "delta_midprice":
		return b.DeltaMidPrice, true
	case "OFI":
		return b.OFI, true
	case "TFI":
		return b.TFI, true
	}
	return 0, false
}

// BuildBars resamples quotes and trades to interval and joins the mid price change,
// OFI and TFI on the union of their bins. A bin covered only by trades has NaN
// mid price change and OFI; a bin covered only by quotes has NaN TFI.
func BuildBars(quotes []marketdata.Quote, trades []marketdata.Trade, interval time.Duration, tick float64) []Bar {
	quoteTimes := make([]time.Time, len(quotes))
	for i, q := range quotes {
		quoteTimes[i] = q.Timestamp
	}
	tradeTimes := make([]time.Time, len(trades))
	for i, tr := range trades {
		tradeTimes[i] = tr.Timestamp
	}

	deltas := Resample(quoteTimes, MidPrices(quotes, tick), interval, Change)
	ofi := Resample(quoteTimes, EventFlows(quotes), interval, Sum)
	tfi := Resample(tradeTimes, SignedAmounts(trades), interval, Sum)

	rows := make(map[int64]*Bar)
	var order []int64
	row := func(ts time.Time) *Bar {
		key := ts.UnixNano()
		if b, ok := rows[key]; ok {
			return b
		}
		b := &Bar{Timestamp: ts, DeltaMidPrice: math.NaN(), OFI: math.NaN(), TFI: math.NaN()}
		rows[key] = b
		order = append(order, key)
		return b
	}

	for i := range deltas {
		b := row(deltas[i].Timestamp)
		b.DeltaMidPrice = deltas[i].Value
		b.OFI = ofi[i].Value
	}
	for _, p := range tfi {
		row(p.Timestamp).TFI = p.Value
	}

	slices.Sort(order)
	bars := make([]Bar, len(order))
	for i, key := range order {
		bars[i] = *rows[key]
	}
	return bars
}

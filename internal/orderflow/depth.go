package orderflow

import (
	"math"
	"time"

	"impactcli/internal/marketdata"
)

// DepthPoint is the average depth of one bucket
type DepthPoint struct {
	Timestamp time.Time
	AvgDepth  float64
}

// AverageDepth estimates the depth of the book from the size at the best quotes
// whenever they move:
//
//	0.5 · ( Σ[1{ΔPb<0}·qb_n + 1{ΔPb>0}·qb_{n-1}] / #{ΔPb≠0}
//	      + Σ[1{ΔPa>0}·qa_n + 1{ΔPa<0}·qa_{n-1}] / #{ΔPa≠0} )
//
// The first quote has no price change; it adds nothing to the sums but is counted
// in both denominators. An empty group yields NaN.
func AverageDepth(quotes []marketdata.Quote) float64 {
	if len(quotes) == 0 {
		return math.NaN()
	}

	var bidSum, askSum float64
	bidMoves, askMoves := 1, 1
	for n := 1; n < len(quotes); n++ {
		prev, cur := quotes[n-1], quotes[n]

		switch cur.BidPrice.Cmp(prev.BidPrice) {
		case -1:
			bidSum += cur.BidAmount
			bidMoves++
		case 1:
			bidSum += prev.BidAmount
			bidMoves++
		}

		switch cur.AskPrice.Cmp(prev.AskPrice) {
		case 1:
			askSum += cur.AskAmount
			askMoves++
		case -1:
			askSum += prev.AskAmount
			askMoves++
		}
	}

	return 0.5 * (bidSum/float64(bidMoves) + askSum/float64(askMoves))
}

// DepthSeries computes AverageDepth for every epoch-aligned bucket of width between
// the first and the last quote. Differences never cross bucket boundaries.
func DepthSeries(quotes []marketdata.Quote, width time.Duration) []DepthPoint {
	if len(quotes) == 0 {
		return nil
	}

	first := BinStart(quotes[0].Timestamp, width)
	last := BinStart(quotes[len(quotes)-1].Timestamp, width)

	var points []DepthPoint
	i := 0
	for bucket := first; !bucket.After(last); bucket = bucket.Add(width) {
		end := bucket.Add(width)
		j := i
		for j < len(quotes) && quotes[j].Timestamp.Before(end) {
			j++
		}
		points = append(points, DepthPoint{Timestamp: bucket, AvgDepth: AverageDepth(quotes[i:j])})
		i = j
	}
	return points
}

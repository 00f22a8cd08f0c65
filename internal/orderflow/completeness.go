package orderflow

import "time"

// CompletenessReport compares bar timestamps with the regular grid they should fill
type CompletenessReport struct {
	First    time.Time
	Last     time.Time
	Expected int
	Present  int
	Missing  []time.Time
}

// Complete reports whether every grid timestamp has a bar
func (r CompletenessReport) Complete() bool {
	return len(r.Missing) == 0
}

// Completeness checks that bars cover every interval between the first and last bar.
// Bars must be sorted by timestamp.
func Completeness(bars []Bar, interval time.Duration) CompletenessReport {
	if len(bars) == 0 {
		return CompletenessReport{}
	}

	report := CompletenessReport{
		First: bars[0].Timestamp,
		Last:  bars[len(bars)-1].Timestamp,
	}

	present := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		present[b.Timestamp.UnixNano()] = struct{}{}
	}

	for ts := report.First; !ts.After(report.Last); ts = ts.Add(interval) {
		report.Expected++
		if _, ok := present[ts.UnixNano()]; ok {
			report.Present++
		} else {
			report.Missing = append(report.Missing, ts)
		}
	}
	return report
}

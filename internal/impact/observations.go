package impact

import (
	"math"
	"time"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/orderflow"
)

const dateLayout = "2006-01-02"

// Observation pairs the fitted price impact of a bucket with its average depth
type Observation struct {
	Timestamp time.Time
	Beta      float64
	AvgDepth  float64
	StdErr    float64
	TValue    float64
	PValue    float64
	RSquared  float64
	NObs      int
}

// Join aligns coefficients and depths on the bucket timestamp over the range of the
// depth series. Buckets missing from either side get NaN values.
func Join(coefs []Coefficient, depths []orderflow.DepthPoint, bucket time.Duration) []Observation {
	if len(depths) == 0 || bucket <= 0 {
		return nil
	}

	first, last := depths[0].Timestamp, depths[0].Timestamp
	depthAt := make(map[int64]float64, len(depths))
	for _, d := range depths {
		depthAt[d.Timestamp.UnixNano()] = d.AvgDepth
		if d.Timestamp.Before(first) {
			first = d.Timestamp
		}
		if d.Timestamp.After(last) {
			last = d.Timestamp
		}
	}

	coefAt := make(map[int64]Coefficient, len(coefs))
	for _, c := range coefs {
		coefAt[c.Timestamp.UnixNano()] = c
	}

	var obs []Observation
	for ts := first; !ts.After(last); ts = ts.Add(bucket) {
		key := ts.UnixNano()
		c, ok := coefAt[key]
		if !ok {
			c = unfitted(ts)
		}
		depth, ok := depthAt[key]
		if !ok {
			depth = math.NaN()
		}
		obs = append(obs, Observation{
			Timestamp: ts.UTC(),
			Beta:      c.Beta,
			AvgDepth:  depth,
			StdErr:    c.StdErr,
			TValue:    c.TValue,
			PValue:    c.PValue,
			RSquared:  c.RSquared,
			NObs:      c.NObs,
		})
	}
	return obs
}

// FilterRange keeps observations from the start of start through the end of end.
// Both are YYYY-MM-DD dates and end must be after start.
func FilterRange(obs []Observation, start, end string) ([]Observation, error) {
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid start date " + start)
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid end date " + end)
	}
	if !to.After(from) {
		return nil, apperrors.NewValidationError("end date should be greater than start date")
	}

	until := to.AddDate(0, 0, 1)
	var out []Observation
	for _, o := range obs {
		if !o.Timestamp.Before(from) && o.Timestamp.Before(until) {
			out = append(out, o)
		}
	}
	return out, nil
}

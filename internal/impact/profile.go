package impact

import (
	"fmt"
	"math"
	"time"

	apperrors "impactcli/internal/errors"
)

const day = 24 * time.Hour

// ProfilePoint is the time-of-day average of one slot
type ProfilePoint struct {
	Slot            string
	Offset          time.Duration
	Beta            float64
	Depth           float64
	NormalizedBeta  float64
	NormalizedDepth float64
	Observations    int
}

// SlotLabels returns the HH:MM start of every bucket in a day
func SlotLabels(bucket time.Duration) []string {
	if bucket <= 0 {
		return nil
	}
	labels := make([]string, 0, int(day/bucket))
	for off := time.Duration(0); off < day; off += bucket {
		labels = append(labels, fmt.Sprintf("%02d:%02d", int(off.Hours()), int(off.Minutes())%60))
	}
	return labels
}

// HalfHourLabels returns 00:00, 00:30, ..., 23:30
func HalfHourLabels() []string {
	return SlotLabels(30 * time.Minute)
}

// Profile averages beta and depth per time-of-day slot and normalizes each slot mean
// by the mean over all observations. NaN values are skipped; slots without data are NaN.
func Profile(obs []Observation, bucket time.Duration) ([]ProfilePoint, error) {
	if bucket <= 0 || day%bucket != 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("bucket %s does not divide a day", bucket))
	}

	labels := SlotLabels(bucket)
	betas := make([]meanAcc, len(labels))
	depths := make([]meanAcc, len(labels))
	var globalBeta, globalDepth meanAcc

	for _, o := range obs {
		slot := int(timeOfDay(o.Timestamp) / bucket)
		betas[slot].add(o.Beta)
		depths[slot].add(o.AvgDepth)
		globalBeta.add(o.Beta)
		globalDepth.add(o.AvgDepth)
	}

	gb, gd := globalBeta.mean(), globalDepth.mean()
	points := make([]ProfilePoint, len(labels))
	for i, label := range labels {
		b, d := betas[i].mean(), depths[i].mean()
		points[i] = ProfilePoint{
			Slot:            label,
			Offset:          time.Duration(i) * bucket,
			Beta:            b,
			Depth:           d,
			NormalizedBeta:  b / gb,
			NormalizedDepth: d / gd,
			Observations:    max(betas[i].n, depths[i].n),
		}
	}
	return points, nil
}

func timeOfDay(t time.Time) time.Duration {
	t = t.UTC()
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
}

// meanAcc is a NaN-skipping running mean
type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	m.sum += v
	m.n++
}

func (m meanAcc) mean() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.sum / float64(m.n)
}

package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/impact"
)

// Summary condenses one analysis run
type Summary struct {
	Start         string
	End           string
	Buckets       int
	FittedBuckets int
	MeanBeta      float64
	MinBeta       float64
	MaxBeta       float64
	MeanDepth     float64
	HighestSlot   string
	HighestBeta   float64
	LowestSlot    string
	LowestBeta    float64
	Correlation   float64
	GeneratedAt   time.Time
}

// Summarize computes the summary statistics. Missing values are skipped.
func Summarize(start, end string, obs []impact.Observation, profile []impact.ProfilePoint) Summary {
	s := Summary{
		Start:       start,
		End:         end,
		Buckets:     len(obs),
		MeanBeta:    math.NaN(),
		MinBeta:     math.NaN(),
		MaxBeta:     math.NaN(),
		MeanDepth:   math.NaN(),
		HighestBeta: math.NaN(),
		LowestBeta:  math.NaN(),
		Correlation: math.NaN(),
		GeneratedAt: time.Now().UTC(),
	}

	var betas, depths, pairedBeta, pairedDepth []float64
	for _, o := range obs {
		if !math.IsNaN(o.Beta) {
			betas = append(betas, o.Beta)
		}
		if !math.IsNaN(o.AvgDepth) {
			depths = append(depths, o.AvgDepth)
		}
		if !math.IsNaN(o.Beta) && !math.IsNaN(o.AvgDepth) {
			pairedBeta = append(pairedBeta, o.Beta)
			pairedDepth = append(pairedDepth, o.AvgDepth)
		}
	}
	s.FittedBuckets = len(betas)

	if len(betas) > 0 {
		s.MeanBeta = stat.Mean(betas, nil)
		s.MinBeta = floats.Min(betas)
		s.MaxBeta = floats.Max(betas)
	}
	if len(depths) > 0 {
		s.MeanDepth = stat.Mean(depths, nil)
	}
	if len(pairedBeta) > 1 {
		s.Correlation = stat.Correlation(pairedBeta, pairedDepth, nil)
	}

	for _, p := range profile {
		if math.IsNaN(p.NormalizedBeta) {
			continue
		}
		if math.IsNaN(s.HighestBeta) || p.NormalizedBeta > s.HighestBeta {
			s.HighestSlot, s.HighestBeta = p.Slot, p.NormalizedBeta
		}
		if math.IsNaN(s.LowestBeta) || p.NormalizedBeta < s.LowestBeta {
			s.LowestSlot, s.LowestBeta = p.Slot, p.NormalizedBeta
		}
	}

	return s
}

// WriteTo renders the summary as plain text
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintln(&b, "=== PRICE IMPACT OF ORDER FLOW IMBALANCE ===")
	fmt.Fprintf(&b, "Period:            %s to %s\n", s.Start, s.End)
	fmt.Fprintf(&b, "Buckets:           %d (%d fitted)\n", s.Buckets, s.FittedBuckets)
	fmt.Fprintf(&b, "Mean beta:         %.6f\n", s.MeanBeta)
	fmt.Fprintf(&b, "Min / max beta:    %.6f / %.6f\n", s.MinBeta, s.MaxBeta)
	fmt.Fprintf(&b, "Mean depth:        %.4f\n", s.MeanDepth)
	fmt.Fprintf(&b, "Highest impact:    %s (%.3f x mean)\n", s.HighestSlot, s.HighestBeta)
	fmt.Fprintf(&b, "Lowest impact:     %s (%.3f x mean)\n", s.LowestSlot, s.LowestBeta)
	fmt.Fprintf(&b, "corr(beta, depth): %.4f\n", s.Correlation)
	fmt.Fprintf(&b, "Generated:         %s\n", s.GeneratedAt.Format(time.RFC3339))

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// SaveSummaryReport writes the summary text file
func SaveSummaryReport(s Summary, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return apperrors.NewStorageError("create output directory", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return apperrors.NewStorageError("create summary file", err).WithContext("path", outputPath)
	}
	defer file.Close()

	if _, err := s.WriteTo(file); err != nil {
		return apperrors.NewStorageError("write summary", err).WithContext("path", outputPath)
	}
	return file.Close()
}

// PrintProfileTable prints the time-of-day profile as a fixed-width table
func PrintProfileTable(w io.Writer, profile []impact.ProfilePoint) {
	fmt.Fprintln(w, "\n=== INTRADAY PROFILE ===")
	fmt.Fprintln(w, "Time  |         Beta |      Depth | Norm. Beta | Norm. Depth")
	fmt.Fprintln(w, "------|--------------|------------|------------|------------")

	for _, p := range profile {
		fmt.Fprintf(w, "%-5s | %12.6f | %10.4f | %10.3f | %11.3f\n",
			p.Slot, p.Beta, p.Depth, p.NormalizedBeta, p.NormalizedDepth)
	}
}

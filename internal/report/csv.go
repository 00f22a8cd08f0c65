package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/impact"
	"impactcli/internal/preparation"
)

var (
	observationsHeader = []string{"timestamp", "beta_coef", "avg_depth", "std_err", "t_value", "p_value", "r_squared", "n_obs"}
	profileHeader      = []string{"time", "beta", "depth", "normalized_beta", "normalized_depth"}
)

// SaveObservationsCSV writes one row per bucket. NaN becomes an empty field.
func SaveObservationsCSV(obs []impact.Observation, outputPath string) error {
	if len(obs) == 0 {
		return apperrors.NewInsufficientDataError("no observations to save")
	}

	records := make([][]string, 0, len(obs)+1)
	records = append(records, observationsHeader)
	for _, o := range obs {
		records = append(records, []string{
			preparation.FormatTimestamp(o.Timestamp),
			preparation.FormatFloat(o.Beta),
			preparation.FormatFloat(o.AvgDepth),
			preparation.FormatFloat(o.StdErr),
			preparation.FormatFloat(o.TValue),
			preparation.FormatFloat(o.PValue),
			preparation.FormatFloat(o.RSquared),
			strconv.Itoa(o.NObs),
		})
	}
	return writeRecords(outputPath, records)
}

// SaveProfileCSV writes one row per time-of-day slot
func SaveProfileCSV(profile []impact.ProfilePoint, outputPath string) error {
	if len(profile) == 0 {
		return apperrors.NewInsufficientDataError("no profile to save")
	}

	records := make([][]string, 0, len(profile)+1)
	records = append(records, profileHeader)
	for _, p := range profile {
		records = append(records, []string{
			p.Slot,
			preparation.FormatFloat(p.Beta),
			preparation.FormatFloat(p.Depth),
			preparation.FormatFloat(p.NormalizedBeta),
			preparation.FormatFloat(p.NormalizedDepth),
		})
	}
	return writeRecords(outputPath, records)
}

// LoadObservationsCSV reads a file written by SaveObservationsCSV
func LoadObservationsCSV(path string) ([]impact.Observation, error) {
	var obs []impact.Observation
	err := preparation.ReadTable(path, observationsHeader, func(rec []string) error {
		ts, err := preparation.ParseTimestamp(rec[0])
		if err != nil {
			return err
		}
		vals, err := preparation.ParseFloats(rec[1:7])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(rec[7])
		if err != nil {
			return err
		}
		obs = append(obs, impact.Observation{
			Timestamp: ts,
			Beta:      vals[0],
			AvgDepth:  vals[1],
			StdErr:    vals[2],
			TValue:    vals[3],
			PValue:    vals[4],
			RSquared:  vals[5],
			NObs:      n,
		})
		return nil
	})
	return obs, err
}

func writeRecords(outputPath string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return apperrors.NewStorageError("create output directory", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return apperrors.NewStorageError("create CSV file", err).WithContext("path", outputPath)
	}
	defer file.Close()

	if err := csv.NewWriter(file).WriteAll(records); err != nil {
		return apperrors.NewStorageError("write CSV", err).WithContext("path", outputPath)
	}
	return file.Close()
}

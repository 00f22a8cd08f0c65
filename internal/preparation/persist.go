package preparation

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/orderflow"
)

// TimestampLayout is used for every timestamp written by the pipeline, always in UTC
const TimestampLayout = "2006-01-02 15:04:05"

var (
	barsHeader   = []string{"timestamp", "delta_midprice", "OFI", "TFI"}
	depthsHeader = []string{"timestamp", "avg_depth"}
)

// SaveBars writes bars as timestamp,delta_midprice,OFI,TFI. NaN becomes an empty field.
func SaveBars(bars []orderflow.Bar, outputPath string) error {
	return writeCSV(outputPath, barsHeader, len(bars), func(i int) []string {
		b := bars[i]
		return []string{
			FormatTimestamp(b.Timestamp),
			FormatFloat(b.DeltaMidPrice),
			FormatFloat(b.OFI),
			FormatFloat(b.TFI),
		}
	})
}

// SaveDepths writes depths as timestamp,avg_depth
func SaveDepths(depths []orderflow.DepthPoint, outputPath string) error {
	return writeCSV(outputPath, depthsHeader, len(depths), func(i int) []string {
		return []string{FormatTimestamp(depths[i].Timestamp), FormatFloat(depths[i].AvgDepth)}
	})
}

// Save writes both files of the dataset
func (d *Dataset) Save(barsPath, depthsPath string) error {
	if err := SaveBars(d.Bars, barsPath); err != nil {
		return err
	}
	return SaveDepths(d.Depths, depthsPath)
}

func writeCSV(outputPath string, header []string, n int, row func(int) []string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return apperrors.NewStorageError("create output directory", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return apperrors.NewStorageError("create CSV file", err).WithContext("path", outputPath)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return apperrors.NewStorageError("write CSV header", err)
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(row(i)); err != nil {
			return apperrors.NewStorageError("write CSV record", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("flush CSV", err).WithContext("path", outputPath)
	}
	return file.Close()
}

// LoadBars reads a file written by SaveBars. Empty fields become NaN.
func LoadBars(path string) ([]orderflow.Bar, error) {
	var bars []orderflow.Bar
	err := ReadTable(path, barsHeader, func(rec []string) error {
		ts, err := ParseTimestamp(rec[0])
		if err != nil {
			return err
		}
		vals, err := ParseFloats(rec[1:])
		if err != nil {
			return err
		}
		bars = append(bars, orderflow.Bar{Timestamp: ts, DeltaMidPrice: vals[0], OFI: vals[1], TFI: vals[2]})
		return nil
	})
	return bars, err
}

// LoadDepths reads a file written by SaveDepths
func LoadDepths(path string) ([]orderflow.DepthPoint, error) {
	var depths []orderflow.DepthPoint
	err := ReadTable(path, depthsHeader, func(rec []string) error {
		ts, err := ParseTimestamp(rec[0])
		if err != nil {
			return err
		}
		vals, err := ParseFloats(rec[1:])
		if err != nil {
			return err
		}
		depths = append(depths, orderflow.DepthPoint{Timestamp: ts, AvgDepth: vals[0]})
		return nil
	})
	return depths, err
}

// ReadTable reads a CSV file whose first line must equal header and calls row for
// every record. Row errors are reported with their line number.
func ReadTable(path string, header []string, row func([]string) error) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError(filepath.Base(path), err).WithContext("path", path)
		}
		return apperrors.NewStorageError("open CSV file", err).WithContext("path", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)

	got, err := reader.Read()
	if err != nil {
		return apperrors.NewParsingError("read CSV header", err).WithContext("path", path)
	}
	if strings.Join(got, ",") != strings.Join(header, ",") {
		return apperrors.NewParsingError(fmt.Sprintf("unexpected header %q", strings.Join(got, ",")), nil).
			WithContext("path", path)
	}

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apperrors.NewParsingError(fmt.Sprintf("read line %d", line), err).WithContext("path", path)
		}
		if err := row(rec); err != nil {
			return apperrors.NewParsingError(fmt.Sprintf("parse line %d", line), err).WithContext("path", path)
		}
	}
}

// FormatTimestamp renders t in UTC with TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string as UTC
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// FormatFloat renders v with the shortest exact representation, NaN as an empty field
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseFloats parses every field, mapping empty fields to NaN
func ParseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

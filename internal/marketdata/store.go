package marketdata

import (
	"fmt"
	"path/filepath"
	"time"

	apperrors "impactcli/internal/errors"
)

// DayLayout names the per-day vendor files
const DayLayout = "2006-01-02"

// Store locates vendor files for one exchange and symbol:
// <dir>/quotes/<YYYY-MM-DD>.csv.gz and <dir>/trades/<YYYY-MM-DD>.csv.gz
type Store struct {
	Dir string
}

// NewStore returns a store rooted at <raw>/<exchange>/<symbol>
func NewStore(rawDir, exchange, symbol string) *Store {
	return &Store{Dir: filepath.Join(rawDir, exchange, symbol)}
}

func (s *Store) QuotesPath(day string) string {
	return filepath.Join(s.Dir, "quotes", day+".csv.gz")
}

func (s *Store) TradesPath(day string) string {
	return filepath.Join(s.Dir, "trades", day+".csv.gz")
}

// Day is the vendor data of one calendar day
type Day struct {
	Date     string
	Quotes   []Quote
	Trades   []Trade
	OneSided int // quote rows dropped for an empty bid or ask
}

// LoadDay reads quotes and trades for one calendar day
func (s *Store) LoadDay(day string) (*Day, error) {
	quotes, oneSided, err := loadQuotes(s.QuotesPath(day))
	if err != nil {
		return nil, err
	}
	trades, err := LoadTrades(s.TradesPath(day))
	if err != nil {
		return nil, err
	}
	return &Day{Date: day, Quotes: quotes, Trades: trades, OneSided: oneSided}, nil
}

// DateRange returns every date from start through end inclusive
func DateRange(start, end string) ([]string, error) {
	first, err := time.Parse(DayLayout, start)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid start date %q", start))
	}
	last, err := time.Parse(DayLayout, end)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid end date %q", end))
	}
	if last.Before(first) {
		return nil, apperrors.NewValidationError("end date should not be before start date")
	}

	var days []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayLayout))
	}
	return days, nil
}

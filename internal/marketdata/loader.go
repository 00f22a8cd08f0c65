package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/shopspring/decimal"

	apperrors "impactcli/internal/errors"
)

var (
	quoteColumns = []string{"exchange", "symbol", "timestamp", "local_timestamp", "ask_amount", "ask_price", "bid_price", "bid_amount"}
	tradeColumns = []string{"exchange", "symbol", "timestamp", "local_timestamp", "id", "side", "price", "amount"}
)

// LoadQuotes reads a gzip-compressed quotes file. One-sided rows are dropped.
func LoadQuotes(path string) ([]Quote, error) {
	quotes, _, err := loadQuotes(path)
	return quotes, err
}

func loadQuotes(path string) ([]Quote, int, error) {
	var (
		quotes   []Quote
		oneSided int
	)
	err := withGzipFile(path, func(r io.Reader) error {
		var err error
		quotes, oneSided, err = readQuotes(r)
		return err
	})
	return quotes, oneSided, err
}

// LoadTrades reads a gzip-compressed trades file
func LoadTrades(path string) ([]Trade, error) {
	var trades []Trade
	err := withGzipFile(path, func(r io.Reader) error {
		var err error
		trades, err = ReadTrades(r)
		return err
	})
	return trades, err
}

func withGzipFile(path string, fn func(io.Reader) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NewNotFoundError(filepath.Base(path), err).WithContext("path", path)
		}
		return apperrors.NewStorageError("open market data file", err).WithContext("path", path)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return apperrors.NewParsingError("open gzip stream", err).WithContext("path", path)
	}
	defer zr.Close()

	if err := fn(zr); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("path", path)
		}
		return err
	}
	return nil
}

// ReadQuotes reads quotes from an uncompressed CSV stream with a header row.
// Columns are matched by name, so their order does not matter. Rows with an
// empty side of the book are skipped.
func ReadQuotes(r io.Reader) ([]Quote, error) {
	quotes, _, err := readQuotes(r)
	return quotes, err
}

// readQuotes also returns the number of one-sided rows it skipped
func readQuotes(r io.Reader) ([]Quote, int, error) {
	reader, idx, err := openCSV(r, quoteColumns)
	if err != nil {
		return nil, 0, err
	}

	var (
		quotes   []Quote
		oneSided int
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, apperrors.NewParsingError(fmt.Sprintf("read quote line %d", line), err)
		}

		if isOneSided(record, idx) {
			oneSided++
			continue
		}

		q, err := parseQuote(record, idx)
		if err != nil {
			return nil, 0, apperrors.NewParsingError(fmt.Sprintf("parse quote line %d", line), err)
		}
		quotes = append(quotes, q)
	}

	return quotes, oneSided, nil
}

// isOneSided reports a row whose ask or bid side is blank, as vendors write it
// when that side of the book is empty
func isOneSided(record []string, idx map[string]int) bool {
	for _, col := range []string{"ask_price", "ask_amount", "bid_price", "bid_amount"} {
		if strings.TrimSpace(record[idx[col]]) == "" {
			return true
		}
	}
	return false
}

// ReadTrades reads trades from an uncompressed CSV stream with a header row
func ReadTrades(r io.Reader) ([]Trade, error) {
	reader, idx, err := openCSV(r, tradeColumns)
	if err != nil {
		return nil, err
	}

	var trades []Trade
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("read trade line %d", line), err)
		}

		tr, err := parseTrade(record, idx)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("parse trade line %d", line), err)
		}
		trades = append(trades, tr)
	}

	return trades, nil
}

// openCSV reads the header and maps every required column to its index
func openCSV(r io.Reader, required []string) (*csv.Reader, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, apperrors.NewParsingError("empty file", err)
		}
		return nil, nil, apperrors.NewParsingError("read header", err)
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(strings.ToLower(col))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, apperrors.NewParsingError(fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")), nil)
	}

	// the header fixes the field count for every following row
	reader.FieldsPerRecord = len(header)
	return reader, idx, nil
}

func parseQuote(record []string, idx map[string]int) (Quote, error) {
	ts, err := parseMicros(record[idx["timestamp"]])
	if err != nil {
		return Quote{}, fmt.Errorf("timestamp: %w", err)
	}
	local, err := parseMicros(record[idx["local_timestamp"]])
	if err != nil {
		return Quote{}, fmt.Errorf("local_timestamp: %w", err)
	}
	askAmount, err := parseAmount(record[idx["ask_amount"]])
	if err != nil {
		return Quote{}, fmt.Errorf("ask_amount: %w", err)
	}
	askPrice, err := decimal.NewFromString(record[idx["ask_price"]])
	if err != nil {
		return Quote{}, fmt.Errorf("ask_price: %w", err)
	}
	bidPrice, err := decimal.NewFromString(record[idx["bid_price"]])
	if err != nil {
		return Quote{}, fmt.Errorf("bid_price: %w", err)
	}
	bidAmount, err := parseAmount(record[idx["bid_amount"]])
	if err != nil {
		return Quote{}, fmt.Errorf("bid_amount: %w", err)
	}

	return Quote{
		Exchange:       record[idx["exchange"]],
		Symbol:         record[idx["symbol"]],
		Timestamp:      ts,
		LocalTimestamp: local,
		AskAmount:      askAmount,
		AskPrice:       askPrice,
		BidPrice:       bidPrice,
		BidAmount:      bidAmount,
	}, nil
}

func parseTrade(record []string, idx map[string]int) (Trade, error) {
	ts, err := parseMicros(record[idx["timestamp"]])
	if err != nil {
		return Trade{}, fmt.Errorf("timestamp: %w", err)
	}
	local, err := parseMicros(record[idx["local_timestamp"]])
	if err != nil {
		return Trade{}, fmt.Errorf("local_timestamp: %w", err)
	}
	price, err := decimal.NewFromString(record[idx["price"]])
	if err != nil {
		return Trade{}, fmt.Errorf("price: %w", err)
	}
	amount, err := parseAmount(record[idx["amount"]])
	if err != nil {
		return Trade{}, fmt.Errorf("amount: %w", err)
	}

	return Trade{
		Exchange:       record[idx["exchange"]],
		Symbol:         record[idx["symbol"]],
		Timestamp:      ts,
		LocalTimestamp: local,
		ID:             record[idx["id"]],
		Side:           Side(strings.ToLower(record[idx["side"]])),
		Price:          price,
		Amount:         amount,
	}, nil
}

// parseMicros converts microseconds since the Unix epoch into a UTC time
func parseMicros(s string) (time.Time, error) {
	us, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us).UTC(), nil
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

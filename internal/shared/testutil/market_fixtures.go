package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const (
	QuotesHeader = "exchange,symbol,timestamp,local_timestamp,ask_amount,ask_price,bid_price,bid_amount"
	TradesHeader = "exchange,symbol,timestamp,local_timestamp,id,side,price,amount"
)

// QuoteRow is one best bid/offer update written into a fixture file
type QuoteRow struct {
	At        time.Time
	AskAmount float64
	AskPrice  float64
	BidPrice  float64
	BidAmount float64
}

// TradeRow is one trade written into a fixture file
type TradeRow struct {
	At     time.Time
	ID     string
	Side   string
	Price  float64
	Amount float64
}

// QuotesCSV renders rows in the vendor quotes layout
func QuotesCSV(rows ...QuoteRow) string {
	var b strings.Builder
	b.WriteString(QuotesHeader + "\n")
	for _, r := range rows {
		us := strconv.FormatInt(r.At.UnixMicro(), 10)
		b.WriteString(strings.Join([]string{
			"binance-futures", "BTCUSDT", us, us,
			fmtFloat(r.AskAmount), fmtFloat(r.AskPrice), fmtFloat(r.BidPrice), fmtFloat(r.BidAmount),
		}, ",") + "\n")
	}
	return b.String()
}

// TradesCSV renders rows in the vendor trades layout
func TradesCSV(rows ...TradeRow) string {
	var b strings.Builder
	b.WriteString(TradesHeader + "\n")
	for i, r := range rows {
		us := strconv.FormatInt(r.At.UnixMicro(), 10)
		id := r.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		b.WriteString(strings.Join([]string{
			"binance-futures", "BTCUSDT", us, us,
			id, r.Side, fmtFloat(r.Price), fmtFloat(r.Amount),
		}, ",") + "\n")
	}
	return b.String()
}

// WriteGzip writes content gzip-compressed to path, creating parent directories
func WriteGzip(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

// WriteMarketDay writes the quotes and trades files for one day under
// <marketDir>/quotes and <marketDir>/trades
func WriteMarketDay(t *testing.T, marketDir string, day time.Time, quotes []QuoteRow, trades []TradeRow) {
	t.Helper()

	name := day.UTC().Format("2006-01-02") + ".csv.gz"
	WriteGzip(t, filepath.Join(marketDir, "quotes", name), QuotesCSV(quotes...))
	WriteGzip(t, filepath.Join(marketDir, "trades", name), TradesCSV(trades...))
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

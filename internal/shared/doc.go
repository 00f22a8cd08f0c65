// Package shared holds helpers used across the impact pipeline packages.
//
// The testutil subpackage provides:
//
//   - a buffered slog handler with assertions on captured records
//   - vendor quote and trade fixture writers (gzip CSV)
//
// Example usage:
//
//	func TestPrepare(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    testutil.WriteMarketDay(t, dir, day, quotes, trades)
//	    ...
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared

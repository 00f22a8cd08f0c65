// Package preparation builds the analysis dataset from vendor files: per trading day
// it resamples quotes and trades into bars of mid price change, order-flow imbalance
// and trade-flow imbalance, and computes the average depth of every bucket.
//
// Results are persisted as two CSV files, one for bars and one for depths, which the
// analysis stage reads back when it runs on its own.
package preparation

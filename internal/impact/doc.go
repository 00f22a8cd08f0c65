// Package impact estimates the price impact coefficient of order-flow imbalance in
// fixed intraday buckets, joins it with the average book depth of the same buckets
// and summarizes both as a time-of-day profile.
package impact

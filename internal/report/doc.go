// Package report presents the analysis: CSV and xlsx tables of the bucket
// coefficients and the intraday profile, a PNG chart of normalized beta and depth,
// and a plain text summary.
package report

// Package config provides centralized configuration management for the impact tools.
// It loads configuration from multiple sources, validates it, and resolves the
// directories every binary reads from and writes to.
//
// # Configuration Sources
//
// Configuration is assembled in the following order, later sources winning:
//
//  1. Default values (Default)
//  2. A YAML file given with -config, or config.yaml / configs/config.yaml
//  3. Environment variables
//  4. Command line flags, through LoadWithOverrides
//
// # Environment Variables
//
// All environment variables follow the pattern IMPACT_<SECTION>_<FIELD>:
//
//	IMPACT_MARKET_SYMBOL=BTCUSDT
//	IMPACT_PREPARATION_INTERVAL=10s
//	IMPACT_ANALYSIS_LAGS=4
//	IMPACT_ANALYSIS_REGRESSORS=OFI,TFI
//	IMPACT_LOGGING_LEVEL=debug
//	IMPACT_LOGGING_MAX_SIZE_MB=50
//
// # Validation
//
// Field constraints are expressed as validator struct tags. Relationships between
// fields are checked afterwards: the end date must follow the start date, the
// regression bucket must be a whole number of resampling intervals, and both the
// regression bucket and the depth bucket must divide a day so that time-of-day
// slots line up.
package config

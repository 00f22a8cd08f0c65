package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "impactcli/internal/errors"
)

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "IMPACT"

// DateLayout is the layout of all dates accepted on the command line and in config files
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Paths       PathsConfig       `yaml:"paths" envconfig:"PATHS"`
	Market      MarketConfig      `yaml:"market" envconfig:"MARKET"`
	Preparation PreparationConfig `yaml:"preparation" envconfig:"PREPARATION"`
	Analysis    AnalysisConfig    `yaml:"analysis" envconfig:"ANALYSIS"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`

	// Rotation of the log file; zero keeps the rotator's defaults
	MaxSizeMB  int  `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" validate:"min=0"`
	MaxBackups int  `yaml:"max_backups" envconfig:"MAX_BACKUPS" validate:"min=0"`
	MaxAgeDays int  `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS" validate:"min=0"`
	Compress   bool `yaml:"compress" envconfig:"COMPRESS"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	RawDir     string `yaml:"raw_dir" envconfig:"RAW_DIR" validate:"required"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// MarketConfig identifies the instrument whose order book is studied
type MarketConfig struct {
	Exchange string  `yaml:"exchange" envconfig:"EXCHANGE" validate:"required"`
	Symbol   string  `yaml:"symbol" envconfig:"SYMBOL" validate:"required"`
	TickSize float64 `yaml:"tick_size" envconfig:"TICK_SIZE" validate:"gt=0"`
}

// PreparationConfig controls how raw ticks are turned into bars
type PreparationConfig struct {
	StartDate   string        `yaml:"start_date" envconfig:"START_DATE" validate:"required"`
	EndDate     string        `yaml:"end_date" envconfig:"END_DATE" validate:"required"`
	Interval    time.Duration `yaml:"interval" envconfig:"INTERVAL" validate:"gt=0"`
	DepthBucket time.Duration `yaml:"depth_bucket" envconfig:"DEPTH_BUCKET" validate:"gt=0"`
	Workers     int           `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
}

// AnalysisConfig controls the per-bucket price impact regressions
type AnalysisConfig struct {
	Bucket     time.Duration `yaml:"bucket" envconfig:"BUCKET" validate:"gt=0"`
	Lags       int           `yaml:"lags" envconfig:"LAGS" validate:"min=0"`
	Covariance string        `yaml:"covariance" envconfig:"COVARIANCE" validate:"oneof=HAC nonrobust"`
	Regressors []string      `yaml:"regressors" envconfig:"REGRESSORS" validate:"min=1,unique,dive,oneof=OFI TFI"`
}

// TelemetryConfig controls tracing and the metrics textfile written at exit
type TelemetryConfig struct {
	Environment     string `yaml:"environment" envconfig:"ENVIRONMENT"`
	EnableTracing   bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	TraceFile       string `yaml:"trace_file" envconfig:"TRACE_FILE"`
	EnableMetrics   bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	MetricsTextfile string `yaml:"metrics_textfile" envconfig:"METRICS_TEXTFILE"`
}

// Start parses the configured start date
func (p PreparationConfig) Start() (time.Time, error) {
	return time.Parse(DateLayout, p.StartDate)
}

// End parses the configured end date
func (p PreparationConfig) End() (time.Time, error) {
	return time.Parse(DateLayout, p.EndDate)
}

// Load builds the configuration from defaults, then the YAML file at path (if any),
// then IMPACT_* environment variables, and validates the result.
// An empty path falls back to the well-known config locations.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with a final layer, typically command line flags,
// applied after the environment and before validation
func LoadWithOverrides(path string, override func(*Config)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if override != nil {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their values
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New()

// Validate checks field constraints and the relationships between intervals and dates
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}

	start, err := c.Preparation.Start()
	if err != nil {
		return apperrors.NewConfigError("invalid start date", err)
	}
	end, err := c.Preparation.End()
	if err != nil {
		return apperrors.NewConfigError("invalid end date", err)
	}
	if !end.After(start) {
		return apperrors.NewConfigError("end date should be greater than start date", nil).
			WithContext("start_date", c.Preparation.StartDate).
			WithContext("end_date", c.Preparation.EndDate)
	}

	if c.Analysis.Bucket%c.Preparation.Interval != 0 {
		return apperrors.NewConfigError(fmt.Sprintf("analysis bucket %s is not a multiple of interval %s",
			c.Analysis.Bucket, c.Preparation.Interval), nil)
	}
	if (24*time.Hour)%c.Analysis.Bucket != 0 {
		return apperrors.NewConfigError(fmt.Sprintf("analysis bucket %s does not divide a day", c.Analysis.Bucket), nil)
	}
	if (24*time.Hour)%c.Preparation.DepthBucket != 0 {
		return apperrors.NewConfigError(fmt.Sprintf("depth bucket %s does not divide a day", c.Preparation.DepthBucket), nil)
	}
	if c.Preparation.DepthBucket != c.Analysis.Bucket {
		return apperrors.NewConfigError(fmt.Sprintf("depth bucket %s must equal analysis bucket %s",
			c.Preparation.DepthBucket, c.Analysis.Bucket), nil)
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/impact.log"
	}

	return nil
}

// ParseRegressors splits a comma separated regressor list such as "OFI,TFI"
func ParseRegressors(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "both",
			FilePath:   "logs/impact.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Paths: PathsConfig{
			RawDir:     "raw",
			DataDir:    "data",
			ReportsDir: "reports",
			LogsDir:    "logs",
		},
		Market: MarketConfig{
			Exchange: "binance-futures",
			Symbol:   "BTCUSDT",
			TickSize: 0.01,
		},
		Preparation: PreparationConfig{
			StartDate:   "2020-11-15",
			EndDate:     "2020-11-30",
			Interval:    10 * time.Second,
			DepthBucket: 30 * time.Minute,
			Workers:     4,
		},
		Analysis: AnalysisConfig{
			Bucket:     30 * time.Minute,
			Lags:       4,
			Covariance: "HAC",
			Regressors: []string{"OFI"},
		},
		Telemetry: TelemetryConfig{
			Environment:     "research",
			EnableTracing:   false,
			TraceFile:       "logs/traces.json",
			EnableMetrics:   true,
			MetricsTextfile: "logs/impact.prom",
		},
	}
}

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Roster   RosterConfig   `yaml:"roster" mapstructure:"roster"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// DataConfig points at the raw input feeds.
type DataConfig struct {
	EmployeesFile     string `yaml:"employees_file" mapstructure:"employees_file"`
	PlansFile         string `yaml:"plans_file" mapstructure:"plans_file"`
	ClaimsFile        string `yaml:"claims_file" mapstructure:"claims_file"`
	CompanyLookupFile string `yaml:"company_lookup_file" mapstructure:"company_lookup_file"`
	DirectoryFile     string `yaml:"directory_file" mapstructure:"directory_file"`
}

// PipelineConfig configures the incremental clean/enrich run.
type PipelineConfig struct {
	MaxConcurrentLookups int      `yaml:"max_concurrent_lookups" mapstructure:"max_concurrent_lookups"`
	DisabledRules        []string `yaml:"disabled_rules" mapstructure:"disabled_rules"`
}

// AnalysisConfig configures the analytical query layer.
type AnalysisConfig struct {
	GapThresholdDays  int     `yaml:"gap_threshold_days" mapstructure:"gap_threshold_days"`
	SpikeThresholdPct float64 `yaml:"spike_threshold_pct" mapstructure:"spike_threshold_pct"`
	BucketDays        int     `yaml:"bucket_days" mapstructure:"bucket_days"`
}

// RosterConfig configures the expected employee counts reference.
// Source is one of: "config" (use Expected), "file" (yaml file at FeedPath),
// "http" or "ftp" (CSV feed at FeedURL).
type RosterConfig struct {
	Source   string         `yaml:"source" mapstructure:"source"`
	FeedURL  string         `yaml:"feed_url" mapstructure:"feed_url"`
	FeedPath string         `yaml:"feed_path" mapstructure:"feed_path"`
	Expected map[string]int `yaml:"expected" mapstructure:"expected"`
}

// ExportConfig configures the flat-file snapshot artifacts.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the read-only status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BENETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "outputs/analytics.db")
	v.SetDefault("data.employees_file", "data/employees_raw.csv")
	v.SetDefault("data.plans_file", "data/plans_raw.csv")
	v.SetDefault("data.claims_file", "data/claims_raw.csv")
	v.SetDefault("data.company_lookup_file", "data/company_lookup.json")
	v.SetDefault("data.directory_file", "data/api_mock.json")
	v.SetDefault("pipeline.max_concurrent_lookups", 8)
	v.SetDefault("analysis.gap_threshold_days", 90)
	v.SetDefault("analysis.spike_threshold_pct", 200)
	v.SetDefault("analysis.bucket_days", 90)
	v.SetDefault("roster.source", "config")
	v.SetDefault("export.dir", "outputs")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast on invalid settings, before any record is read.
func (c *Config) Validate() error {
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unknown store driver %q (valid: sqlite, postgres)", c.Store.Driver)
	}
	if c.Analysis.GapThresholdDays <= 0 {
		return eris.Errorf("config: gap_threshold_days must be positive, got %d", c.Analysis.GapThresholdDays)
	}
	if c.Analysis.SpikeThresholdPct <= 0 {
		return eris.Errorf("config: spike_threshold_pct must be positive, got %g", c.Analysis.SpikeThresholdPct)
	}
	if c.Analysis.BucketDays <= 0 {
		return eris.Errorf("config: bucket_days must be positive, got %d", c.Analysis.BucketDays)
	}
	if c.Pipeline.MaxConcurrentLookups <= 0 {
		return eris.Errorf("config: max_concurrent_lookups must be positive, got %d", c.Pipeline.MaxConcurrentLookups)
	}
	switch c.Roster.Source {
	case "config", "file", "http", "ftp":
	default:
		return eris.Errorf("config: unknown roster source %q (valid: config, file, http, ftp)", c.Roster.Source)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

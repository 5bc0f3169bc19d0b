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
	Wake       WakeConfig       `yaml:"wake" mapstructure:"wake"`
	Orange     OrangeConfig     `yaml:"orange" mapstructure:"orange"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Name       NameRules        `yaml:"name" mapstructure:"name"`
	Address    AddressRules     `yaml:"address" mapstructure:"address"`
	Merge      MergeConfig      `yaml:"merge" mapstructure:"merge"`
	Dedupe     DedupeConfig     `yaml:"dedupe" mapstructure:"dedupe"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// WakeConfig configures the Wake County ArcGIS FeatureServer fetcher.
type WakeConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	MaxRecords    int     `yaml:"max_records" mapstructure:"max_records"`
	PageSize      int     `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateDelaySecs float64 `yaml:"rate_delay_secs" mapstructure:"rate_delay_secs"`
}

// OrangeConfig configures the Orange County tax-search scraper.
type OrangeConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	MaxRecords    int     `yaml:"max_records" mapstructure:"max_records"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateDelaySecs float64 `yaml:"rate_delay_secs" mapstructure:"rate_delay_secs"`
	SelectorsPath string  `yaml:"selectors_path" mapstructure:"selectors_path"`
}

// FetchConfig holds settings shared by all fetchers.
type FetchConfig struct {
	UserAgent  string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ValidationConfig defines required fields, semantic field types, and regex
// patterns for record validation.
type ValidationConfig struct {
	RequiredFields []string          `yaml:"required_fields" mapstructure:"required_fields"`
	FieldTypes     map[string]string `yaml:"field_types" mapstructure:"field_types"`
	Patterns       map[string]string `yaml:"patterns" mapstructure:"patterns"`
}

// NameRules configures owner-name normalization. Each step is independently
// toggleable.
type NameRules struct {
	CollapseSpaces   bool     `yaml:"collapse_spaces" mapstructure:"collapse_spaces"`
	ConvertLastFirst bool     `yaml:"convert_last_first" mapstructure:"convert_last_first"`
	EntitySuffixes   []string `yaml:"entity_suffixes" mapstructure:"entity_suffixes"`
	TitleCase        bool     `yaml:"title_case" mapstructure:"title_case"`
}

// AddressRules configures street-address normalization.
type AddressRules struct {
	CollapseSpaces      bool              `yaml:"collapse_spaces" mapstructure:"collapse_spaces"`
	Uppercase           bool              `yaml:"uppercase" mapstructure:"uppercase"`
	StreetAbbreviations map[string]string `yaml:"street_abbreviations" mapstructure:"street_abbreviations"`
	StateNames          map[string]string `yaml:"state_names" mapstructure:"state_names"`
}

// MergeConfig configures the cross-source merger.
type MergeConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	PreferSource string `yaml:"prefer_source" mapstructure:"prefer_source"`
}

// DedupeConfig configures exact and fuzzy duplicate detection.
type DedupeConfig struct {
	ExactMatchFields []string `yaml:"exact_match_fields" mapstructure:"exact_match_fields"`
	NameThreshold    float64  `yaml:"name_threshold" mapstructure:"name_threshold"`
	AddressThreshold float64  `yaml:"address_threshold" mapstructure:"address_threshold"`
	Algorithm        string   `yaml:"algorithm" mapstructure:"algorithm"`
	MergeStrategy    string   `yaml:"merge_strategy" mapstructure:"merge_strategy"`
}

// QualityConfig holds per-field score weights and quality level thresholds.
type QualityConfig struct {
	Weights         map[string]float64 `yaml:"weights" mapstructure:"weights"`
	HighThreshold   float64            `yaml:"high_threshold" mapstructure:"high_threshold"`
	MediumThreshold float64            `yaml:"medium_threshold" mapstructure:"medium_threshold"`
}

// ExportConfig configures output files.
type ExportConfig struct {
	OutputDir  string `yaml:"output_dir" mapstructure:"output_dir"`
	FilePrefix string `yaml:"file_prefix" mapstructure:"file_prefix"`
	Format     string `yaml:"format" mapstructure:"format"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	EnableCheckpoints bool `yaml:"enable_checkpoints" mapstructure:"enable_checkpoints"`
	StrictValidation  bool `yaml:"strict_validation" mapstructure:"strict_validation"`
}

// StoreConfig configures run/checkpoint persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the status API server.
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
	v.SetEnvPrefix("PROPERTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wake.base_url", "https://maps.wakegov.com/arcgis/rest/services/Property/Parcels/FeatureServer/0")
	v.SetDefault("wake.max_records", 1000)
	v.SetDefault("wake.page_size", 200)
	v.SetDefault("wake.timeout_secs", 30)
	v.SetDefault("wake.rate_delay_secs", 0.5)

	v.SetDefault("orange.base_url", "https://orange.propertytaxpayments.net/search")
	v.SetDefault("orange.max_records", 300)
	v.SetDefault("orange.timeout_secs", 30)
	v.SetDefault("orange.rate_delay_secs", 2.5)
	v.SetDefault("orange.selectors_path", "selectors.yaml")

	v.SetDefault("fetch.user_agent", "property-cli/1.0")
	v.SetDefault("fetch.max_retries", 3)

	v.SetDefault("validation.required_fields", []string{"owner_name", "property_address", "source", "extracted_at"})
	v.SetDefault("validation.field_types", map[string]string{
		"owner_name":       "string",
		"parcel_id":        "string",
		"property_address": "string",
		"mailing_address":  "string",
		"city":             "string",
		"state":            "string",
		"zip_code":         "string",
		"county":           "string",
		"assessed_value":   "number",
		"sale_date":        "string",
		"sale_price":       "number",
		"source":           "string",
		"source_url":       "string",
		"extracted_at":     "string",
	})
	v.SetDefault("validation.patterns", map[string]string{
		"zip_code":  `^\d{5}(-\d{4})?$`,
		"parcel_id": `^[A-Z0-9\-]+$`,
		"state":     `^[A-Z]{2}$`,
	})

	v.SetDefault("name.collapse_spaces", true)
	v.SetDefault("name.convert_last_first", true)
	v.SetDefault("name.entity_suffixes", []string{"LLC", "CORP", "INC", "TRUST", "LP", "LLP", "CO"})
	v.SetDefault("name.title_case", true)

	v.SetDefault("address.collapse_spaces", true)
	v.SetDefault("address.uppercase", true)
	v.SetDefault("address.street_abbreviations", map[string]string{
		"STREET":    "ST",
		"AVENUE":    "AVE",
		"BOULEVARD": "BLVD",
		"DRIVE":     "DR",
		"ROAD":      "RD",
		"LANE":      "LN",
		"COURT":     "CT",
		"CIRCLE":    "CIR",
		"PLACE":     "PL",
		"NORTH":     "N",
		"SOUTH":     "S",
		"EAST":      "E",
		"WEST":      "W",
	})
	v.SetDefault("address.state_names", map[string]string{
		"NORTH CAROLINA": "NC",
		"SOUTH CAROLINA": "SC",
		"VIRGINIA":       "VA",
		"GEORGIA":        "GA",
		"TENNESSEE":      "TN",
	})

	v.SetDefault("merge.key", "parcel_id")
	v.SetDefault("merge.prefer_source", "")

	v.SetDefault("dedupe.exact_match_fields", []string{"parcel_id"})
	v.SetDefault("dedupe.name_threshold", 90)
	v.SetDefault("dedupe.address_threshold", 95)
	v.SetDefault("dedupe.algorithm", "token_sort_ratio")
	v.SetDefault("dedupe.merge_strategy", "most_complete")

	v.SetDefault("quality.weights", map[string]float64{
		"owner_name":       20,
		"parcel_id":        15,
		"property_address": 15,
		"mailing_address":  10,
		"city":             5,
		"state":            5,
		"zip_code":         5,
		"county":           5,
		"assessed_value":   10,
		"sale_date":        5,
		"sale_price":       5,
	})
	v.SetDefault("quality.high_threshold", 80)
	v.SetDefault("quality.medium_threshold", 50)

	v.SetDefault("export.output_dir", "output")
	v.SetDefault("export.file_prefix", "property_owners")
	v.SetDefault("export.format", "xlsx")

	v.SetDefault("pipeline.enable_checkpoints", true)
	v.SetDefault("pipeline.strict_validation", false)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "property-cli.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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

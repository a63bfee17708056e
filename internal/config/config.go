// Package config holds the runtime configuration of a gallery build.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/astrogalery/astrogalery/internal/nova"
	"github.com/astrogalery/astrogalery/internal/refdata"
	"github.com/astrogalery/astrogalery/internal/simbad"
)

// Pass 2 selection modes.
const (
	ModeLatestPerObject = "latest_per_object"
	ModeAll             = "all"
)

// EnvPrefix prefixes every environment override, e.g. ASTROGALERY_OUTPUT.
const EnvPrefix = "ASTROGALERY"

// CredentialEnv is the environment variable holding the nova API key.
const CredentialEnv = "NOVA_ASTROMETRY_API_KEY"

// SimbadConfig configures identity and cone-search queries.
type SimbadConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NovaConfig configures plate solving.
type NovaConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	APIURL            string        `mapstructure:"api_url"`
	SiteURL           string        `mapstructure:"site_url"`
	Mode              string        `mapstructure:"mode"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	SubmissionTimeout time.Duration `mapstructure:"submission_timeout"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

// FinderConfig configures finder charts and their reference data.
type FinderConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	StarsURL        string  `mapstructure:"stars_url"`
	LinesURL        string  `mapstructure:"lines_url"`
	Size            int     `mapstructure:"size"`
	FOV             float64 `mapstructure:"fov"`
	InnerFOV        float64 `mapstructure:"inner_fov"`
	StarMagLimit    float64 `mapstructure:"star_mag_limit"`
	LabelMagLimit   float64 `mapstructure:"label_mag_limit"`
	MaxLabels       int     `mapstructure:"max_labels"`
	LabelSeparation float64 `mapstructure:"label_separation"`
}

// Config holds all runtime configuration for a build.
// Values come from .astrogalery.yaml, ASTROGALERY_* env vars, and CLI flags.
type Config struct {
	Root         string       `mapstructure:"root"`
	Output       string       `mapstructure:"output"`
	CacheDir     string       `mapstructure:"cache_dir"`
	CatalogTable string       `mapstructure:"catalog_table"`
	SiteTitle    string       `mapstructure:"site_title"`
	BaseURL      string       `mapstructure:"base_url"`
	Parquet      bool         `mapstructure:"parquet"`
	Offline      bool         `mapstructure:"offline"`
	Verbose      bool         `mapstructure:"verbose"`
	Simbad       SimbadConfig `mapstructure:"simbad"`
	Nova         NovaConfig   `mapstructure:"nova"`
	Finder       FinderConfig `mapstructure:"finder"`
}

// Init wires environment lookups into viper. Nested keys map to
// underscores, so nova.mode reads ASTROGALERY_NOVA_MODE.
func Init() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("nova.api_key", EnvPrefix+"_NOVA_API_KEY", CredentialEnv)
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("root", ".")
	viper.SetDefault("output", "site")
	viper.SetDefault("cache_dir", "cache")
	viper.SetDefault("catalog_table", "messier.xlsx")
	viper.SetDefault("site_title", "GNU Astro Galery")
	viper.SetDefault("base_url", "https://example.com/seestar")
	viper.SetDefault("parquet", false)
	viper.SetDefault("offline", false)
	viper.SetDefault("verbose", false)

	viper.SetDefault("simbad.url", simbad.DefaultBaseURL)
	viper.SetDefault("simbad.timeout", 60*time.Second)

	viper.SetDefault("nova.api_key", "")
	viper.SetDefault("nova.api_url", nova.DefaultAPIURL)
	viper.SetDefault("nova.site_url", nova.DefaultSiteURL)
	viper.SetDefault("nova.mode", ModeLatestPerObject)
	viper.SetDefault("nova.timeout", 60*time.Second)
	viper.SetDefault("nova.poll_interval", 5*time.Second)
	viper.SetDefault("nova.submission_timeout", 10*time.Minute)
	viper.SetDefault("nova.job_timeout", 15*time.Minute)

	viper.SetDefault("finder.enabled", true)
	viper.SetDefault("finder.stars_url", refdata.DefaultStarsURL)
	viper.SetDefault("finder.lines_url", refdata.DefaultLinesURL)
	viper.SetDefault("finder.size", 800)
	viper.SetDefault("finder.fov", 300.0)
	viper.SetDefault("finder.inner_fov", 60.0)
	viper.SetDefault("finder.star_mag_limit", 8.0)
	viper.SetDefault("finder.label_mag_limit", 12.0)
	viper.SetDefault("finder.max_labels", 12)
	viper.SetDefault("finder.label_separation", 40.0)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Nova.APIKey = strings.TrimSpace(cfg.Nova.APIKey)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Nova.Mode {
	case ModeLatestPerObject, ModeAll:
	default:
		return fmt.Errorf("unknown astrometry mode %q (want %s or %s)", c.Nova.Mode, ModeLatestPerObject, ModeAll)
	}
	if c.Output == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	return nil
}

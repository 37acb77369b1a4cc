package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/membership.yml"

type Config struct {
	Input   InputConfig   `yaml:"input"`
	Store   StoreConfig   `yaml:"store"`
	Output  OutputConfig  `yaml:"output"`
	S3      S3Config      `yaml:"s3"`
	Logging LoggingConfig `yaml:"logging"`
	// AsOf pins the reference date (YYYY-MM-DD). Empty means today.
	AsOf string `yaml:"as_of"`
}

type InputConfig struct {
	Path        string        `yaml:"path"`
	Sheet       string        `yaml:"sheet"`
	SkipRows    int           `yaml:"skip_rows"`
	Columns     ColumnsConfig `yaml:"columns"`
	DateLayouts []string      `yaml:"date_layouts"`
}

type ColumnsConfig struct {
	Country   string `yaml:"country"`
	Accession string `yaml:"accession"`
	Exit      string `yaml:"exit"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Dir         string   `yaml:"dir"`
	Prefix      string   `yaml:"prefix"`
	Formats     []string `yaml:"formats"`
	Compression string   `yaml:"compression"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func Default() *Config {
	return &Config{
		Input: InputConfig{
			Path:     "EU_countries_with_accession_dates.xlsx",
			SkipRows: 3,
			Columns: ColumnsConfig{
				Country:   "Country",
				Accession: "EU accession date",
				Exit:      "EU exit date",
			},
		},
		Store: StoreConfig{Path: "membership.db"},
		Output: OutputConfig{
			Dir:         ".",
			Prefix:      "EU_countries_series",
			Formats:     []string{"parquet"},
			Compression: "snappy",
		},
		S3: S3Config{Region: "eu-central-1", Prefix: "eu-membership"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads .env (if present), the YAML file at path and the MEMBERSHIP_*
// environment overrides, in that order. A missing file at DefaultPath is not
// an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse YAML %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Input.Path = getenv("MEMBERSHIP_INPUT", c.Input.Path)
	c.Store.Path = getenv("MEMBERSHIP_DB", c.Store.Path)
	c.Output.Dir = getenv("MEMBERSHIP_OUT_DIR", c.Output.Dir)
	if formats := getenv("MEMBERSHIP_FORMATS", ""); formats != "" {
		c.Output.Formats = ParseList(formats)
	}
	c.AsOf = getenv("MEMBERSHIP_AS_OF", c.AsOf)
	c.S3.Bucket = getenv("MEMBERSHIP_S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getenv("MEMBERSHIP_S3_REGION", c.S3.Region)
	c.S3.Endpoint = getenv("MEMBERSHIP_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Enabled = getenvBool("MEMBERSHIP_S3_ENABLED", c.S3.Enabled)
	c.Input.SkipRows = getenvInt("MEMBERSHIP_SKIP_ROWS", c.Input.SkipRows)
}

func (c *Config) Validate() error {
	if c.Input.SkipRows < 0 {
		return fmt.Errorf("input.skip_rows must be >= 0, got %d", c.Input.SkipRows)
	}
	for _, format := range c.Output.Formats {
		switch strings.ToLower(format) {
		case "parquet", "json", "csv":
		default:
			return fmt.Errorf("unknown output format: %s", format)
		}
	}
	switch strings.ToLower(c.Output.Compression) {
	case "", "snappy", "gzip", "none", "uncompressed":
	default:
		return fmt.Errorf("unknown parquet compression: %s", c.Output.Compression)
	}
	if c.S3.Enabled && strings.TrimSpace(c.S3.Bucket) == "" {
		return errors.New("s3.bucket is required when s3 is enabled")
	}
	if _, err := c.AsOfDate(time.Now); err != nil {
		return err
	}
	return nil
}

// AsOfDate returns the configured reference date, or now() when unset.
func (c *Config) AsOfDate(now func() time.Time) (time.Time, error) {
	value := strings.TrimSpace(c.AsOf)
	if value == "" {
		return now().UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of %q: %w", value, err)
	}
	return parsed, nil
}

func ParseList(value string) []string {
	raw := strings.Split(value, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		items = append(items, strings.ToLower(trimmed))
	}
	return items
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return fallback
	}
}

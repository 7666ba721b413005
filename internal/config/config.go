package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"focused-crawler/internal/parser"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrNoSeeds is returned by Validate when there is nothing to crawl.
var ErrNoSeeds = errors.New("no seed urls configured")

// Config holds all runtime configuration parameters.
type Config struct {
	Seeds    []string `yaml:"seeds"`
	Keywords []string `yaml:"keywords"`

	// link filtering at canonicalization time
	CanonExclusions []parser.Exclusion `yaml:"canon_exclusions"`
	CanonBlacklist  []string           `yaml:"canon_blacklist"`
	PreserveScheme  bool               `yaml:"preserve_scheme"`

	// page acceptance after fetch
	AcceptBlacklist []string `yaml:"accept_blacklist"`
	AcceptLanguages []string `yaml:"accept_languages"`

	PageCap         int     `yaml:"page_cap"`
	RelevanceCutoff float64 `yaml:"relevance_cutoff"`

	DefaultDelay   time.Duration `yaml:"default_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	RobotsAttempts int           `yaml:"robots_attempts"`
	RobotsBackoff  time.Duration `yaml:"robots_backoff"`
	UserAgent      string        `yaml:"user_agent"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`

	OutputDir     string `yaml:"output_dir"`
	LogDir        string `yaml:"log_dir"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	MetricsAddr   string `yaml:"metrics_addr"`
	LogLevel      string `yaml:"log_level"`
}

var defaultKeywords = []string{
	"catholic", "church", "commandments", "catechism",
	"jesus", "christ", "bishop", "pope", "sacred", "sacrament",
	"saint", "peter", "god", "theology", "relig", "papacy",
	"vatican", "doctrin", "canonical", "roman", "holy",
	"cardinal", "heaven", "baptism", "see",
}

var defaultBlacklist = []string{
	".jpg", ".svg", ".png", ".pdf", ".gif",
	"youtube", "edit", "footer", "sidebar", "cite",
	"special", "mailto", "books.google", "tel:",
	"javascript", "www.vatican.va", ".ogv", "amazon",
	".webm",
}

func defaultExclusions() []parser.Exclusion {
	return []parser.Exclusion{
		{Domain: "www.vatican.va"},
		{Domain: "www.ysee.gr"},
		{Domain: "www.biblegateway.com"},
		{Domain: "web.archive.org", Contains: "en/member-churches"},
	}
}

// Default returns the baseline configuration without seeds.
func Default() *Config {
	return &Config{
		Keywords:        append([]string(nil), defaultKeywords...),
		CanonExclusions: defaultExclusions(),
		CanonBlacklist:  append([]string(nil), defaultBlacklist...),
		AcceptBlacklist: append([]string(nil), defaultBlacklist...),
		AcceptLanguages: []string{"en"},
		PageCap:         30000,
		RelevanceCutoff: 1.04,
		DefaultDelay:    time.Second,
		MaxDelay:        3 * time.Second,
		FetchTimeout:    3 * time.Second,
		RobotsAttempts:  2,
		RobotsBackoff:   time.Second,
		UserAgent:       "focused-crawler/1.0",
		MaxBodyBytes:    2 << 20,
		OutputDir:       "output",
		LogDir:          "log",
		MongoDatabase:   "focused_crawler",
		MetricsAddr:     ":2112",
		LogLevel:        "info",
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// a missing .env file is fine
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"MONGODB_URI":       &c.MongoURI,
		"MONGODB_DATABASE":  &c.MongoDatabase,
		"CRAWL_SQLITE_PATH": &c.SQLitePath,
		"CRAWL_OUTPUT_DIR":  &c.OutputDir,
		"CRAWL_LOG_DIR":     &c.LogDir,
		"CRAWL_LOG_LEVEL":   &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("CRAWL_PAGE_CAP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRAWL_PAGE_CAP: %w", err)
		}
		c.PageCap = n
	}
	return nil
}

// Validate checks the configuration is usable for a crawl. max_delay caps
// every negotiated crawl delay, so zero disables waiting altogether.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.PageCap <= 0 {
		return fmt.Errorf("page_cap must be positive, got %d", c.PageCap)
	}
	if c.RelevanceCutoff <= 0 {
		return fmt.Errorf("relevance_cutoff must be positive, got %v", c.RelevanceCutoff)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %v", c.FetchTimeout)
	}
	if c.DefaultDelay < 0 {
		return fmt.Errorf("default_delay must not be negative, got %v", c.DefaultDelay)
	}
	if c.MaxDelay < c.DefaultDelay {
		return fmt.Errorf("max_delay %v is below default_delay %v", c.MaxDelay, c.DefaultDelay)
	}
	if c.RobotsAttempts < 1 {
		return fmt.Errorf("robots_attempts must be at least 1, got %d", c.RobotsAttempts)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// CanonRules builds the canonicalizer's filtering rules.
func (c *Config) CanonRules() parser.Rules {
	return parser.Rules{
		Exclusions:     c.CanonExclusions,
		Blacklist:      parser.NewBlacklist(c.CanonBlacklist),
		PreserveScheme: c.PreserveScheme,
	}
}

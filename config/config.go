package config

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Assadbaloch/Gmaps-scraper/models"
)

// Config holds all runtime configuration for the scraper.
type Config struct {
	Queries  []models.Query `json:"queries"`
	Language string         `json:"language"`

	// Filters
	SkipClosedPlaces bool     `json:"skip_closed_places"`
	MinRating        *float64 `json:"min_rating"`
	RequireWebsite   bool     `json:"require_website"`
	// StrictFiltering drops filtered-out records before they touch the
	// dedup index instead of annotating and keeping them.
	StrictFiltering bool `json:"strict_filtering"`

	MaxResultsPerQuery int    `json:"max_results_per_query"`
	OutFile            string `json:"output_file"`
	Headless           bool   `json:"headless"`
	UserAgent          string `json:"-"`

	// Timing
	FeedLoadTimeout time.Duration `json:"-"`
	ScrollDelay     time.Duration `json:"-"`
	FallbackDelay   time.Duration `json:"-"`
	DetailTimeout   time.Duration `json:"-"`
	EnrichTimeout   time.Duration `json:"-"`
	QueryBudget     time.Duration `json:"-"`
	GlobalTimeout   time.Duration `json:"-"`
	DelayMin        time.Duration `json:"-"`
	DelayMax        time.Duration `json:"-"`

	NavigationRetries int `json:"-"`

	// Enrichment
	VerifyEmailDomains bool `json:"verify_email_domains"`

	// Logging
	LogFile string `json:"log_file"`

	// PostgreSQL — the sink is enabled when DBHost is non-empty.
	DBHost     string `json:"-"`
	DBPort     int    `json:"-"`
	DBUser     string `json:"-"`
	DBPassword string `json:"-"`
	DBName     string `json:"-"`
	DBSSLMode  string `json:"-"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	_ = godotenv.Load()

	return Config{
		Language:         "en",
		SkipClosedPlaces: true,
		RequireWebsite:   false,
		OutFile:          getEnv("OUT_FILE", "leads.jsonl"),
		Headless:         getEnvBool("HEADLESS", true),
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",

		FeedLoadTimeout: 20 * time.Second,
		ScrollDelay:     2 * time.Second,
		FallbackDelay:   3 * time.Second,
		DetailTimeout:   35 * time.Second,
		EnrichTimeout:   15 * time.Second,
		QueryBudget:     10 * time.Minute,
		GlobalTimeout:   90 * time.Minute,
		DelayMin:        500 * time.Millisecond,
		DelayMax:        1500 * time.Millisecond,

		NavigationRetries: 3,

		LogFile: getEnv("LOG_FILE", ""),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "leads"),
		DBPassword: getEnv("DB_PASSWORD", "leads"),
		DBName:     getEnv("DB_NAME", "gmaps_leads"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// Load reads a JSON config file over the defaults. A missing file is not an
// error; an unparseable one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return cfg, nil
}

// RandomDelay returns a jittered pause between DelayMin and DelayMax.
func (c Config) RandomDelay() time.Duration {
	if c.DelayMax <= c.DelayMin {
		return c.DelayMin
	}
	return c.DelayMin + time.Duration(rand.Int63n(int64(c.DelayMax-c.DelayMin)))
}

// DBEnabled reports whether the Postgres sink should be opened.
func (c Config) DBEnabled() bool {
	return c.DBHost != ""
}

func getEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

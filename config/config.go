package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

// SourceConfig is the per-source block of the sources file.
type SourceConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxDaily int  `yaml:"max_daily"`
}

// sourcesFile is the on-disk shape of sources.yaml.
type sourcesFile struct {
	Sources map[string]SourceConfig `yaml:"sources"`
}

// Config holds all application configuration loaded from environment
// variables plus the YAML sources file.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	Headless    bool
	ChromeBin   string
	ArtifactDir string

	QuotaFile     string
	CSVOutputPath string

	// Managed extraction service used by the short-stay adapter.
	ManagedAPIKey   string
	ManagedEndpoint string

	// Deduplication tunables.
	DedupPriceBucket   int
	DedupNamePrefixLen int

	Sources map[models.Source]SourceConfig
}

// defaultSources is used when no sources file exists.
var defaultSources = map[models.Source]SourceConfig{
	models.SourceRyanair: {Enabled: true, MaxDaily: 5},
	models.SourceBooking: {Enabled: true, MaxDaily: 20},
	models.SourceAirbnb:  {Enabled: true, MaxDaily: 20},
}

// Load reads the .env file, system env vars and the sources file, and
// returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scout"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scout123"),
		PostgresDB:       getEnv("POSTGRES_DB", "travel_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		Headless:    getEnvBool("HEADLESS", true),
		ChromeBin:   getEnv("CHROME_BIN", ""),
		ArtifactDir: getEnv("ARTIFACT_DIR", "./artifacts"),

		QuotaFile:     getEnv("QUOTA_FILE", "./state/quota.json"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/raw_listings.csv"),

		ManagedAPIKey:   getEnv("MANAGED_API_KEY", ""),
		ManagedEndpoint: getEnv("MANAGED_ENDPOINT", "https://api.apify.com/v2"),

		DedupPriceBucket:   getEnvInt("DEDUP_PRICE_BUCKET", 10),
		DedupNamePrefixLen: getEnvInt("DEDUP_NAME_PREFIX_LEN", 20),
	}

	sources, err := loadSources(getEnv("SOURCES_FILE", "sources.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources

	return cfg, nil
}

// loadSources parses the YAML sources file; a missing file yields defaults.
func loadSources(path string) (map[models.Source]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultSources, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read sources file %q: %w", path, err)
	}

	var sf sourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("config: parse sources file %q: %w", path, err)
	}

	sources := make(map[models.Source]SourceConfig, len(sf.Sources))
	for name, sc := range sf.Sources {
		src := models.Source(name)
		if !src.Valid() {
			return nil, fmt.Errorf("config: unknown source %q in %s", name, path)
		}
		sources[src] = sc
	}
	return sources, nil
}

// Enabled returns the enabled sources in a stable order.
func (c *Config) Enabled() []models.Source {
	var out []models.Source
	for _, src := range models.KnownSources {
		if sc, ok := c.Sources[src]; ok && sc.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// MaxDaily returns the per-source daily quota map for the quota store.
func (c *Config) MaxDaily() map[models.Source]int {
	out := make(map[models.Source]int, len(c.Sources))
	for src, sc := range c.Sources {
		out[src] = sc.MaxDaily
	}
	return out
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

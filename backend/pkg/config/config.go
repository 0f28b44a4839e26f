package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "knowledge-base/backend/pkg/errors"
)

// DefaultAllowedScrapeDomains is the outbound allowlist used when none is configured.
var DefaultAllowedScrapeDomains = []string{
	"wikipedia.org",
	"github.com",
	"medium.com",
	"stackoverflow.com",
	"dev.to",
	"blog.bitsrc.io",
	"css-tricks.com",
	"smashingmagazine.com",
	"web.dev",
	"developer.mozilla.org",
}

// Config holds all application configuration
type Config struct {
	// App
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	// Storage
	DatabasePath string `yaml:"database_path"`
	MediaRoot    string `yaml:"media_root"`
	// GraphBackend selects where the derived graph lives: "sqlite" or "neo4j"
	GraphBackend string `yaml:"graph_backend"`

	// Neo4j
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`

	// Auth
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`

	// Collections
	AllowedScrapeDomains []string      `yaml:"allowed_scrape_domains"`
	ScrapeTimeout        time.Duration `yaml:"scrape_timeout"`

	// Attachments
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// HTTP
	CORSOrigins       []string `yaml:"cors_origins"`
	RateLimitAPI      int      `yaml:"rate_limit_api"`      // requests per minute
	RateLimitLogin    int      `yaml:"rate_limit_login"`    // requests per minute
	RateLimitRegister int      `yaml:"rate_limit_register"` // requests per hour
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	return &Config{
		Port:                 "8080",
		Env:                  "development",
		DatabasePath:         "knowledge.db",
		MediaRoot:            "media",
		GraphBackend:         "sqlite",
		Neo4jURI:             "bolt://localhost:7687",
		Neo4jUser:            "neo4j",
		Neo4jPassword:        "password",
		AccessTokenTTL:       60 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		AllowedScrapeDomains: append([]string(nil), DefaultAllowedScrapeDomains...),
		ScrapeTimeout:        30 * time.Second,
		MaxUploadBytes:       10 << 20,
		CORSOrigins:          []string{"http://localhost:3000", "http://localhost:5173"},
		RateLimitAPI:         100,
		RateLimitLogin:       5,
		RateLimitRegister:    3,
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and environment variables
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit YAML file path; an empty path skips the file
func LoadFrom(path string) (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.MediaRoot = getEnv("MEDIA_ROOT", c.MediaRoot)
	c.GraphBackend = strings.ToLower(getEnv("GRAPH_BACKEND", c.GraphBackend))
	c.Neo4jURI = getEnv("NEO4J_URI", c.Neo4jURI)
	c.Neo4jUser = getEnv("NEO4J_USER", c.Neo4jUser)
	c.Neo4jPassword = getEnv("NEO4J_PASSWORD", c.Neo4jPassword)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", c.AccessTokenTTL)
	c.RefreshTokenTTL = getEnvDuration("REFRESH_TOKEN_TTL", c.RefreshTokenTTL)
	c.AllowedScrapeDomains = getEnvList("ALLOWED_SCRAPE_DOMAINS", c.AllowedScrapeDomains)
	c.ScrapeTimeout = getEnvDuration("SCRAPE_TIMEOUT", c.ScrapeTimeout)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.RateLimitAPI = getEnvInt("RATE_LIMIT_API", c.RateLimitAPI)
	c.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", c.RateLimitLogin)
	c.RateLimitRegister = getEnvInt("RATE_LIMIT_REGISTER", c.RateLimitRegister)
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return apperrors.NewConfigMissingRequired("DATABASE_PATH")
	}
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return apperrors.NewConfigMissingRequired("JWT_SECRET")
		}
		// Development gets a fixed secret so tokens survive restarts
		c.JWTSecret = "dev-insecure-secret"
	}
	switch c.GraphBackend {
	case "sqlite":
	case "neo4j":
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	default:
		return apperrors.NewConfigValidationFailed("GRAPH_BACKEND", fmt.Sprintf("unknown backend %q", c.GraphBackend))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return apperrors.NewConfigValidationFailed("ACCESS_TOKEN_TTL", "token lifetimes must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return apperrors.NewConfigValidationFailed("MAX_UPLOAD_BYTES", "must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesNeo4j reports whether the derived graph is kept in Neo4j
func (c *Config) UsesNeo4j() bool {
	return c.GraphBackend == "neo4j"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Feed     FeedConfig
	Registry RegistryConfig
	Search   SearchConfig
	Cache    CacheConfig
	OTEL     OTELConfig
	Log      LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// FeedConfig holds the public data portal feed configuration
type FeedConfig struct {
	BaseURL            string
	EmergencyKey       string
	PharmacyKey        string
	Format             string
	Timeout            time.Duration
	Concurrency        int
	EmergencyRows      int
	PharmacyRows       int
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// RegistryConfig selects where the facility registry is loaded from
type RegistryConfig struct {
	Source  string
	CSVPath string
}

// SearchConfig holds default radii and result caps per facility type
type SearchConfig struct {
	HospitalRadiusKm  float64
	EmergencyRadiusKm float64
	PharmacyRadiusKm  float64
	MaxRadiusKm       float64
	HospitalLimit     int
	EmergencyLimit    int
	PharmacyLimit     int
	TimeZone          string
}

// CacheConfig holds HTTP response cache configuration
type CacheConfig struct {
	HospitalTTLSeconds int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LogConfig holds logger configuration
type LogConfig struct {
	Env   string
	Level string
}

// Registry sources
const (
	RegistrySourceCSV      = "csv"
	RegistrySourcePostgres = "postgres"
)

// Load loads configuration from environment variables, after reading .env if present
func Load() (*Config, error) {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", getEnvAsInt("PORT", 5000)),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "nearcare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Feed: FeedConfig{
			BaseURL:            getEnv("FEED_BASE_URL", "http://apis.data.go.kr/B552657"),
			EmergencyKey:       decodeServiceKey(getEnv("PUBLIC_DATA_API_KEY", "")),
			PharmacyKey:        decodeServiceKey(getEnv("PHARMACY_API_KEY", getEnv("PUBLIC_DATA_API_KEY", ""))),
			Format:             strings.ToLower(getEnv("FEED_FORMAT", "xml")),
			Timeout:            getEnvAsDuration("FEED_TIMEOUT", 5*time.Second),
			Concurrency:        getEnvAsInt("FEED_CONCURRENCY", 4),
			EmergencyRows:      getEnvAsInt("FEED_EMERGENCY_ROWS", 100),
			PharmacyRows:       getEnvAsInt("FEED_PHARMACY_ROWS", 200),
			BreakerFailures:    uint32(getEnvAsInt("FEED_BREAKER_FAILURES", 5)),
			BreakerOpenTimeout: getEnvAsDuration("FEED_BREAKER_OPEN_TIMEOUT", 20*time.Second),
		},
		Registry: RegistryConfig{
			Source:  strings.ToLower(getEnv("REGISTRY_SOURCE", RegistrySourceCSV)),
			CSVPath: getEnv("REGISTRY_CSV_PATH", "data/hospitals.csv"),
		},
		Search: SearchConfig{
			HospitalRadiusKm:  getEnvAsFloat("SEARCH_HOSPITAL_RADIUS_KM", 3.0),
			EmergencyRadiusKm: getEnvAsFloat("SEARCH_EMERGENCY_RADIUS_KM", 30.0),
			PharmacyRadiusKm:  getEnvAsFloat("SEARCH_PHARMACY_RADIUS_KM", 3.0),
			MaxRadiusKm:       getEnvAsFloat("SEARCH_MAX_RADIUS_KM", 50.0),
			HospitalLimit:     getEnvAsInt("SEARCH_HOSPITAL_LIMIT", 100),
			EmergencyLimit:    getEnvAsInt("SEARCH_EMERGENCY_LIMIT", 10),
			PharmacyLimit:     getEnvAsInt("SEARCH_PHARMACY_LIMIT", 20),
			TimeZone:          getEnv("SEARCH_TIMEZONE", "Asia/Seoul"),
		},
		Cache: CacheConfig{
			HospitalTTLSeconds: getEnvAsInt("CACHE_HOSPITAL_TTL_SECONDS", 60),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "nearcare"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Registry.Source {
	case RegistrySourceCSV, RegistrySourcePostgres:
	default:
		return fmt.Errorf("unsupported REGISTRY_SOURCE %q", c.Registry.Source)
	}
	switch c.Feed.Format {
	case "xml", "json":
	default:
		return fmt.Errorf("unsupported FEED_FORMAT %q", c.Feed.Format)
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive")
	}
	if c.Feed.Concurrency < 1 {
		c.Feed.Concurrency = 1
	}
	if c.Search.MaxRadiusKm <= 0 {
		return fmt.Errorf("SEARCH_MAX_RADIUS_KM must be positive")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location returns the time zone used for pharmacy opening hours
func (c *SearchConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.TimeZone); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// the portal hands out keys in URL-encoded form; the HTTP client encodes again
func decodeServiceKey(key string) string {
	if decoded, err := url.QueryUnescape(key); err == nil {
		return decoded
	}
	return key
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

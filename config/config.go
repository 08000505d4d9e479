package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/upb/cookie-auth-gateway/utils"
)

const (
	// DefaultOpaqueCookie carries the locally minted credential.
	DefaultOpaqueCookie = "opaque-credential-cookie"

	// DefaultExternalCookie carries the Google ID token set by the sign-in page.
	DefaultExternalCookie = "external-token-cookie"

	// DefaultJWKSURL is Google's OAuth2 signing key set.
	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Credentials   CredentialConfig
	Google        GoogleConfig
	Cookies       CookieConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int `validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration `validate:"gt=0"`
}

// CredentialConfig holds the opaque credential key and the allow list.
type CredentialConfig struct {
	PrivateKey      string   `validate:"required,min=16"`
	AuthorizedUsers []string `validate:"dive,required"`
}

// GoogleConfig holds ID token verification settings.
type GoogleConfig struct {
	ClientID             string
	JWKSURL              string        `validate:"required,url"`
	CacheTTL             time.Duration `validate:"gt=0"`
	HTTPTimeout          time.Duration `validate:"gt=0"`
	VerifyTimeout        time.Duration `validate:"gt=0"`
	RequireVerifiedEmail bool
}

// CookieConfig holds cookie names and attributes.
type CookieConfig struct {
	OpaqueName   string `validate:"required,nefield=ExternalName"`
	ExternalName string `validate:"required"`
	Secure       bool
}

// CORSConfig holds CORS settings. No origins means CORS is off.
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds logging and metrics export configuration.
// Metrics are exported over OTLP/HTTP only when OTLPEndpoint is set.
type ObservabilityConfig struct {
	LogLevel       string `validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat      string `validate:"required,oneof=json console"`
	OTLPEndpoint   string
	OTLPInsecure   bool
	ServiceName    string
	MetricInterval time.Duration `validate:"gte=0"`
}

// fileConfig is the YAML config file. Key names follow the deployment's
// existing videoauth.yaml files.
type fileConfig struct {
	ListenPort        int      `yaml:"listen-port"`
	PrivateCredKey    string   `yaml:"private-cred-key"`
	OAuthClientID     string   `yaml:"oauth-client-id"`
	AuthorizedUsers   []string `yaml:"authorized-users"`
	PrivateCredCookie string   `yaml:"private-cred-cookie"`
	GoogleCredCookie  string   `yaml:"google-cred-cookie"`
}

// New creates a new Config from an optional YAML file and the environment.
// Environment variables override file values. An empty path falls back to
// CONFIG_FILE; when neither is set only the environment is used.
func New(ctx context.Context, path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	var file fileConfig
	if path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		file = *loaded
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(orInt(file.ListenPort, 8080)),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("AUTH_REQUEST_TIMEOUT", 15*time.Second),
		},
		Credentials: CredentialConfig{
			PrivateKey:      getEnv("PRIVATE_CRED_KEY", file.PrivateCredKey),
			AuthorizedUsers: getEnvAsList("AUTHORIZED_USERS", file.AuthorizedUsers),
		},
		Google: GoogleConfig{
			ClientID:             getEnv("OAUTH_CLIENT_ID", file.OAuthClientID),
			JWKSURL:              getEnv("GOOGLE_JWKS_URL", DefaultJWKSURL),
			CacheTTL:             getEnvAsDuration("GOOGLE_JWKS_CACHE_TTL", time.Hour),
			HTTPTimeout:          getEnvAsDuration("GOOGLE_HTTP_TIMEOUT", 10*time.Second),
			VerifyTimeout:        getEnvAsDuration("GOOGLE_VERIFY_TIMEOUT", 10*time.Second),
			RequireVerifiedEmail: getEnvAsBool("GOOGLE_REQUIRE_VERIFIED_EMAIL", false),
		},
		Cookies: CookieConfig{
			OpaqueName:   getEnv("PRIVATE_CRED_COOKIE", orString(file.PrivateCredCookie, DefaultOpaqueCookie)),
			ExternalName: getEnv("GOOGLE_CRED_COOKIE", orString(file.GoogleCredCookie, DefaultExternalCookie)),
			Secure:       getEnvAsBool("COOKIE_SECURE", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure:   getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "authgate"),
			MetricInterval: getEnvAsDuration("OTEL_METRIC_EXPORT_INTERVAL", time.Minute),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile reads and parses a YAML config file.
func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &file, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	// Google sign-in and a non-empty allow list are required in production
	if c.IsProduction() {
		if c.Google.ClientID == "" {
			return errors.New("oauth client ID is required in production")
		}
		if len(c.Credentials.AuthorizedUsers) == 0 {
			return errors.New("at least one authorized user is required in production")
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars
func getPort(defaultValue int) int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func orString(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func orInt(value, defaultValue int) int {
	if value != 0 {
		return value
	}
	return defaultValue
}

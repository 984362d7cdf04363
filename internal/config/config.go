// Package config loads license server configuration from environment
// variables (SPC_ prefix) merged over an optional config.yaml. Environment
// always wins. Secrets (signing key, JWT key, admin credential) are loaded
// once here and handed to constructors; nothing else in the codebase reads
// the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	License   LicenseConfig   `yaml:"license" envconfig:"LICENSE"`
	Auth      AuthConfig      `yaml:"auth" envconfig:"AUTH"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/license-server.log"`
}

// DatabaseConfig contains license store configuration
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"PATH" default:"data/licenses.db"`
}

// LicenseConfig contains licensing domain configuration
type LicenseConfig struct {
	// SigningSecret keys the HMAC engine for offline license files. Required,
	// no default: a guessable secret would let anyone mint valid files.
	SigningSecret string `yaml:"signing_secret" envconfig:"SIGNING_SECRET"`
	// ExpirySweepInterval controls how often the background job scans for
	// licenses that crossed their expiry date.
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval" envconfig:"EXPIRY_SWEEP_INTERVAL" default:"1h"`
}

// AuthConfig contains admin authentication configuration
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	AdminUsername     string        `yaml:"admin_username" envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPasswordHash string        `yaml:"admin_password_hash" envconfig:"ADMIN_PASSWORD_HASH"`
	TokenTTL          time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL" default:"12h"`
}

// SheetsConfig contains optional Google Sheets sync configuration
type SheetsConfig struct {
	Enabled         bool          `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	SpreadsheetID   string        `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	SheetName       string        `yaml:"sheet_name" envconfig:"SHEET_NAME" default:"Licenses"`
	CredentialsFile string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE" default:"credentials.json"`
	SyncInterval    time.Duration `yaml:"sync_interval" envconfig:"SYNC_INTERVAL" default:"10m"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"spcpulse-license-server"`
	TraceStdout bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT" default:"false"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SPC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge fills fields the environment left empty from the file config.
// Only secrets and identifiers merge; numeric fields already carry env
// defaults from envconfig and keep them.
func merge(fileCfg, envCfg Config) Config {
	if envCfg.License.SigningSecret == "" {
		envCfg.License.SigningSecret = fileCfg.License.SigningSecret
	}
	if envCfg.Auth.JWTSecret == "" {
		envCfg.Auth.JWTSecret = fileCfg.Auth.JWTSecret
	}
	if envCfg.Auth.AdminPasswordHash == "" {
		envCfg.Auth.AdminPasswordHash = fileCfg.Auth.AdminPasswordHash
	}
	if envCfg.Sheets.SpreadsheetID == "" {
		envCfg.Sheets.SpreadsheetID = fileCfg.Sheets.SpreadsheetID
	}
	return envCfg
}

// validate checks the loaded configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.License.SigningSecret == "" {
		return fmt.Errorf("license signing secret is required (SPC_LICENSE_SIGNING_SECRET)")
	}
	if len(c.License.SigningSecret) < 32 {
		return fmt.Errorf("license signing secret must be at least 32 characters")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required (SPC_AUTH_JWT_SECRET)")
	}
	if c.Auth.AdminPasswordHash == "" {
		return fmt.Errorf("admin password hash is required (SPC_AUTH_ADMIN_PASSWORD_HASH)")
	}
	if c.Sheets.Enabled && c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets sync enabled but no spreadsheet id configured")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "stdout" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/license-server.log"
	}

	return nil
}

// findConfigFile returns the path to the config file, or empty if none
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration with placeholder secrets. Tests
// use it; production always goes through Load.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   25,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/license-server.log",
		},
		Database: DatabaseConfig{
			Path: "data/licenses.db",
		},
		License: LicenseConfig{
			ExpirySweepInterval: time.Hour,
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
			TokenTTL:      12 * time.Hour,
		},
		Sheets: SheetsConfig{
			SheetName:    "Licenses",
			SyncInterval: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: "spcpulse-license-server",
		},
	}
}

// Package config loads settings from the environment, reading a .env file
// first when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// devSessionKey signs cookies when SESSION_KEY is unset in development.
const devSessionKey = "billed-development-session-key-32"

// Config holds the client server settings.
type Config struct {
	Port         string
	StoreURL     string
	StoreToken   string
	SessionKey   []byte
	SecureCookie bool
	TemplateDir  string
	StaticDir    string
}

// BackendConfig holds the local store server settings.
type BackendConfig struct {
	Port      string
	DBPath    string
	UploadDir string
	PublicURL string
	Token     string
}

// LoadEnv reads the given .env files (".env" when none is given) into the
// process environment. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the client Config. SESSION_KEY is mandatory in production.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        GetEnvOrDefault("PORT", "8080"),
		StoreURL:    GetEnvOrDefault("STORE_URL", "http://localhost:5678"),
		StoreToken:  os.Getenv("STORE_TOKEN"),
		TemplateDir: GetEnvOrDefault("TEMPLATE_DIR", "web/templates"),
		StaticDir:   GetEnvOrDefault("STATIC_DIR", "web/static"),
	}

	secure, err := strconv.ParseBool(GetEnvOrDefault("SECURE_COOKIE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURE_COOKIE: %w", err)
	}
	cfg.SecureCookie = secure

	key := os.Getenv("SESSION_KEY")
	if key == "" {
		if os.Getenv("APP_ENV") == "production" {
			return nil, errors.New("SESSION_KEY is required in production")
		}
		key = devSessionKey
	}
	if len(key) < 32 {
		return nil, errors.New("SESSION_KEY must be at least 32 bytes")
	}
	cfg.SessionKey = []byte(key)

	return cfg, nil
}

// LoadBackend builds the BackendConfig.
func LoadBackend() (*BackendConfig, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}
	port := GetEnvOrDefault("BACKEND_PORT", "5678")
	return &BackendConfig{
		Port:      port,
		DBPath:    GetEnvOrDefault("DB_PATH", "bills.db"),
		UploadDir: GetEnvOrDefault("UPLOAD_DIR", "uploads"),
		PublicURL: GetEnvOrDefault("PUBLIC_URL", "http://localhost:"+port),
		Token:     os.Getenv("STORE_TOKEN"),
	}, nil
}

// GetEnvOrDefault returns the value of key, or defaultValue when it is unset
// or empty.
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Attachment storage (S3-compatible)
	StorageEndpoint      string
	StorageRegion        string
	StorageAccessKey     string
	StorageSecretKey     string
	StorageBucket        string
	StoragePublicBaseURL string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// ReplyDelay is the assistant's thinking pause before a reply.
	ReplyDelay time.Duration
}

// fileConfig is the YAML shape of the optional config file. Every field
// is optional; environment variables override whatever the file sets.
type fileConfig struct {
	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	Storage struct {
		Endpoint      string `yaml:"endpoint"`
		Region        string `yaml:"region"`
		AccessKey     string `yaml:"access_key"`
		SecretKey     string `yaml:"secret_key"`
		Bucket        string `yaml:"bucket"`
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"storage"`
	Logging struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"logging"`
	ReplyDelayMS int `yaml:"reply_delay_ms"`
}

// Load reads configuration from the optional YAML file, then applies
// environment variable overrides.
func Load() (Config, error) {
	fc, err := loadFile(configFilePath())
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", fallback(fc.SurrealDB.URL, "ws://localhost:8000/rpc")),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", fallback(fc.SurrealDB.Namespace, "chatdesk")),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", fallback(fc.SurrealDB.Database, "chat")),
		SurrealDBUser:      getEnv("SURREALDB_USER", fallback(fc.SurrealDB.User, "root")),
		SurrealDBPass:      getEnv("SURREALDB_PASS", fallback(fc.SurrealDB.Pass, "root")),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", fallback(fc.SurrealDB.AuthLevel, "root")),

		StorageEndpoint:      getEnv("CHATDESK_STORAGE_ENDPOINT", fc.Storage.Endpoint),
		StorageRegion:        getEnv("CHATDESK_STORAGE_REGION", fallback(fc.Storage.Region, "auto")),
		StorageAccessKey:     getEnv("CHATDESK_STORAGE_ACCESS_KEY", fc.Storage.AccessKey),
		StorageSecretKey:     getEnv("CHATDESK_STORAGE_SECRET_KEY", fc.Storage.SecretKey),
		StorageBucket:        getEnv("CHATDESK_STORAGE_BUCKET", fallback(fc.Storage.Bucket, "chatdesk-attachments")),
		StoragePublicBaseURL: getEnv("CHATDESK_STORAGE_PUBLIC_URL", fc.Storage.PublicBaseURL),

		LogFile:  getEnv("CHATDESK_LOG_FILE", fallback(fc.Logging.File, "/tmp/chatdesk.log")),
		LogLevel: parseLogLevel(getEnv("CHATDESK_LOG_LEVEL", fallback(fc.Logging.Level, "INFO"))),

		ReplyDelay: replyDelay(fc.ReplyDelayMS),
	}

	return cfg, nil
}

// configFilePath returns the explicit CHATDESK_CONFIG path, or the
// default under the user config dir.
func configFilePath() string {
	if path := os.Getenv("CHATDESK_CONFIG"); path != "" {
		return path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatdesk", "config.yaml")
}

// loadFile parses the YAML config file. A missing file is not an error;
// a malformed one is.
func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func replyDelay(fileMS int) time.Duration {
	if env := os.Getenv("CHATDESK_REPLY_DELAY_MS"); env != "" {
		if ms, err := strconv.Atoi(env); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	if fileMS > 0 {
		return time.Duration(fileMS) * time.Millisecond
	}
	return 1500 * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func fallback(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

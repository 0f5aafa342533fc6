package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers accepted by PORTAL_STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverRedis    = "redis"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	StoreDriver            string
	DatabaseURL            string
	SQLitePath             string
	RedisURL               string
	NATSURL                string
	ChannelBase            string
	JWTSecret              string
	SessionTTL             time.Duration
	SlotMaxBytes           int64
	UploadMaxMB            int
	BooksMaxRecords        int
	NotesMaxRecords        int
	PYQsMaxRecords         int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SupabaseURL            string
	SupabaseKey            string
	UpstreamTimeout        time.Duration
	CORSOrigins            string
	AccessLog              bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether upload mirroring credentials are present.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Campus Portal API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("sqlite.path", "portal.db")
	v.SetDefault("channel.base", "portal")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("slot.max_bytes", 50*1024*1024)
	v.SetDefault("upload.max_mb", 5)
	v.SetDefault("books.max_records", 100)
	v.SetDefault("notes.max_records", 100)
	v.SetDefault("pyqs.max_records", 100)
	v.SetDefault("cloudinary.folder", "portal/uploads")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("access.log", false)

	sessionTTL, err := parseDuration(v.GetString("session.ttl"), 12*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid session ttl: %w", err)
	}

	upstreamTimeout, err := parseDuration(v.GetString("upstream.timeout"), 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid upstream timeout: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		StoreDriver:            strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
		DatabaseURL:            v.GetString("database.url"),
		SQLitePath:             v.GetString("sqlite.path"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		ChannelBase:            v.GetString("channel.base"),
		JWTSecret:              v.GetString("jwt.secret"),
		SessionTTL:             sessionTTL,
		SlotMaxBytes:           v.GetInt64("slot.max_bytes"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		BooksMaxRecords:        v.GetInt("books.max_records"),
		NotesMaxRecords:        v.GetInt("notes.max_records"),
		PYQsMaxRecords:         v.GetInt("pyqs.max_records"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SupabaseURL:            strings.TrimRight(v.GetString("supabase.url"), "/"),
		SupabaseKey:            v.GetString("supabase.key"),
		UpstreamTimeout:        upstreamTimeout,
		CORSOrigins:            v.GetString("cors.origins"),
		AccessLog:              v.GetBool("access.log"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url must be provided for the postgres store")
		}
	case StoreDriverRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("redis url must be provided for the redis store")
		}
	case StoreDriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 5
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

// PlaceholderSessionSecret is used when no session secret is configured.
// It is not safe outside local development.
const PlaceholderSessionSecret = "supersecretkey"

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Data          DataConfig
	AI            AIConfig
	Query         QueryConfig
	Session       SessionConfig
	CORS          CORSConfig
	Snapshot      SnapshotConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DataConfig struct {
	CSVPath       string
	DBPath        string
	DateThreshold float64
	NumThreshold  float64
	PreviewRows   int
}

type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type QueryConfig struct {
	// Passthrough lets questions starting with "select" run verbatim against the store.
	Passthrough bool
}

type SessionConfig struct {
	Secret    string
	DefaultID string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type SnapshotConfig struct {
	Enabled bool
	// Keep is the number of snapshots retained after each upload; zero keeps all.
	Keep int
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

// UsesPlaceholderSecret reports whether the session secret was left at its insecure default.
func (c Config) UsesPlaceholderSecret() bool {
	return c.Session.Secret == PlaceholderSessionSecret
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TABLECHAT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TABLECHAT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	// The provider-specific key is honored when the namespaced one is absent.
	if err := applyString(lookup, "OPENROUTER_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}

	steps := []func() error{
		func() error { return applyString(lookup, "TABLECHAT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "TABLECHAT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "TABLECHAT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "TABLECHAT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "TABLECHAT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "TABLECHAT_DATA_CSV_PATH", &cfg.Data.CSVPath) },
		func() error { return applyString(lookup, "TABLECHAT_DATA_DB_PATH", &cfg.Data.DBPath) },
		func() error { return applyFloat(lookup, "TABLECHAT_DATA_DATE_THRESHOLD", &cfg.Data.DateThreshold) },
		func() error { return applyFloat(lookup, "TABLECHAT_DATA_NUM_THRESHOLD", &cfg.Data.NumThreshold) },
		func() error { return applyInt(lookup, "TABLECHAT_DATA_PREVIEW_ROWS", &cfg.Data.PreviewRows) },
		func() error { return applyString(lookup, "TABLECHAT_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "TABLECHAT_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "TABLECHAT_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyDuration(lookup, "TABLECHAT_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyBool(lookup, "TABLECHAT_QUERY_PASSTHROUGH", &cfg.Query.Passthrough) },
		func() error { return applyString(lookup, "TABLECHAT_SESSION_SECRET", &cfg.Session.Secret) },
		func() error { return applyString(lookup, "TABLECHAT_SESSION_DEFAULT_ID", &cfg.Session.DefaultID) },
		func() error { return applyList(lookup, "TABLECHAT_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins) },
		func() error { return applyBool(lookup, "TABLECHAT_SNAPSHOT_ENABLED", &cfg.Snapshot.Enabled) },
		func() error { return applyInt(lookup, "TABLECHAT_SNAPSHOT_KEEP", &cfg.Snapshot.Keep) },
		func() error { return applyString(lookup, "TABLECHAT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "TABLECHAT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "TABLECHAT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "TABLECHAT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "TABLECHAT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "TABLECHAT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "TABLECHAT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "TABLECHAT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "TABLECHAT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "TABLECHAT_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Data.CSVPath == "" {
		return Config{}, fmt.Errorf("csv path is required")
	}
	if cfg.Data.DBPath == "" {
		return Config{}, fmt.Errorf("db path is required")
	}
	if err := validateFraction("TABLECHAT_DATA_DATE_THRESHOLD", cfg.Data.DateThreshold); err != nil {
		return Config{}, err
	}
	if err := validateFraction("TABLECHAT_DATA_NUM_THRESHOLD", cfg.Data.NumThreshold); err != nil {
		return Config{}, err
	}
	if cfg.Data.PreviewRows <= 0 {
		return Config{}, fmt.Errorf("invalid TABLECHAT_DATA_PREVIEW_ROWS: must be > 0")
	}
	if cfg.Snapshot.Keep < 0 {
		return Config{}, fmt.Errorf("invalid TABLECHAT_SNAPSHOT_KEEP: must be >= 0")
	}
	if cfg.Session.DefaultID == "" {
		return Config{}, fmt.Errorf("default session id is required")
	}
	if cfg.Session.Secret == "" {
		cfg.Session.Secret = PlaceholderSessionSecret
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tablechat"},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 45 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Data: DataConfig{
			CSVPath:       "complex_business_data.csv",
			DBPath:        "business_data.duckdb",
			DateThreshold: 0.5,
			NumThreshold:  0.5,
			PreviewRows:   10,
		},
		AI: AIConfig{
			BaseURL: "https://openrouter.ai/api",
			Model:   "meta-llama/llama-3.3-8b-instruct:free",
			Timeout: 30 * time.Second,
		},
		Query: QueryConfig{
			Passthrough: true,
		},
		Session: SessionConfig{
			Secret:    PlaceholderSessionSecret,
			DefaultID: "default",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Snapshot: SnapshotConfig{
			Enabled: false,
			Keep:    5,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "tablechat",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Query.Passthrough = false
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func validateFraction(key string, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("invalid %s: %v is outside [0,1]", key, value)
	}
	return nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}

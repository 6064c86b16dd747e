package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"orionos/internal/servicetoken"
)

// ConfigPath is the config file used when Load gets an empty path.
var ConfigPath = defaultConfigPath()

func defaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("DESKTOP_CONFIG")); v != "" {
		return v
	}
	return "config.yaml"
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                         string   `yaml:"port"`
	LogLevel                     string   `yaml:"logLevel"`
	DatabaseURL                  string   `yaml:"databaseURL"`
	RedisAddr                    string   `yaml:"redisAddr"`
	RedisPassword                string   `yaml:"redisPassword"`
	AuthJWKSURL                  string   `yaml:"authJwksURL"`
	JWTIssuer                    string   `yaml:"jwtIssuer"`
	JWTAudience                  string   `yaml:"jwtAudience"`
	JWTLeeway                    string   `yaml:"jwtLeeway"`
	MinioEndpoint                string   `yaml:"minioEndpoint"`
	MinioAccessKey               string   `yaml:"minioAccessKey"`
	MinioSecretKey               string   `yaml:"minioSecretKey"`
	MinioBucket                  string   `yaml:"minioBucket"`
	MinioUseSSL                  bool     `yaml:"minioUseSSL"`
	PublicAssetBaseURL           string   `yaml:"publicAssetBaseURL"`
	InternalJWTPublicKeyPath     string   `yaml:"internalJwtPublicKeyPath"`
	InternalJWTKeyID             string   `yaml:"internalJwtKeyId"`
	InternalJWTVerifyPublicKeys  string   `yaml:"internalJwtVerifyPublicKeys"`
	InternalJWTAllowedIssuers    []string `yaml:"internalJwtAllowedIssuers"`
	TrustedProxyCIDRs            []string `yaml:"trustedProxyCidrs"`
	AllowedOrigins               []string `yaml:"allowedOrigins"`
	InitializeRateLimitPerMinute int      `yaml:"initializeRateLimitPerMinute"`
	UploadRateLimitPerMinute     int      `yaml:"uploadRateLimitPerMinute"`
	MaxUploadBytes               int64    `yaml:"maxUploadBytes"`
	SessionTTL                   string   `yaml:"sessionTTL"`
	StorageLimitBytes            int64    `yaml:"storageLimitBytes"`
}

// Load reads config from path (defaults to ConfigPath).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DESKTOP_AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("DESKTOP_PUBLIC_ASSET_BASE_URL"); v != "" {
		cfg.PublicAssetBaseURL = v
	}
	if v := os.Getenv("DESKTOP_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("DESKTOP_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("DESKTOP_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("DESKTOP_STORAGE_LIMIT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.StorageLimitBytes = n
		}
	}
	if v := os.Getenv("DESKTOP_INITIALIZE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InitializeRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("DESKTOP_UPLOAD_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UploadRateLimitPerMinute = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.InternalJWTKeyID == "" {
		cfg.InternalJWTKeyID = "internal-active"
	}
	if len(cfg.InternalJWTAllowedIssuers) == 0 {
		cfg.InternalJWTAllowedIssuers = []string{"orionctl"}
	}
	if cfg.InitializeRateLimitPerMinute == 0 {
		cfg.InitializeRateLimitPerMinute = 10
	}
	if cfg.UploadRateLimitPerMinute == 0 {
		cfg.UploadRateLimitPerMinute = 30
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.StorageLimitBytes == 0 {
		cfg.StorageLimitBytes = 10737418240
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "30m"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.AuthJWKSURL == "" {
		return errors.New("config: authJwksURL is required (set in config.yaml or DESKTOP_AUTH_JWKS_URL)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml)")
	}
	if cfg.MinioAccessKey == "" {
		return errors.New("config: minioAccessKey is required (set in config.yaml)")
	}
	if cfg.MinioSecretKey == "" {
		return errors.New("config: minioSecretKey is required (set in config.yaml)")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml)")
	}
	if cfg.InternalJWTPublicKeyPath == "" && cfg.InternalJWTVerifyPublicKeys == "" {
		return errors.New("config: internalJwtPublicKeyPath is required (set in config.yaml)")
	}
	if cfg.InitializeRateLimitPerMinute < 0 || cfg.UploadRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must not be negative")
	}
	if cfg.StorageLimitBytes < 0 {
		return errors.New("config: storageLimitBytes must not be negative")
	}
	if _, err := ParseDuration("jwtLeeway", cfg.JWTLeeway); err != nil {
		return err
	}
	if ttl, err := ParseDuration("sessionTTL", cfg.SessionTTL); err != nil {
		return err
	} else if ttl <= 0 {
		return errors.New("config: sessionTTL must be positive")
	}
	return nil
}

// ParseDuration parses an optional duration field; empty means zero.
func ParseDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", field, err)
	}
	return dur, nil
}

// VerifyPublicKeys merges the single public key path with the kid map.
func (c FileConfig) VerifyPublicKeys() (map[string]string, error) {
	keys := map[string]string{}
	if c.InternalJWTPublicKeyPath != "" {
		keys[c.InternalJWTKeyID] = c.InternalJWTPublicKeyPath
	}
	extra, err := servicetoken.ParsePublicKeys(c.InternalJWTVerifyPublicKeys)
	if err != nil {
		return nil, fmt.Errorf("config: internalJwtVerifyPublicKeys: %w", err)
	}
	for kid, path := range extra {
		keys[kid] = path
	}
	return keys, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

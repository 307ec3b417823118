package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	AccessTokenExpiry  time.Duration `mapstructure:"ACCESS_TOKEN_EXPIRY"`
	RefreshTokenExpiry time.Duration `mapstructure:"REFRESH_TOKEN_EXPIRY"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	BlobBackend string `mapstructure:"BLOB_BACKEND"`
	BlobDir     string `mapstructure:"BLOB_DIR"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`

	TriageAPIURL string `mapstructure:"TRIAGE_API_URL"`
	TriageAPIKey string `mapstructure:"TRIAGE_API_KEY"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("ACCESS_TOKEN_EXPIRY", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRY", "168h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BLOB_BACKEND", "local")
	v.SetDefault("BLOB_DIR", "uploads")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("ACCESS_TOKEN_EXPIRY")
	v.BindEnv("REFRESH_TOKEN_EXPIRY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("BLOB_BACKEND")
	v.BindEnv("BLOB_DIR")
	v.BindEnv("S3_BUCKET")
	v.BindEnv("TRIAGE_API_URL")
	v.BindEnv("TRIAGE_API_KEY")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// a real JWT secret is required, and the selected blob backend must be fully
// configured.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes when ENV is not development")
	}

	switch c.BlobBackend {
	case "local":
		if c.BlobDir == "" {
			return fmt.Errorf("BLOB_DIR is required for the local blob backend")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 blob backend")
		}
	case "memory":
		// tests and throwaway dev runs only
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"local\", \"s3\", or \"memory\", got %q", c.BlobBackend)
	}

	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive durations")
	}
	if c.RefreshTokenExpiry < c.AccessTokenExpiry {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRY must not be shorter than ACCESS_TOKEN_EXPIRY")
	}

	return nil
}

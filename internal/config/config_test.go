package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		Port:               "8000",
		Env:                "production",
		DatabaseURL:        "postgres://localhost/healthlink",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 168 * time.Hour,
		BlobBackend:        "local",
		BlobDir:            "uploads",
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := baseConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ShortSecretInProduction(t *testing.T) {
	cfg := baseConfig()
	cfg.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short JWT secret in production")
	}
}

func TestValidate_ShortSecretAllowedInDev(t *testing.T) {
	cfg := baseConfig()
	cfg.Env = "development"
	cfg.JWTSecret = "dev"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg := baseConfig()
	cfg.BlobBackend = "s3"
	cfg.S3Bucket = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}
	cfg.S3Bucket = "healthlink-reports"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := baseConfig()
	cfg.BlobBackend = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown blob backend")
	}
}

func TestValidate_RefreshShorterThanAccess(t *testing.T) {
	cfg := baseConfig()
	cfg.RefreshTokenExpiry = time.Minute
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when refresh expiry is shorter than access expiry")
	}
}

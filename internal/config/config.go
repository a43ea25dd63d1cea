package config

import (
	"fmt"
	"os"
)

type Config struct {
	// Supabase Storage (hosted image store)
	SupabaseURL        string
	SupabaseServiceKey string
	StorageBucket      string
	StorageFolder      string

	// Auth
	JWTSecret string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
	UploadDir   string
}

func Load() (*Config, error) {
	cfg := &Config{
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", "pedido-images"),
		StorageFolder:      getEnv("STORAGE_FOLDER", "pedidos"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"github.com/example/fiction-portal/internal/platform/config"
)

// Config holds catalogstore-specific settings on top of the shared app config.
type Config struct {
	// StoreToken is the shared bearer token the portal presents. Empty
	// disables service auth (development only).
	StoreToken string

	// DatabaseURL selects Postgres; empty falls back to the in-memory
	// store (development only, refused in production).
	DatabaseURL string

	NATSURL string

	Production bool
}

func Load() Config {
	return Config{
		StoreToken:  config.EnvStr("STORE_TOKEN", ""),
		DatabaseURL: config.EnvStr("DATABASE_URL", ""),
		NATSURL:     config.EnvStr("NATS_URL", "nats://nats:4222"),
		Production:  config.EnvStr("APP_ENV", "") == "production",
	}
}

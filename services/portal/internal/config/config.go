package config

import (
	"os"

	platformconfig "github.com/example/fiction-portal/internal/platform/config"
)

// Config holds portal-specific settings on top of the shared app config.
type Config struct {
	// StoreURL is the catalog store base URL. Empty selects the in-process
	// store, which is only allowed outside production.
	StoreURL   string
	StoreToken string

	JWTSecret      string
	PlaybackSecret string

	NATSURL string

	// ProgressRPS / ProgressBurst throttle progress writes per user.
	ProgressRPS   int
	ProgressBurst int

	Production bool
}

func Load() Config {
	return Config{
		StoreURL:       platformconfig.EnvStr("STORE_URL", ""),
		StoreToken:     platformconfig.EnvStr("STORE_TOKEN", ""),
		JWTSecret:      platformconfig.EnvStr("JWT_SECRET", "dev-secret"),
		PlaybackSecret: platformconfig.EnvStr("PLAYBACK_SECRET", "dev-playback-secret"),
		NATSURL:        platformconfig.EnvStr("NATS_URL", "nats://nats:4222"),
		ProgressRPS:    platformconfig.EnvInt("PROGRESS_RATE_LIMIT", 5),
		ProgressBurst:  platformconfig.EnvInt("PROGRESS_RATE_BURST", 10),
		Production:     os.Getenv("APP_ENV") == "production",
	}
}

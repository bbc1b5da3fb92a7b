package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Limits   LimitsConfig
	Jobs     JobsConfig
	R2       R2Config

	RedisURL   string `env:"REDIS_URL"`
	CDNBaseURL string `env:"CDN_BASE_URL"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"5200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	// ServiceToken guards /internal; the routes are not mounted when empty.
	ServiceToken string `env:"SERVICE_TOKEN"`
}

type DatabaseConfig struct {
	URL          string        `env:"DATABASE_URL,required,notEmpty"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
}

// AuthConfig selects the token verifier: a shared JWT secret when set,
// otherwise the remote auth service.
type AuthConfig struct {
	JWTSecret   string `env:"AUTH_JWT_SECRET"`
	JWTAudience string `env:"AUTH_JWT_AUDIENCE"`
	ServiceURL  string `env:"AUTH_SERVICE_URL"`
	ServiceKey  string `env:"AUTH_SERVICE_KEY"`
}

type LimitsConfig struct {
	MaxDailySubmissions int `env:"MAX_DAILY_SUBMISSIONS" envDefault:"3"`
}

type JobsConfig struct {
	AwardRetryInterval      time.Duration `env:"AWARD_RETRY_INTERVAL" envDefault:"30s"`
	RankRepairInterval      time.Duration `env:"RANK_REPAIR_INTERVAL" envDefault:"1h"`
	LeaderboardSyncInterval time.Duration `env:"LEADERBOARD_SYNC_INTERVAL" envDefault:"5m"`
}

type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_SECRET_ACCESS_KEY"`
	Bucket          string `env:"R2_BUCKET"`
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a AuthConfig) UsesJWT() bool {
	return a.JWTSecret != ""
}

package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string   `mapstructure:"REDIS_URL"`
	JWTSecret        string   `mapstructure:"JWT_SECRET"`
	JWTIssuer        string   `mapstructure:"JWT_ISSUER"`
	TokenTTLMinutes  int      `mapstructure:"TOKEN_TTL_MINUTES"`
	DefaultOrg       string   `mapstructure:"DEFAULT_ORG"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`
	MessageGateway   string   `mapstructure:"MESSAGE_GATEWAY_URL"`
	MessageToken     string   `mapstructure:"MESSAGE_GATEWAY_TOKEN"`
	ReminderInterval int      `mapstructure:"REMINDER_INTERVAL_MINUTES"`
	ReminderLeadTime int      `mapstructure:"REMINDER_LEAD_HOURS"`
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
	v.SetDefault("JWT_ISSUER", "clinicore")
	v.SetDefault("TOKEN_TTL_MINUTES", 480)
	v.SetDefault("DEFAULT_ORG", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REMINDER_INTERVAL_MINUTES", 15)
	v.SetDefault("REMINDER_LEAD_HOURS", 24)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("TOKEN_TTL_MINUTES")
	v.BindEnv("DEFAULT_ORG")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("MESSAGE_GATEWAY_URL")
	v.BindEnv("MESSAGE_GATEWAY_TOKEN")
	v.BindEnv("REMINDER_INTERVAL_MINUTES")
	v.BindEnv("REMINDER_LEAD_HOURS")

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

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenTTL returns the configured access-token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. Outside development
// mode JWT_SECRET must be set so that real authentication is enforced, and it
// must be long enough to resist brute force.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
		}
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", c.TokenTTLMinutes)
	}
	if c.ReminderIntervalDuration() <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL_MINUTES must be positive, got %d", c.ReminderInterval)
	}
	return nil
}

// ReminderIntervalDuration returns how often the reminder worker scans.
func (c *Config) ReminderIntervalDuration() time.Duration {
	return time.Duration(c.ReminderInterval) * time.Minute
}

// ReminderLeadDuration returns how far ahead of an appointment reminders go out.
func (c *Config) ReminderLeadDuration() time.Duration {
	return time.Duration(c.ReminderLeadTime) * time.Hour
}

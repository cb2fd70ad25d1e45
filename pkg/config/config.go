package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	SecretKey             []byte
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration
	OTPTTL                time.Duration
	StrictPermissionCodes bool

	SMTP SMTPConfig

	KafkaBrokers    []string
	KafkaAuditTopic string

	ESURL        string
	ESUser       string
	ESPassword   string
	ESAuditIndex string

	RedisAddr          string
	RateLimitPerMinute int
	RateLimitBurst     int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads the process environment, after merging an optional .env file.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("notice: .env not loaded: %v", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "sst-auth"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SecretKey:             []byte(os.Getenv("SECRET_KEY")),
		AccessTokenTTL:        time.Duration(EnvIntDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		RefreshTokenTTL:       time.Duration(EnvIntDefault("REFRESH_TOKEN_EXPIRE_DAYS", 15)) * 24 * time.Hour,
		OTPTTL:                time.Duration(EnvIntDefault("OTP_EXPIRE_MINUTES", 5)) * time.Minute,
		StrictPermissionCodes: EnvBoolDefault("RBAC_STRICT_PERMISSION_CODES", false),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     EnvIntDefault("SMTP_PORT", 1025),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     EnvDefault("SMTP_FROM", "no-reply@sst.local"),
		},

		KafkaBrokers:    CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic: EnvDefault("KAFKA_AUDIT_TOPIC", "auth_events"),

		ESURL:        os.Getenv("ES_URL"),
		ESUser:       os.Getenv("ES_USER"),
		ESPassword:   os.Getenv("ES_PASSWORD"),
		ESAuditIndex: EnvDefault("ES_AUDIT_INDEX", "sst-auth-audit"),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RateLimitPerMinute: EnvIntDefault("RATE_LIMIT_PER_MINUTE", 20),
		RateLimitBurst:     EnvIntDefault("RATE_LIMIT_BURST", 5),
	}
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, missing("DATABASE_URL"))
	}
	if len(c.SecretKey) == 0 {
		errs = append(errs, missing("SECRET_KEY"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be > 0"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_TOKEN_EXPIRE_DAYS must be > 0"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, fmt.Errorf("OTP_EXPIRE_MINUTES must be > 0"))
	}
	return errors.Join(errs...)
}

func missing(envName string) error {
	return fmt.Errorf("missing required env %s", envName)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the environment of the cart API service.
type Config struct {
	ServiceName string

	ServerPort int

	DBDriver    string
	DatabaseURL string

	JWTSecret       []byte
	TokenTTLMinutes int

	APIEmail        string
	APIPasswordHash string
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "cartapi"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:       []byte(os.Getenv("JWT_HS256_SECRET")),
		TokenTTLMinutes: EnvIntDefault("TOKEN_TTL_MINUTES", 15),

		APIEmail:        os.Getenv("API_EMAIL"),
		APIPasswordHash: os.Getenv("API_PASSWORD_HASH"),
	}
}

// Validate reports the first required variable that is missing.
func (c Config) Validate() error {
	if err := RequireNonEmpty(c.DatabaseURL, "DATABASE_URL"); err != nil {
		return err
	}
	if err := RequireNonEmptyBytes(c.JWTSecret, "JWT_HS256_SECRET"); err != nil {
		return err
	}
	if err := RequireNonEmpty(c.APIEmail, "API_EMAIL"); err != nil {
		return err
	}
	return RequireNonEmpty(c.APIPasswordHash, "API_PASSWORD_HASH")
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

// Package config reads boardsync settings from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/redis/go-redis/v9"
)

// Duration parses "10s", "5m" or a bare number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalEnvironment(data string) error {
	v, err := parseDuration(data)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be like 10s, 5m or a number of seconds: %w", err)
	}
	return d, nil
}

type Config struct {
	BoardAPI BoardAPIConfig
	Redis    RedisConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
	Debug    bool `env:"DEBUG" env-default:"false"`
}

type BoardAPIConfig struct {
	URL          string   `env:"BOARD_API_URL" env-required:"true"`
	Token        string   `env:"BOARD_API_TOKEN"`
	RefreshToken string   `env:"BOARD_API_REFRESH_TOKEN"`
	Timeout      Duration `env:"BOARD_API_TIMEOUT" env-default:"10s"`
}

type RedisConfig struct {
	// URL is either redis://... or the "host:port,password=...,ssl=true" form.
	// The board cache is disabled when empty.
	URL string   `env:"REDIS_URL"`
	TTL Duration `env:"BOARD_CACHE_TTL" env-default:"30s"`
}

type HTTPConfig struct {
	ListenAddr string `env:"LISTEN_ADDR" env-default:":8080"`
}

type AuthConfig struct {
	Mode           string `env:"AUTH_MODE" env-default:"jwks"`
	SharedSecret   string `env:"AUTH_SHARED_SECRET"`
	JWKSURL        string `env:"AUTH_JWKS_URL"`
	Audience       string `env:"AUTH_AUDIENCE"`
	Issuer         string `env:"AUTH_ISSUER"`
	// ServiceSubject is the token subject of BOARD_API_TOKEN's identity.
	ServiceSubject string `env:"AUTH_SERVICE_SUBJECT"`
}

// Load reads and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.BoardAPI.URL = strings.TrimRight(strings.TrimSpace(cfg.BoardAPI.URL), "/")
	if cfg.BoardAPI.URL == "" {
		return Config{}, errors.New("BOARD_API_URL is required")
	}
	if cfg.BoardAPI.RefreshToken != "" && cfg.BoardAPI.Token == "" {
		return Config{}, errors.New("BOARD_API_REFRESH_TOKEN requires BOARD_API_TOKEN")
	}

	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	switch cfg.Auth.Mode {
	case "hs256":
		if cfg.Auth.SharedSecret == "" {
			return Config{}, errors.New("AUTH_SHARED_SECRET is required for hs256 auth")
		}
	case "jwks":
		if cfg.Auth.JWKSURL == "" {
			return Config{}, errors.New("AUTH_JWKS_URL is required for jwks auth")
		}
	default:
		return Config{}, fmt.Errorf("AUTH_MODE: unsupported mode %q", cfg.Auth.Mode)
	}

	if cfg.Redis.URL != "" {
		if _, err := RedisOptions(cfg.Redis.URL); err != nil {
			return Config{}, fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	return cfg, nil
}

// LoadAuth reads only the caller auth settings, for tooling that never talks
// to the board API.
func LoadAuth() (AuthConfig, error) {
	var cfg AuthConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return AuthConfig{}, fmt.Errorf("read env: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	return cfg, nil
}

// RedisOptions accepts a redis:// URL or a connection string of the form
// "host:port,password=secret,ssl=true".
func RedisOptions(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.Contains(parts[0], "://") || strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("invalid redis address %q", parts[0])
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

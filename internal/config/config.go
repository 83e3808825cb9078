package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Log       LogConfig
	CORS      CORSConfig
	Limits    LimitsConfig
	Providers ProvidersConfig
	Image     ImageConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig is optional: an empty URL disables event publishing.
type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LimitsConfig is the admission-control surface: per-user daily calls
// and the global monthly spend ceiling.
type LimitsConfig struct {
	DailyCallLimit int
	MonthlyCeiling decimal.Decimal
}

// ProviderConfig describes one inference backend. Cost is the per-call
// spend estimate attributed to the ledger.
type ProviderConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Cost    decimal.Decimal
}

type ProvidersConfig struct {
	Gemini ProviderConfig
	OpenAI ProviderConfig
}

// ImageConfig bounds the image reachability probe and byte fetch.
type ImageConfig struct {
	ProbeTimeout time.Duration
	FetchTimeout time.Duration
	MaxBytes     int64
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitNonEmpty(k.String("cors.allowed.origins")),
		},
		Limits: LimitsConfig{
			DailyCallLimit: k.Int("limits.daily.calls"),
		},
		Providers: ProvidersConfig{
			Gemini: ProviderConfig{
				APIKey: k.String("providers.gemini.api.key"),
				Model:  k.String("providers.gemini.model"),
			},
			OpenAI: ProviderConfig{
				APIKey: k.String("providers.openai.api.key"),
				Model:  k.String("providers.openai.model"),
			},
		},
		Image: ImageConfig{
			MaxBytes: k.Int64("image.max.bytes"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "macrosnap"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "macrosnap"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Limits.DailyCallLimit == 0 {
		cfg.Limits.DailyCallLimit = 30
	}
	if cfg.Providers.Gemini.Model == "" {
		cfg.Providers.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Providers.OpenAI.Model == "" {
		cfg.Providers.OpenAI.Model = "gpt-4o"
	}
	if cfg.Image.MaxBytes == 0 {
		cfg.Image.MaxBytes = 10 << 20
	}

	// Parse durations
	if cfg.JWT.AccessExpiry, err = parseDuration(k, "jwt.access.expiry", "15m"); err != nil {
		return nil, err
	}
	if cfg.JWT.RefreshExpiry, err = parseDuration(k, "jwt.refresh.expiry", "168h"); err != nil {
		return nil, err
	}
	if cfg.Providers.Gemini.Timeout, err = parseDuration(k, "providers.gemini.timeout", "45s"); err != nil {
		return nil, err
	}
	if cfg.Providers.OpenAI.Timeout, err = parseDuration(k, "providers.openai.timeout", "45s"); err != nil {
		return nil, err
	}
	if cfg.Image.ProbeTimeout, err = parseDuration(k, "image.probe.timeout", "5s"); err != nil {
		return nil, err
	}
	if cfg.Image.FetchTimeout, err = parseDuration(k, "image.fetch.timeout", "15s"); err != nil {
		return nil, err
	}

	// Parse money as decimals so limit arithmetic stays exact
	if cfg.Limits.MonthlyCeiling, err = parseDecimal(k, "limits.monthly.ceiling", "80"); err != nil {
		return nil, err
	}
	if cfg.Providers.Gemini.Cost, err = parseDecimal(k, "providers.gemini.cost", "0.002"); err != nil {
		return nil, err
	}
	if cfg.Providers.OpenAI.Cost, err = parseDecimal(k, "providers.openai.cost", "0.01"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(k *koanf.Koanf, key, fallback string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func parseDecimal(k *koanf.Koanf, key, fallback string) (decimal.Decimal, error) {
	s := k.String(key)
	if s == "" {
		s = fallback
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

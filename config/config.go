package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // presence-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Auth struct {
	PublicKeyPath string `yaml:"publicKeyPath"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	ClockSkew     string `yaml:"clockSkew"` // duration, default 30s
}

type WS struct {
	PingEvery  string `yaml:"pingEvery"`  // duration, default 15s
	SendBuffer int    `yaml:"sendBuffer"` // default 256
}

type Typing struct {
	TTL string `yaml:"ttl"` // duration, default 4s
}

type Outbox struct {
	Dir           string `yaml:"dir"`
	RetryInterval string `yaml:"retryInterval"` // duration, default 5s
	MaxBackoff    string `yaml:"maxBackoff"`    // duration, default 2m
}

type Events struct {
	InternalToken string `yaml:"internalToken"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	WS       WS       `yaml:"ws"`
	Typing   Typing   `yaml:"typing"`
	Outbox   Outbox   `yaml:"outbox"`
	Events   Events   `yaml:"events"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Auth.PublicKeyPath == "" {
		return errors.New("auth.publicKeyPath is required")
	}
	// verifier безусловно проверяет iss/aud: пустое значение здесь означало бы
	// отказ каждому токену в рантайме
	if c.Auth.Issuer == "" {
		return errors.New("auth.issuer is required")
	}
	if c.Auth.Audience == "" {
		return errors.New("auth.audience is required")
	}
	if c.Events.InternalToken == "" {
		return errors.New("events.internalToken is required")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "presence-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Outbox.Dir == "" {
		c.Outbox.Dir = "./data/outbox"
	}
	return nil
}

func (c *Config) ClockSkew() time.Duration     { return parseDurationOr(30*time.Second, c.Auth.ClockSkew) }
func (c *Config) PingEvery() time.Duration     { return parseDurationOr(15*time.Second, c.WS.PingEvery) }
func (c *Config) TypingTTL() time.Duration     { return parseDurationOr(4*time.Second, c.Typing.TTL) }
func (c *Config) RetryInterval() time.Duration { return parseDurationOr(5*time.Second, c.Outbox.RetryInterval) }
func (c *Config) MaxBackoff() time.Duration    { return parseDurationOr(2*time.Minute, c.Outbox.MaxBackoff) }

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

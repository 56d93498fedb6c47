package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	dErrors "eet/pkg/domain-errors"
)

// Known registration endpoints.
const (
	PlaygroundEndpoint = "https://pg.eet.cz:443/eet/services/EETServiceSOAP/v3"
	ProductionEndpoint = "https://prod.eet.cz:443/eet/services/EETServiceSOAP/v3"
)

// Config is the full process configuration.
type Config struct {
	Endpoint          string
	Certificate       Certificate
	Timeout           time.Duration
	ConnectionTimeout time.Duration
	DefaultValues     map[string]string
	// SchemaReference is accepted for compatibility with existing config
	// files. Documents are built from typed structs and not XSD-validated.
	SchemaReference string
	WarningPolicy   string
	Concurrency     int

	Breaker Breaker
	Journal Journal
	Redis   RedisConfig
	Audit   Audit
	Log     Log
	Server  Server
}

// Certificate locates the PKCS#12 store either by Path or inline as Data,
// read base64-encoded from certificate.data. Data wins when both are set.
type Certificate struct {
	Path     string
	Data     []byte
	Password string
}

// Configured reports whether a certificate store was given.
func (c Certificate) Configured() bool {
	return c.Path != "" || len(c.Data) > 0
}

type Breaker struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

type Journal struct {
	PostgresDSN string
	TTL         time.Duration
}

// RedisConfig holds connection settings; an empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Audit struct {
	KafkaBrokers []string
	Topic        string
	QueueSize    int
}

type Log struct {
	Level  string
	Format string
}

// Server is the optional operational HTTP listener; empty Addr disables it.
type Server struct {
	Addr string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout", "2500ms")
	v.SetDefault("connectionTimeout", "2s")
	v.SetDefault("warningPolicy", "log")
	v.SetDefault("concurrency", 4)
	v.SetDefault("breaker.failureThreshold", 5)
	v.SetDefault("breaker.successThreshold", 1)
	v.SetDefault("breaker.cooldown", "30s")
	v.SetDefault("journal.ttl", "720h")
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")
	v.SetDefault("audit.topic", "eet.submissions")
	v.SetDefault("audit.queueSize", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path (JSON or YAML, optional) and EET_-prefixed environment
// variables, e.g. EET_ENDPOINT or EET_CERTIFICATE_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	// Nested keys are only resolved from the environment when viper knows them.
	for _, key := range []string{"endpoint", "certificate.path", "certificate.data", "certificate.password", "schemaReference",
		"journal.postgresDSN", "redis.url", "audit.kafkaBrokers", "server.addr"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfig, "read config file")
		}
	}
	// Aliases move values already read, so they are registered after reading.
	v.RegisterAlias("wsdlPath", "endpoint")
	v.RegisterAlias("EETXMLSchema", "schemaReference")
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Endpoint:        strings.TrimSpace(v.GetString("endpoint")),
		Certificate:     Certificate{Path: v.GetString("certificate.path"), Password: v.GetString("certificate.password")},
		DefaultValues:   v.GetStringMapString("defaultValues"),
		SchemaReference: v.GetString("schemaReference"),
		WarningPolicy:   v.GetString("warningPolicy"),
		Concurrency:     v.GetInt("concurrency"),
		Breaker: Breaker{
			FailureThreshold: v.GetInt("breaker.failureThreshold"),
			SuccessThreshold: v.GetInt("breaker.successThreshold"),
		},
		Journal: Journal{PostgresDSN: v.GetString("journal.postgresDSN")},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.poolSize"),
			MinIdleConns: v.GetInt("redis.minIdleConns"),
		},
		Audit: Audit{
			KafkaBrokers: brokers(v.Get("audit.kafkaBrokers")),
			Topic:        v.GetString("audit.topic"),
			QueueSize:    v.GetInt("audit.queueSize"),
		},
		Log:    Log{Level: v.GetString("log.level"), Format: v.GetString("log.format")},
		Server: Server{Addr: v.GetString("server.addr")},
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"timeout", &cfg.Timeout},
		{"connectionTimeout", &cfg.ConnectionTimeout},
		{"breaker.cooldown", &cfg.Breaker.Cooldown},
		{"journal.ttl", &cfg.Journal.TTL},
		{"redis.dialTimeout", &cfg.Redis.DialTimeout},
		{"redis.readTimeout", &cfg.Redis.ReadTimeout},
		{"redis.writeTimeout", &cfg.Redis.WriteTimeout},
	}
	for _, d := range durations {
		parsed, err := ParseSeconds(v.Get(d.key))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfig, "invalid "+d.key)
		}
		*d.dst = parsed
	}

	data, err := decodeCertificate(v.GetString("certificate.data"))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "invalid certificate.data")
	}
	cfg.Certificate.Data = data

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeCertificate(raw string) ([]byte, error) {
	raw = strings.Join(strings.Fields(raw), "")
	if raw == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(raw)
}

// Validate checks the mandatory keys.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return dErrors.New(dErrors.CodeConfig, "missing mandatory config key endpoint (wsdlPath)")
	}
	if c.Concurrency < 1 {
		return dErrors.New(dErrors.CodeConfig, "concurrency must be at least 1")
	}
	return nil
}

// ParseSeconds reads a duration given either as a number of seconds
// (2, 2.5, "2") or as a Go duration string ("2500ms").
func ParseSeconds(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	}
	return 0, errors.New("unsupported duration value " + fmt.Sprint(raw))
}

func brokers(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

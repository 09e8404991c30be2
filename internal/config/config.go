package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize       = 64 << 20
	DefaultConcurrency     = 2
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
	DefaultRequestTimeout  = 5 * time.Minute
	DefaultListenAddr      = ":8080"
	DefaultDataDir         = "/data"
	DefaultGCTTL           = 24 * time.Hour
	DefaultGCInterval      = 30 * time.Minute
)

type Config struct {
	LogLevel string       `yaml:"log_level" json:"log_level"`
	Client   ClientConfig `yaml:"client" json:"client"`
	Stub     StubConfig   `yaml:"stub" json:"stub"`
}

// ClientConfig — настройки загрузчика.
type ClientConfig struct {
	APIURL           string        `yaml:"api_url" json:"api_url" validate:"required,url"`
	Token            string        `yaml:"token" json:"-"`
	ChunkSize        ByteSize      `yaml:"chunk_size" json:"chunk_size" validate:"gt=0"`
	Concurrency      int           `yaml:"concurrency" json:"concurrency" validate:"gte=1"`
	Retry            RetryConfig   `yaml:"retry" json:"retry"`
	CleanupOnFailure bool          `yaml:"cleanup_on_failure" json:"cleanup_on_failure"`
	JournalDSN       string        `yaml:"journal_dsn" json:"journal_dsn"`
	MetricsAddr      string        `yaml:"metrics_addr" json:"metrics_addr"`
	RequestTimeout   time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gte=0"`
}

// RetryConfig — политика повторов при сетевых сбоях.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=1"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval" validate:"gte=0"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval" validate:"gtefield=InitialInterval"`
}

// StubConfig — настройки локального сервера upload API.
type StubConfig struct {
	ListenAddr          string        `yaml:"listen_addr" json:"listen_addr" validate:"required"`
	DataDir             string        `yaml:"data_dir" json:"data_dir" validate:"required"`
	Tokens              []string      `yaml:"tokens" json:"-"`
	GCTTL               time.Duration `yaml:"gc_ttl" json:"gc_ttl" validate:"gte=0"`
	GCInterval          time.Duration `yaml:"gc_interval" json:"gc_interval" validate:"gte=0"`
	FinalizeEmptyOnInit bool          `yaml:"finalize_empty_on_init" json:"finalize_empty_on_init"`
	MaxFileSize         ByteSize      `yaml:"max_file_size" json:"max_file_size" validate:"gte=0"`
}

// ByteSize — размер в байтах, в YAML допускается "8MiB" или просто число.
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	n, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// ParseByteSize разбирает человекочитаемый размер.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

var validate = validator.New()

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Client: ClientConfig{
			ChunkSize:   DefaultChunkSize,
			Concurrency: DefaultConcurrency,
			Retry: RetryConfig{
				MaxAttempts:     DefaultMaxAttempts,
				InitialInterval: DefaultInitialInterval,
				MaxInterval:     DefaultMaxInterval,
			},
			CleanupOnFailure: true,
			JournalDSN:       "memory://",
			RequestTimeout:   DefaultRequestTimeout,
		},
		Stub: StubConfig{
			ListenAddr: DefaultListenAddr,
			DataDir:    DefaultDataDir,
			GCTTL:      DefaultGCTTL,
			GCInterval: DefaultGCInterval,
		},
	}
}

// Load читает YAML-конфигурацию из CONFIG_PATH, применяет ENV-переопределения и возвращает актуальную структуру.
func Load() (*Config, error) {
	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || path == "" {
		path = "./config.yaml"
	}
	return LoadFile(path, explicit)
}

// LoadFile читает конкретный файл. Если required=false, отсутствие файла не ошибка.
func LoadFile(path string, required bool) (*Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, err
	}

	if err = c.applyEnv(); err != nil {
		return nil, err
	}

	return c, nil
}

// applyEnv — ENV override.
func (c *Config) applyEnv() error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("API_URL"); v != "" {
		c.Client.APIURL = v
	}
	if v := os.Getenv("GIRDER_TOKEN"); v != "" {
		c.Client.Token = v
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		n, err := ParseByteSize(v)
		if err != nil {
			return fmt.Errorf("CHUNK_SIZE: %w", err)
		}
		c.Client.ChunkSize = n
	}
	if v := os.Getenv("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONCURRENCY: %w", err)
		}
		c.Client.Concurrency = n
	}
	if v := os.Getenv("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_ATTEMPTS: %w", err)
		}
		c.Client.Retry.MaxAttempts = n
	}
	if v := os.Getenv("JOURNAL_DSN"); v != "" {
		c.Client.JournalDSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Client.MetricsAddr = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Stub.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Stub.DataDir = v
	}
	if v := os.Getenv("STUB_TOKENS"); v != "" {
		c.Stub.Tokens = splitComma(v)
	}

	return nil
}

// ValidateClient проверяет секцию client.
func (c *Config) ValidateClient() error {
	if err := validate.Struct(c.Client); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	return nil
}

// ValidateStub проверяет секцию stub.
func (c *Config) ValidateStub() error {
	if err := validate.Struct(c.Stub); err != nil {
		return fmt.Errorf("stub config: %w", err)
	}
	return nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// Package config loads pdffs settings from an optional config file and
// PDFFS_ prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. PDFFS_SERVER_ADDR
const EnvPrefix = "PDFFS"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Render  RenderConfig  `mapstructure:"render"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Storage StorageConfig `mapstructure:"storage"`
	S3      S3Config      `mapstructure:"s3"`
	KV      KVConfig      `mapstructure:"kv"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB    int64         `mapstructure:"max_upload_mb" validate:"gt=0"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// RenderConfig bounds rasterization.
type RenderConfig struct {
	DefaultDPI float64 `mapstructure:"default_dpi" validate:"gt=0"`
	MinDPI     float64 `mapstructure:"min_dpi" validate:"gt=0"`
	MaxDPI     float64 `mapstructure:"max_dpi" validate:"gtefield=MinDPI"`
	MaxScale   float64 `mapstructure:"max_scale" validate:"gt=0"`
}

// WorkerConfig locates the DOCX worker module. An empty ModulePath runs the
// converter in process instead of under wazero.
type WorkerConfig struct {
	ModulePath       string `mapstructure:"module_path"`
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
}

// StorageConfig selects where outputs are written.
type StorageConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=local s3"`
	LocalDir string `mapstructure:"local_dir"`
}

// S3Config holds S3 settings. Endpoint is set for S3 compatible stores.
type S3Config struct {
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Prefix       string `mapstructure:"prefix"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// KVConfig selects the job status store.
type KVConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("render.default_dpi", 150)
	v.SetDefault("render.min_dpi", 36)
	v.SetDefault("render.max_dpi", 600)
	v.SetDefault("render.max_scale", 8)

	v.SetDefault("worker.module_path", "")
	v.SetDefault("worker.memory_limit_pages", 4096)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./output")

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.use_path_style", false)

	v.SetDefault("kv.backend", "memory")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("redis.prefix", "pdffs:")
}

// Load reads configuration. path may be empty; environment variables
// override file values, which override defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// nested keys are only visible to Unmarshal once bound
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Backend == "s3" && c.S3.Bucket == "" {
		return fmt.Errorf("invalid config: s3.bucket is required when storage.backend is s3")
	}
	if c.KV.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: redis.addr is required when kv.backend is redis")
	}
	return nil
}

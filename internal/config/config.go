package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Investment InvestmentConfig `mapstructure:"investment"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type ServerConfig struct {
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	Mode            string        `mapstructure:"mode"` // debug or release
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or memory
	ConnString      string        `mapstructure:"conn_str"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
}

// DSN returns ConnString when set, otherwise builds one from the parts
func (d DatabaseConfig) DSN() string {
	if strings.TrimSpace(d.ConnString) != "" {
		return d.ConnString
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type InvestmentConfig struct {
	MinimumAmount string        `mapstructure:"minimum_amount"`
	MaxAttempts   uint          `mapstructure:"max_attempts"`
	BaseBackoff   time.Duration `mapstructure:"base_backoff"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff"`
}

// Minimum parses MinimumAmount
func (i InvestmentConfig) Minimum() (decimal.Decimal, error) {
	return decimal.NewFromString(i.MinimumAmount)
}

type ReconcileConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Repair   bool          `mapstructure:"repair"`
}

type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

// Enabled reports whether credentials are present
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.http_addr", ":8081")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "rebuildfund")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.migrate", true)
	v.SetDefault("database.startup_delay", 2*time.Second)
	v.SetDefault("database.lock_timeout", 2*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("auth.issuer", "rebuildfund")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("investment.minimum_amount", "10")
	v.SetDefault("investment.max_attempts", 5)
	v.SetDefault("investment.base_backoff", 20*time.Millisecond)
	v.SetDefault("investment.max_backoff", 500*time.Millisecond)

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", 10*time.Minute)
	v.SetDefault("reconcile.repair", false)

	// Keys below have no meaningful default but must be known to viper so
	// that AutomaticEnv can override them during Unmarshal.
	v.SetDefault("database.conn_str", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("cloudinary.cloud_name", "")
	v.SetDefault("cloudinary.api_key", "")
	v.SetDefault("cloudinary.api_secret", "")
	v.SetDefault("cloudinary.folder", "project-images")

	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.mode", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "rebuildfund")
	v.SetDefault("tracing.sample_ratio", 0.1)
}

// Load reads config.yaml from the usual search paths, then environment
// variables prefixed with REBUILDFUND_ (e.g. REBUILDFUND_DATABASE_HOST).
// A .env file in the working directory is loaded first when present.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/etc/rebuildfund"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix("REBUILDFUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		if c.Server.Mode != "debug" {
			return errors.New("auth.jwt_secret is required outside debug mode")
		}
		c.Auth.JWTSecret = "dev-secret"
	}
	min, err := c.Investment.Minimum()
	if err != nil {
		return fmt.Errorf("invalid investment.minimum_amount: %w", err)
	}
	if !min.IsPositive() {
		return errors.New("investment.minimum_amount must be positive")
	}
	if c.Investment.MaxAttempts == 0 {
		return errors.New("investment.max_attempts must be at least 1")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/jobstore/internal/codec"
	"github.com/cuongbtq/jobstore/shared/database"
	"github.com/cuongbtq/jobstore/shared/logger"
	"github.com/cuongbtq/jobstore/shared/rabbitmq"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Environment variables that override the file
const (
	EnvDatabaseURL = "JOBSTORE_DATABASE_URL"
	EnvTable       = "JOBSTORE_TABLE"
	EnvLogLevel    = "JOBSTORE_LOG_LEVEL"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds the job database connection. URL takes precedence
// over the discrete PostgreSQL fields.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// StoreConfig holds job table settings
type StoreConfig struct {
	Table        string        `yaml:"table"`
	Schema       string        `yaml:"schema"`
	Codec        string        `yaml:"codec"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// RabbitMQConfig holds the job event exchange configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds the optional audit queue bound to the exchange
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file, then applies environment
// overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()

	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv(EnvTable); v != "" {
		c.Store.Table = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if c.Database.URL != "" {
		if _, _, err := database.ParseURL(c.Database.URL); err != nil {
			return err
		}
	} else {
		if c.Database.Host == "" {
			return fmt.Errorf("database url or host is required")
		}

		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}

		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Store.Codec != "" {
		if _, err := codec.ByName(c.Store.Codec); err != nil {
			return fmt.Errorf("invalid store codec: %w", err)
		}
	}

	if !c.RabbitMQ.Enabled {
		return nil
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}

// ValidateServer checks the admin API settings on top of Validate
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return nil
}

// ClientConfig converts to the shared database client configuration
func (d DatabaseConfig) ClientConfig() *database.Config {
	return &database.Config{
		URL:             d.URL,
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		ConnectTimeout:  d.ConnectTimeout,
	}
}

// ClientConfig converts to the shared RabbitMQ client configuration
func (r RabbitMQConfig) ClientConfig() *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               r.Host,
		Port:               r.Port,
		User:               r.User,
		Password:           r.Password,
		VHost:              r.VHost,
		ExchangeName:       r.Exchange.Name,
		ExchangeType:       r.Exchange.Type,
		ExchangeDurable:    r.Exchange.Durable,
		ExchangeAutoDelete: r.Exchange.AutoDelete,
		QueueName:          r.Queue.Name,
		QueueDurable:       r.Queue.Durable,
		RoutingKey:         r.RoutingKey,
		RetryAttempts:      r.Connection.RetryAttempts,
		RetryInterval:      r.Connection.RetryInterval,
		Heartbeat:          r.Connection.Heartbeat,
		PublishRetries:     r.Publish.RetryAttempts,
		PublishRetryDelay:  r.Publish.RetryInterval,
		PublishBackoffMult: r.Publish.BackoffMultiplier,
	}
}

// LoggerConfig converts to the shared logger configuration
func (l LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:        l.Level,
		Format:       l.Format,
		Output:       l.Output,
		EnableSource: l.EnableCaller,
	}
}

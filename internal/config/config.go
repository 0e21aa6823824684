// Package config loads the ceres HCL configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/fairspace/ceres/pkg/database"
	"github.com/fairspace/ceres/pkg/pid/dynamostore"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
)

const (
	DefaultLogLevel     = "info"
	DefaultAddr         = "127.0.0.1:8000"
	DefaultBroker       = "localhost:19092"
	DefaultTopic        = "ceres.pids"
	DefaultPollInterval = time.Second

	envBrokers = "CERES_KAFKA_BROKERS"
	envTopic   = "CERES_PID_TOPIC"
)

// Config is the root of a ceres configuration file.
type Config struct {
	LogLevel string `hcl:"log_level,optional"`

	Server   *Server   `hcl:"server,block"`
	Store    *Store    `hcl:"store,block"`
	Postgres *Postgres `hcl:"postgres,block"`
	DynamoDB *DynamoDB `hcl:"dynamodb,block"`
	Events   *Events   `hcl:"events,block"`
	Datadog  *Datadog  `hcl:"datadog,block"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `hcl:"addr,optional"`
}

// Store selects the pid store backend.
type Store struct {
	Backend string `hcl:"backend,optional"`
}

// Postgres configures the PostgreSQL connection.
type Postgres struct {
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
	SSLMode  string `hcl:"sslmode,optional"`
}

// DynamoDB configures the DynamoDB table.
type DynamoDB struct {
	Table    string `hcl:"table,optional"`
	Region   string `hcl:"region,optional"`
	Endpoint string `hcl:"endpoint,optional"`
}

// Events configures publishing of outbox rows to Kafka.
type Events struct {
	Enabled      bool     `hcl:"enabled,optional"`
	Brokers      []string `hcl:"brokers,optional"`
	Topic        string   `hcl:"topic,optional"`
	PollInterval string   `hcl:"poll_interval,optional"`
}

// Datadog configures APM tracing.
type Datadog struct {
	Enabled bool   `hcl:"enabled,optional"`
	Env     string `hcl:"env,optional"`
	Service string `hcl:"service,optional"`
}

// NewConfig decodes the file at path and applies defaults. An empty path
// returns the defaults alone.
func NewConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Store == nil {
		c.Store = &Store{}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendPostgres
	}
	if c.Postgres == nil {
		c.Postgres = &Postgres{}
	}
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.User == "" {
		c.Postgres.User = "postgres"
	}
	if c.Postgres.DBName == "" {
		c.Postgres.DBName = "ceres"
	}
	if c.DynamoDB == nil {
		c.DynamoDB = &DynamoDB{}
	}
	if c.DynamoDB.Table == "" {
		c.DynamoDB.Table = "ceres-pids"
	}
	if c.Events == nil {
		c.Events = &Events{}
	}
	if c.Datadog == nil {
		c.Datadog = &Datadog{}
	}
	if c.Datadog.Service == "" {
		c.Datadog.Service = "ceres"
	}
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := parseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Server.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("server.addr is required"))
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			result = multierror.Append(result, fmt.Errorf("postgres.port %d is out of range", c.Postgres.Port))
		}
	case BackendDynamoDB:
		if c.DynamoDB.Region == "" && os.Getenv("AWS_REGION") == "" {
			result = multierror.Append(result, fmt.Errorf("dynamodb.region is required when AWS_REGION is unset"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf(
			"store.backend %q is invalid (valid: %s, %s, %s)",
			c.Store.Backend, BackendPostgres, BackendMemory, BackendDynamoDB))
	}

	if c.Events.Enabled {
		if c.Store.Backend != BackendPostgres {
			result = multierror.Append(result, fmt.Errorf("events require store.backend %q", BackendPostgres))
		}
		if _, err := c.PollInterval(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// Brokers returns the Kafka brokers: environment first, then config, then default.
func (c *Config) Brokers() []string {
	if brokers := os.Getenv(envBrokers); brokers != "" {
		return strings.Split(brokers, ",")
	}
	if c.Events != nil && len(c.Events.Brokers) > 0 {
		return c.Events.Brokers
	}
	return []string{DefaultBroker}
}

// Topic returns the pid event topic: environment first, then config, then default.
func (c *Config) Topic() string {
	if topic := os.Getenv(envTopic); topic != "" {
		return topic
	}
	if c.Events != nil && c.Events.Topic != "" {
		return c.Events.Topic
	}
	return DefaultTopic
}

// PollInterval parses events.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	if c.Events == nil || c.Events.PollInterval == "" {
		return DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(c.Events.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("events.poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("events.poll_interval must be positive")
	}
	return d, nil
}

// DatabaseConfig converts the postgres block for database.Connect.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
		DBName:   c.Postgres.DBName,
		SSLMode:  c.Postgres.SSLMode,
	}
}

// DynamoDBConfig converts the dynamodb block for dynamostore.NewFromConfig.
func (c *Config) DynamoDBConfig() dynamostore.Config {
	return dynamostore.Config{
		Table:    c.DynamoDB.Table,
		Region:   c.DynamoDB.Region,
		Endpoint: c.DynamoDB.Endpoint,
	}
}

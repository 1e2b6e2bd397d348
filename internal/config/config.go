package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Storage    StorageConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	EventBus   EventBusConfig   `mapstructure:"event_bus" validate:"required"`
	Kafka      KafkaConfig      `validate:"required"`
	Cache      CacheConfig      `validate:"required"`
	Loyalty    LoyaltyConfig    `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required,oneof=local api consumer"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type StorageConfig struct {
	Backend types.StorageBackend `mapstructure:"backend" validate:"required,oneof=postgres memory"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

// EventBusConfig configures the loyalty event and notification topics and how
// the consumer retries messages that fail because storage is unreachable
type EventBusConfig struct {
	Enabled            bool             `mapstructure:"enabled"`
	PubSub             types.PubSubType `mapstructure:"pubsub" validate:"omitempty,oneof=memory kafka"`
	EventsTopic        string           `mapstructure:"events_topic"`
	NotificationsTopic string           `mapstructure:"notifications_topic"`
	DeadLetterTopic    string           `mapstructure:"dead_letter_topic"`
	MaxRetries         int              `mapstructure:"max_retries"`
	InitialInterval    time.Duration    `mapstructure:"initial_interval"`
	MaxInterval        time.Duration    `mapstructure:"max_interval"`
	Multiplier         float64          `mapstructure:"multiplier"`
	MaxElapsedTime     time.Duration    `mapstructure:"max_elapsed_time"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

// CacheConfig controls the non-authoritative cache in front of the stats projection
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LoyaltyConfig struct {
	// DefaultExpiryDays applies to rule awards whose rule sets no expiry, 0 means points never expire
	DefaultExpiryDays int `mapstructure:"default_expiry_days" validate:"min=0"`
	HistoryLimit      int `mapstructure:"history_limit" validate:"min=1"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only ever adds variables that are not already set
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/loyalty")

	v.SetEnvPrefix("LOYALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from config.yaml
func setDefaults(v *viper.Viper) {
	defaults := GetDefaultConfig()

	v.SetDefault("deployment.mode", defaults.Deployment.Mode)
	v.SetDefault("server.address", defaults.Server.Address)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("storage.backend", defaults.Storage.Backend)

	v.SetDefault("postgres.host", defaults.Postgres.Host)
	v.SetDefault("postgres.port", defaults.Postgres.Port)
	v.SetDefault("postgres.user", defaults.Postgres.User)
	v.SetDefault("postgres.password", defaults.Postgres.Password)
	v.SetDefault("postgres.dbname", defaults.Postgres.DBName)
	v.SetDefault("postgres.sslmode", defaults.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", defaults.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", defaults.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime_minutes", defaults.Postgres.ConnMaxLifetimeMinutes)

	v.SetDefault("event_bus.enabled", defaults.EventBus.Enabled)
	v.SetDefault("event_bus.pubsub", defaults.EventBus.PubSub)
	v.SetDefault("event_bus.events_topic", defaults.EventBus.EventsTopic)
	v.SetDefault("event_bus.notifications_topic", defaults.EventBus.NotificationsTopic)
	v.SetDefault("event_bus.dead_letter_topic", defaults.EventBus.DeadLetterTopic)
	v.SetDefault("event_bus.max_retries", defaults.EventBus.MaxRetries)
	v.SetDefault("event_bus.initial_interval", defaults.EventBus.InitialInterval)
	v.SetDefault("event_bus.max_interval", defaults.EventBus.MaxInterval)
	v.SetDefault("event_bus.multiplier", defaults.EventBus.Multiplier)
	v.SetDefault("event_bus.max_elapsed_time", defaults.EventBus.MaxElapsedTime)

	v.SetDefault("kafka.brokers", defaults.Kafka.Brokers)
	v.SetDefault("kafka.consumer_group", defaults.Kafka.ConsumerGroup)
	v.SetDefault("kafka.client_id", defaults.Kafka.ClientID)

	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)

	v.SetDefault("loyalty.default_expiry_days", defaults.Loyalty.DefaultExpiryDays)
	v.SetDefault("loyalty.history_limit", defaults.Loyalty.HistoryLimit)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts, tests or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Storage:    StorageConfig{Backend: types.StorageBackendMemory},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "loyalty",
			Password:               "loyalty",
			DBName:                 "loyalty",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
		},
		EventBus: EventBusConfig{
			Enabled:            true,
			PubSub:             types.MemoryPubSub,
			EventsTopic:        "loyalty_events",
			NotificationsTopic: "notifications",
			DeadLetterTopic:    "loyalty_events_dlq",
			MaxRetries:         3,
			InitialInterval:    time.Second,
			MaxInterval:        10 * time.Second,
			Multiplier:         2.0,
			MaxElapsedTime:     time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "loyalty",
			ClientID:      "loyalty-service",
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     30 * time.Second,
		},
		Loyalty: LoyaltyConfig{
			DefaultExpiryDays: 365,
			HistoryLimit:      50,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

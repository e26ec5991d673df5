package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Database struct {
	// Driver is "postgres" or "memory".
	Driver   string `mapstructure:"driver"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"ssl-mode"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLMs    int    `mapstructure:"ttl-ms"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	SaleEvents      string `mapstructure:"sale-events"`
	GatewayWebhooks string `mapstructure:"gateway-webhooks"`
}

type KafkaReader struct {
	GroupID string `mapstructure:"group-id"`
}

type Kafka struct {
	Enabled bool        `mapstructure:"enabled"`
	Writer  KafkaWriter `mapstructure:"writer"`
	Broker  KafkaBroker `mapstructure:"broker"`
	Topic   KafkaTopic  `mapstructure:"topic"`
	Reader  KafkaReader `mapstructure:"reader"`
}

type Push struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api-key"`
	TimeoutMs int    `mapstructure:"timeout-ms"`
}

type Notification struct {
	DefaultCurrency string `mapstructure:"default-currency"`
	DefaultLocale   string `mapstructure:"default-locale"`
	TimeoutMs       int    `mapstructure:"timeout-ms"`
}

type Outbox struct {
	PollingIntervalMs  int `mapstructure:"polling-interval-ms"`
	FetchSize          int `mapstructure:"fetch-size"`
	RescheduleDelayMs  int `mapstructure:"reschedule-delay-ms"`
	MaxPublishAttempts int `mapstructure:"max-publish-attempts"`
}

type Relay struct {
	Parallelism int `mapstructure:"parallelism"`
}

type Server struct {
	Port              string `mapstructure:"port"`
	MaxBodyBytes      int64  `mapstructure:"max-body-bytes"`
	ShutdownTimeoutMs int    `mapstructure:"shutdown-timeout-ms"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL   string `mapstructure:"url"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Database     Database     `mapstructure:"database"`
	Redis        Redis        `mapstructure:"redis"`
	Kafka        Kafka        `mapstructure:"kafka"`
	Push         Push         `mapstructure:"push"`
	Notification Notification `mapstructure:"notification"`
	Outbox       Outbox       `mapstructure:"outbox"`
	Relay        Relay        `mapstructure:"relay"`
	Server       Server       `mapstructure:"server"`
	Metrics      Metrics      `mapstructure:"metrics"`
	Logs         Logs         `mapstructure:"logs"`
}

func setDefaults(v *viper.Viper) {
	// every key needs a default to be overridable from the environment
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.ssl-mode", "disable")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl-ms", 300_000)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.broker.url", "localhost:9092")
	v.SetDefault("push.url", "")
	v.SetDefault("push.api-key", "")
	v.SetDefault("metrics.url", "")
	v.SetDefault("metrics.common-labels", "")
	v.SetDefault("logs.url", "")
	v.SetDefault("kafka.writer.batch-size", 100)
	v.SetDefault("kafka.writer.batch-timeout-ms", 100)
	v.SetDefault("kafka.topic.sale-events", "sale-events")
	v.SetDefault("kafka.topic.gateway-webhooks", "gateway-webhooks")
	v.SetDefault("kafka.reader.group-id", "payment-webhook-service")
	v.SetDefault("push.timeout-ms", 10_000)
	v.SetDefault("notification.default-currency", "BRL")
	v.SetDefault("notification.default-locale", "pt-BR")
	v.SetDefault("notification.timeout-ms", 15_000)
	v.SetDefault("outbox.polling-interval-ms", 500)
	v.SetDefault("outbox.fetch-size", 200)
	v.SetDefault("outbox.reschedule-delay-ms", 10_000)
	v.SetDefault("outbox.max-publish-attempts", 3)
	v.SetDefault("relay.parallelism", 16)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max-body-bytes", 1<<20)
	v.SetDefault("server.shutdown-timeout-ms", 10_000)
	v.SetDefault("metrics.interval-ms", 10_000)
	v.SetDefault("logs.level", "info")
}

// LoadConfig reads config.yaml from path. Every key can be overridden from
// the environment as WEBHOOK_<SECTION>_<KEY>, e.g. WEBHOOK_DATABASE_HOST.
func LoadConfig(path string) (*Config, error) {
	LoadDotEnv()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("webhook")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}

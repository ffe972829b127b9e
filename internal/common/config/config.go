// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Thresholds    ThresholdsConfig        `mapstructure:"thresholds"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Enabled reports whether job workers should be started at all.
func (c CamundaConfig) Enabled() bool {
	return c.BrokerAddress != ""
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses      []string `mapstructure:"addresses"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	KnowledgeIndex string   `mapstructure:"knowledge_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Pipeline Configuration ---

// PipelineConfig is the configuration surface consumed by the core engines.
type PipelineConfig struct {
	ConcurrencyLimit int                `mapstructure:"concurrency_limit"`
	AdapterTimeout   int                `mapstructure:"adapter_timeout"` // milliseconds
	TopK             int                `mapstructure:"top_k"`
	Cache            CacheConfig        `mapstructure:"cache"`
	SourceTrust      map[string]float64 `mapstructure:"source_trust"`
	Adapters         []string           `mapstructure:"adapters"`
}

type CacheConfig struct {
	Backend    string `mapstructure:"backend"`     // "memory" or "redis"
	DefaultTTL int    `mapstructure:"default_ttl"` // milliseconds
	MaxEntries int    `mapstructure:"max_entries"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// ThresholdsConfig holds the four fusion cut points.
type ThresholdsConfig struct {
	ColdC       float64 `mapstructure:"cold_c"`
	HotC        float64 `mapstructure:"hot_c"`
	DryMoisture float64 `mapstructure:"dry_moisture"`
	WetMoisture float64 `mapstructure:"wet_moisture"`
}

// --- External APIs ---

type APIsConfig struct {
	RateLimitPerSecond float64           `mapstructure:"rate_limit_per_second"`
	OpenWeather        OpenWeatherConfig `mapstructure:"openweather"`
	Agro               EndpointConfig    `mapstructure:"agro"`
	PlantID            EndpointConfig    `mapstructure:"plant_id"`
	Translation        EndpointConfig    `mapstructure:"translation"`
	Speech             EndpointConfig    `mapstructure:"speech"`
}

type OpenWeatherConfig struct {
	BaseURL string `mapstructure:"base_url"`
	GeoURL  string `mapstructure:"geo_url"`
	APIKey  string `mapstructure:"api_key"`
}

type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// --- Notifications ---

type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled    bool     `mapstructure:"enabled"`
		Region     string   `mapstructure:"region"`
		From       string   `mapstructure:"from"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"ses"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

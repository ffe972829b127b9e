// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// on top, expands ${VAR} placeholders and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers defaults for values where zero is a legal setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "farm-copilot")
	v.SetDefault("server.address", ":8080")

	v.SetDefault("thresholds.cold_c", 15.0)
	v.SetDefault("thresholds.hot_c", 35.0)
	v.SetDefault("thresholds.dry_moisture", 0.2)
	v.SetDefault("thresholds.wet_moisture", 0.8)

	v.SetDefault("pipeline.concurrency_limit", 8)
	v.SetDefault("pipeline.adapter_timeout", 10000)
	v.SetDefault("pipeline.top_k", 3)
	v.SetDefault("pipeline.cache.backend", "memory")
	v.SetDefault("pipeline.cache.default_ttl", 300000)
	v.SetDefault("pipeline.cache.max_entries", 1024)
	v.SetDefault("pipeline.cache.key_prefix", "copilot:")
	v.SetDefault("pipeline.source_trust", DefaultSourceTrust())
	v.SetDefault("pipeline.adapters", []string{"weather", "agro", "plantid", "knowledge", "advisory"})

	v.SetDefault("apis.rate_limit_per_second", 5.0)
	v.SetDefault("apis.openweather.base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("apis.openweather.geo_url", "https://api.openweathermap.org/geo/1.0")
	v.SetDefault("apis.agro.base_url", "https://api.agromonitoring.com/agro/1.0")
	v.SetDefault("apis.plant_id.base_url", "https://api.plant.id/v2")
	v.SetDefault("apis.plant_id.timeout", 20000)
	v.SetDefault("apis.translation.timeout", 10000)
	v.SetDefault("apis.speech.timeout", 30000)

	v.SetDefault("database.elasticsearch.knowledge_index", "crop_knowledge")
}

// DefaultSourceTrust is the credibility table applied during ranking.
func DefaultSourceTrust() map[string]float64 {
	return map[string]float64{
		"mock_crop_db":         1.0,
		"trusted_univ":         0.95,
		"extension_advisories": 0.95,
		"crop_knowledge":       0.9,
		"mock_weather":         0.7,
		"openweather":          0.7,
	}
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if strings.Contains(val, "$") {
				v.Set(key, os.ExpandEnv(val))
			}
		case []interface{}:
			out := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					out = nil
					break
				}
				if s = os.ExpandEnv(s); s != "" {
					out = append(out, s)
				}
			}
			if out != nil {
				v.Set(key, out)
			}
		}
	}
}

// overrideEmptyConfig fills API secrets from well-known variable names when the
// YAML left them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.APIs.OpenWeather.APIKey, "OPENWEATHER_API_KEY")
	setIfEmpty(&cfg.APIs.Agro.APIKey, "AGRO_API_KEY")
	setIfEmpty(&cfg.APIs.PlantID.APIKey, "PLANT_ID_API_KEY")
	setIfEmpty(&cfg.APIs.Translation.APIKey, "TRANSLATION_API_KEY")
	setIfEmpty(&cfg.APIs.Speech.APIKey, "SPEECH_API_KEY")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults repairs values that must be positive.
func applyDefaults(cfg *Config) {
	if cfg.Pipeline.ConcurrencyLimit <= 0 {
		cfg.Pipeline.ConcurrencyLimit = 8
	}
	if cfg.Pipeline.AdapterTimeout <= 0 {
		cfg.Pipeline.AdapterTimeout = 10000
	}
	if cfg.Pipeline.TopK <= 0 {
		cfg.Pipeline.TopK = 3
	}
	if cfg.Pipeline.Cache.MaxEntries <= 0 {
		cfg.Pipeline.Cache.MaxEntries = 1024
	}
	if cfg.Pipeline.Cache.DefaultTTL < 0 {
		cfg.Pipeline.Cache.DefaultTTL = 300000
	}
	if cfg.Pipeline.SourceTrust == nil {
		cfg.Pipeline.SourceTrust = DefaultSourceTrust()
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 60000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	t := cfg.Thresholds
	if t.ColdC >= t.HotC {
		return fmt.Errorf("thresholds.cold_c (%v) must be below thresholds.hot_c (%v)", t.ColdC, t.HotC)
	}
	if t.DryMoisture < 0 || t.WetMoisture > 1 {
		return fmt.Errorf("moisture thresholds must lie within [0,1]")
	}
	if t.DryMoisture >= t.WetMoisture {
		return fmt.Errorf("thresholds.dry_moisture (%v) must be below thresholds.wet_moisture (%v)", t.DryMoisture, t.WetMoisture)
	}

	for source, weight := range cfg.Pipeline.SourceTrust {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("pipeline.source_trust.%s must lie within [0,1], got %v", source, weight)
		}
	}

	switch cfg.Pipeline.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when pipeline.cache.backend is redis")
		}
	default:
		return fmt.Errorf("pipeline.cache.backend must be memory or redis, got %q", cfg.Pipeline.Cache.Backend)
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled && cfg.Notifications.SES.From == "" {
		return fmt.Errorf("notifications.ses.from is required when ses is enabled")
	}

	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       60000,
		MaxRetries:    3,
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "STUDYCYCLE"

var defaults = map[string]any{
	"server.port":                 8080,
	"server.log_level":            "info",
	"database.url":                "",
	"redis.addr":                  "",
	"redis.password":              "",
	"redis.db":                    0,
	"redis.key_prefix":            "studycycle:lambda:",
	"redis.ttl_seconds":           0,
	"llm.gemini_api_key":          "",
	"llm.model_name":              "gemini-2.0-flash",
	"llm.max_retries":             3,
	"llm.retry_delay_seconds":     2,
	"task.worker_count":           2,
	"task.queue_size":             100,
	"task.stuck_task_age_minutes": 30,
	"training.schedule":           "",
	"training.epochs":             100,
	"training.learning_rate":      0.01,
	"training.optimizer":          "sgd",
	"training.coefficients_file":  "",
	"tracing.enabled":             false,
	"tracing.service_name":        "studycycle-api",
	"tracing.endpoint":            "",
	"tracing.sample_ratio":        1.0,
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory or ./config, an optional .env file and the environment,
// then validates the result.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given YAML file instead of
// searching for config.yaml. The file must exist when path is non-empty.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

package config

// Config holds all service configuration, grouped by concern.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Training TrainingConfig `mapstructure:"training" validate:"required"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the Postgres connection settings. An empty URL is
// accepted here; binaries that need a database reject it at startup.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig configures the local lambda cache. With no address the service
// keeps the cache in process memory.
type RedisConfig struct {
	Addr       string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix  string `mapstructure:"key_prefix" validate:"required"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"gte=0"`
}

// LLMConfig configures the AI variant generator. Without an API key the mock
// generator is used.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name" validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// TaskConfig configures the background task runner.
type TaskConfig struct {
	WorkerCount         int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize           int `mapstructure:"queue_size" validate:"required,gt=0"`
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`
}

// TrainingConfig configures model training, both scheduled and offline.
type TrainingConfig struct {
	Schedule         string  `mapstructure:"schedule"`
	Epochs           int     `mapstructure:"epochs" validate:"required,gt=0"`
	LearningRate     float64 `mapstructure:"learning_rate" validate:"required,gt=0"`
	Optimizer        string  `mapstructure:"optimizer" validate:"required,oneof=sgd adam"`
	CoefficientsFile string  `mapstructure:"coefficients_file"`
}

// TracingConfig configures OpenTelemetry export. An empty endpoint with
// tracing enabled writes spans to stdout.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name" validate:"required"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

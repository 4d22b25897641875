package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Realtime  RealtimeConfig
	Storage   StorageConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Interview InterviewConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

// RealtimeConfig points at the upstream speech-to-speech endpoint that
// conducts the voice side of an interview.
type RealtimeConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	Voice      string
}

type StorageConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// InterviewConfig carries session policy knobs. Durations are
// configurable mainly so tests can shrink them.
type InterviewConfig struct {
	SoftLimit      time.Duration
	HardLimit      time.Duration
	SilenceLimit   time.Duration
	PollInterval   time.Duration
	DailyLimit     int
	QuestionsTotal int
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("realtime.endpoint", "")
	viper.SetDefault("realtime.api_key", "")
	viper.SetDefault("realtime.deployment", "gpt-4o-realtime-preview")
	viper.SetDefault("realtime.voice", "alloy")
	viper.SetDefault("storage.account_name", "")
	viper.SetDefault("storage.account_key", "")
	viper.SetDefault("storage.container_name", "interview-artifacts")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("interview.soft_limit_seconds", "450")
	viper.SetDefault("interview.hard_limit_minutes", "8")
	viper.SetDefault("interview.silence_limit_seconds", "180")
	viper.SetDefault("interview.poll_interval_seconds", "5")
	viper.SetDefault("interview.daily_limit", "5")
	viper.SetDefault("interview.questions_total", "8")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("realtime.endpoint", "REALTIME_ENDPOINT")
	viper.BindEnv("realtime.api_key", "REALTIME_API_KEY")
	viper.BindEnv("realtime.deployment", "REALTIME_DEPLOYMENT")
	viper.BindEnv("realtime.voice", "REALTIME_VOICE")
	viper.BindEnv("storage.account_name", "STORAGE_ACCOUNT_NAME")
	viper.BindEnv("storage.account_key", "STORAGE_ACCOUNT_KEY")
	viper.BindEnv("storage.container_name", "STORAGE_CONTAINER_NAME")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("interview.soft_limit_seconds", "INTERVIEW_SOFT_LIMIT_SECONDS")
	viper.BindEnv("interview.hard_limit_minutes", "MAX_INTERVIEW_DURATION_MINUTES")
	viper.BindEnv("interview.silence_limit_seconds", "MAX_SILENCE_DURATION_SECONDS")
	viper.BindEnv("interview.poll_interval_seconds", "INTERVIEW_POLL_INTERVAL_SECONDS")
	viper.BindEnv("interview.daily_limit", "INTERVIEW_DAILY_LIMIT")
	viper.BindEnv("interview.questions_total", "INTERVIEW_QUESTIONS_TOTAL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
			GeminiModel:  viper.GetString("gemini.model"),
		},
		Realtime: RealtimeConfig{
			Endpoint:   viper.GetString("realtime.endpoint"),
			APIKey:     viper.GetString("realtime.api_key"),
			Deployment: viper.GetString("realtime.deployment"),
			Voice:      viper.GetString("realtime.voice"),
		},
		Storage: StorageConfig{
			AccountName:   viper.GetString("storage.account_name"),
			AccountKey:    viper.GetString("storage.account_key"),
			ContainerName: viper.GetString("storage.container_name"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		Interview: InterviewConfig{
			SoftLimit:      time.Duration(viper.GetInt("interview.soft_limit_seconds")) * time.Second,
			HardLimit:      time.Duration(viper.GetInt("interview.hard_limit_minutes")) * time.Minute,
			SilenceLimit:   time.Duration(viper.GetInt("interview.silence_limit_seconds")) * time.Second,
			PollInterval:   time.Duration(viper.GetInt("interview.poll_interval_seconds")) * time.Second,
			DailyLimit:     viper.GetInt("interview.daily_limit"),
			QuestionsTotal: viper.GetInt("interview.questions_total"),
		},
	}
}

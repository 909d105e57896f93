package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	API       APIConfig
	Telemetry TelemetryConfig
	Location  LocationConfig
	MQTT      MQTTConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Capture   CaptureConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	AgentID   string
	LogLevel  string
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

// APIConfig points at the remote delivery service.
type APIConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HealthPath string
}

type TelemetryConfig struct {
	Interval     time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	QueueMaxSize int
	ReplayOrder  string
}

type LocationConfig struct {
	PollInterval      time.Duration
	FixTimeout        time.Duration
	GNSSURL           string
	PermissionGranted bool
}

type MQTTConfig struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	LocationTopic string
	QoS           byte
}

type StorageConfig struct {
	Driver string
	Dir    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CaptureConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SessionConfig struct {
	ResumeOnStart bool
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for the local API
	GeneralBurst int
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func setDefaults() {
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("AGENT_ID", "delivery-agent")
	viper.SetDefault("SERVER_HOST", "127.0.0.1")
	viper.SetDefault("SERVER_PORT", "8088")

	viper.SetDefault("DELIVERY_API_TIMEOUT_SEC", 15)
	viper.SetDefault("DELIVERY_API_HEALTH_PATH", "/health")

	viper.SetDefault("TELEMETRY_INTERVAL_SEC", 30)
	viper.SetDefault("TELEMETRY_MAX_RETRIES", 3)
	viper.SetDefault("TELEMETRY_RETRY_DELAY_SEC", 5)
	viper.SetDefault("OFFLINE_QUEUE_MAX_SIZE", 1000)
	viper.SetDefault("OFFLINE_QUEUE_REPLAY_ORDER", "preserve")

	viper.SetDefault("LOCATION_POLL_INTERVAL_SEC", 5)
	viper.SetDefault("LOCATION_FIX_TIMEOUT_SEC", 15)
	viper.SetDefault("LOCATION_GNSS_URL", "http://127.0.0.1:2947/fix")
	viper.SetDefault("LOCATION_PERMISSION_GRANTED", true)

	viper.SetDefault("MQTT_CLIENT_ID", "delivery-agent")
	viper.SetDefault("MQTT_LOCATION_TOPIC", "devices/+/location")
	viper.SetDefault("MQTT_QOS", 1)

	viper.SetDefault("STORAGE_DRIVER", "file")
	viper.SetDefault("STORAGE_DIR", "./state")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("CAPTURE_TIMEOUT_SEC", 120)
	viper.SetDefault("SESSION_RESUME_ON_START", true)

	viper.SetDefault("RATE_LIMIT_GENERAL_RPS", 20)
	viper.SetDefault("RATE_LIMIT_GENERAL_BURST", 40)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	viper.SetDefault("CORS_MAX_AGE", 600)
	viper.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"})
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "X-Request-ID"})
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := current()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func current() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		API: APIConfig{
			BaseURL:    viper.GetString("DELIVERY_API_BASE_URL"),
			Token:      viper.GetString("DELIVERY_API_TOKEN"),
			Timeout:    seconds("DELIVERY_API_TIMEOUT_SEC"),
			HealthPath: viper.GetString("DELIVERY_API_HEALTH_PATH"),
		},
		Telemetry: TelemetryConfig{
			Interval:     seconds("TELEMETRY_INTERVAL_SEC"),
			MaxRetries:   viper.GetInt("TELEMETRY_MAX_RETRIES"),
			RetryDelay:   seconds("TELEMETRY_RETRY_DELAY_SEC"),
			QueueMaxSize: viper.GetInt("OFFLINE_QUEUE_MAX_SIZE"),
			ReplayOrder:  viper.GetString("OFFLINE_QUEUE_REPLAY_ORDER"),
		},
		Location: LocationConfig{
			PollInterval:      seconds("LOCATION_POLL_INTERVAL_SEC"),
			FixTimeout:        seconds("LOCATION_FIX_TIMEOUT_SEC"),
			GNSSURL:           viper.GetString("LOCATION_GNSS_URL"),
			PermissionGranted: viper.GetBool("LOCATION_PERMISSION_GRANTED"),
		},
		MQTT: MQTTConfig{
			Broker:        viper.GetString("MQTT_BROKER"),
			ClientID:      viper.GetString("MQTT_CLIENT_ID"),
			Username:      viper.GetString("MQTT_USERNAME"),
			Password:      viper.GetString("MQTT_PASSWORD"),
			LocationTopic: viper.GetString("MQTT_LOCATION_TOPIC"),
			QoS:           byte(viper.GetUint("MQTT_QOS")),
		},
		Storage: StorageConfig{
			Driver: viper.GetString("STORAGE_DRIVER"),
			Dir:    viper.GetString("STORAGE_DIR"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Capture: CaptureConfig{
			BaseURL: viper.GetString("CAPTURE_BASE_URL"),
			Timeout: seconds("CAPTURE_TIMEOUT_SEC"),
		},
		Session: SessionConfig{
			ResumeOnStart: viper.GetBool("SESSION_RESUME_ON_START"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
		AgentID:  viper.GetString("AGENT_ID"),
		LogLevel: viper.GetString("LOG_LEVEL"),
	}
}

func seconds(key string) time.Duration {
	return time.Duration(viper.GetFloat64(key) * float64(time.Second))
}

// Validate rejects configurations the agent cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("DELIVERY_API_BASE_URL is required")
	}
	if c.Telemetry.Interval <= 0 {
		return errors.New("TELEMETRY_INTERVAL_SEC must be positive")
	}
	if c.Telemetry.MaxRetries < 0 {
		return errors.New("TELEMETRY_MAX_RETRIES must not be negative")
	}
	switch c.Telemetry.ReplayOrder {
	case "preserve", "append":
	default:
		return fmt.Errorf("OFFLINE_QUEUE_REPLAY_ORDER must be preserve or append, got %q", c.Telemetry.ReplayOrder)
	}
	switch c.Storage.Driver {
	case "file":
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// Watch reloads the config file on change and hands the new values to
// onChange. Only settings that are safe to swap at runtime should be applied.
func Watch(onChange func(*Config, fsnotify.Event)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		onChange(current(), e)
	})
	viper.WatchConfig()
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

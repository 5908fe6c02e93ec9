package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"kabinet/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig        `yaml:"app"`
	Telegram     TelegramConfig   `yaml:"telegram"`
	Admins       []int64          `yaml:"admins"`
	Database     DatabaseConfig   `yaml:"database"`
	Redis        RedisConfig      `yaml:"redis"`
	State        StateConfig      `yaml:"state"`
	Backup       BackupConfig     `yaml:"backup"`
	Monitoring   MonitoringConfig `yaml:"monitoring"`
	Logging      LoggingConfig    `yaml:"logging"`
	API          APIConfig        `yaml:"api"`
	Google       GoogleConfig     `yaml:"google"`
	Bot          BotConfig        `yaml:"bot"`
	Links        LinksConfig      `yaml:"links"`
	ServicesFile string           `yaml:"services_file"`
	Exports      ExportConfig     `yaml:"exports"`
}

type BotConfig struct {
	MaxBookingsPerUser  int           `yaml:"max_bookings_per_user"`
	BroadcastBatchSize  int           `yaml:"broadcast_batch_size"`
	BroadcastBatchDelay time.Duration `yaml:"broadcast_batch_delay"`
	RateLimitMessages   int           `yaml:"rate_limit_messages"`
	RateLimitWindow     int           `yaml:"rate_limit_window"`
}

// LinksConfig - внешние ссылки из раздела «Полезное».
type LinksConfig struct {
	Channel    string `yaml:"channel"`
	Recordings string `yaml:"recordings"`
	Reviews    string `yaml:"reviews"`
	Gift       string `yaml:"gift"`
	// Contact - username психолога без @, показывается на платном этапе.
	Contact string `yaml:"contact"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Address   string             `yaml:"address"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
	Timeout  int    `yaml:"timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// StateConfig - хранение состояний диалогов. TTL 0 означает «без срока».
type StateConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	UsersSpreadsheetID   string `yaml:"users_spreadsheet_id"`
	BookingSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

// Enabled reports whether the bookings mirror can be started.
func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.BookingSpreadsheetID != ""
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Bot.MaxBookingsPerUser <= 0 {
		return fmt.Errorf("bot.max_bookings_per_user must be positive, got %d", c.Bot.MaxBookingsPerUser)
	}

	if c.State.TTL < 0 {
		return errors.New("state.ttl must not be negative")
	}

	return ValidateAdmins(c.Admins)
}

func ValidateAdmins(admins []int64) error {
	seen := make(map[int64]bool)
	for _, id := range admins {
		if id <= 0 {
			return fmt.Errorf("invalid admin id %d", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate admin id found: %d", id)
		}
		seen[id] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "kabinet"
	}
	if c.API.Address == "" {
		c.API.Address = ":8080"
	}
	if c.API.Enabled && !c.API.Auth.Enabled && len(c.API.Auth.APIKeys) > 0 {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 5
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 10
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 60
	}
	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "data/exports"
	}

	// Bot defaults
	if c.Bot.MaxBookingsPerUser == 0 {
		c.Bot.MaxBookingsPerUser = models.DefaultMaxBookingsPerUser
	}
	if c.Bot.BroadcastBatchSize == 0 {
		c.Bot.BroadcastBatchSize = models.BroadcastBatchSize
	}
	if c.Bot.BroadcastBatchDelay == 0 {
		c.Bot.BroadcastBatchDelay = models.BroadcastBatchDelay
	}
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}
}

package config

import (
	"errors"
	"fmt"
	"os"

	"housekeeper/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	PMS        PMSConfig        `yaml:"pms"`
	Sync       SyncConfig       `yaml:"sync"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Notify     NotifyConfig     `yaml:"notify"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
	Teams      []models.Team    `yaml:"teams"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
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

// PMSConfig configures the upstream property-management system.
type PMSConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Token          string  `yaml:"token"`
	PropKey        string  `yaml:"prop_key"`
	PropertyIDs    []int64 `yaml:"property_ids"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	PageSize       int     `yaml:"page_size"`
}

type SyncConfig struct {
	WindowPastDays          int    `yaml:"window_past_days"`
	WindowFutureDays        int    `yaml:"window_future_days"`
	LockTTLSeconds          int    `yaml:"lock_ttl_seconds"`
	SchedulerSecret         string `yaml:"scheduler_secret"`
	ScheduleEnabled         bool   `yaml:"schedule_enabled"`
	ScheduleIntervalMinutes int    `yaml:"schedule_interval_minutes"`
}

type PricingConfig struct {
	MaxNights int `yaml:"max_nights"`
}

type NotifyConfig struct {
	Telegram          TelegramConfig `yaml:"telegram"`
	Email             EmailConfig    `yaml:"email"`
	MaxRetries        int            `yaml:"max_retries"`
	RetryDelaySeconds int            `yaml:"retry_delay_seconds"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      *bool          `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// IsEnabled treats an absent flag as on; auth is opt-out.
func (a APIAuthConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; config values may reference its variables.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.PMS.BaseURL == "" {
		return errors.New("pms base_url is required")
	}
	if c.PMS.Token == "" || c.PMS.Token == "YOUR_PMS_TOKEN_HERE" {
		return errors.New("pms token is required")
	}
	if len(c.PMS.PropertyIDs) == 0 {
		return errors.New("at least one pms property_id is required")
	}

	if c.Sync.SchedulerSecret == "" {
		return errors.New("sync scheduler_secret is required")
	}

	return ValidateTeams(c.Teams)
}

func ValidateTeams(teams []models.Team) error {
	teamIDs := make(map[int64]bool)
	for _, team := range teams {
		if team.ID == 0 {
			return fmt.Errorf("team '%s' has invalid ID 0", team.Name)
		}
		if teamIDs[team.ID] {
			return fmt.Errorf("duplicate team ID found: %d", team.ID)
		}
		teamIDs[team.ID] = true

		for _, ch := range team.Channels {
			switch ch.Type {
			case models.ChannelTelegram, models.ChannelWebhook, models.ChannelEmail:
			default:
				return fmt.Errorf("team '%s' has unknown channel type '%s'", team.Name, ch.Type)
			}
			if ch.Target == "" {
				return fmt.Errorf("team '%s' channel '%s' has empty target", team.Name, ch.Type)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.PMS.TimeoutSeconds == 0 {
		c.PMS.TimeoutSeconds = 30
	}
	if c.PMS.RateLimitRPS == 0 {
		c.PMS.RateLimitRPS = 2
	}
	if c.PMS.PageSize == 0 {
		c.PMS.PageSize = 100
	}

	if c.Sync.WindowPastDays == 0 {
		c.Sync.WindowPastDays = models.DefaultWindowPastDays
	}
	if c.Sync.WindowFutureDays == 0 {
		c.Sync.WindowFutureDays = models.DefaultWindowFutureDays
	}
	if c.Sync.LockTTLSeconds == 0 {
		c.Sync.LockTTLSeconds = models.DefaultRunLockTTL
	}
	if c.Sync.ScheduleIntervalMinutes == 0 {
		c.Sync.ScheduleIntervalMinutes = 60
	}

	if c.Pricing.MaxNights == 0 {
		c.Pricing.MaxNights = models.DefaultMaxNights
	}

	if c.Notify.MaxRetries == 0 {
		c.Notify.MaxRetries = 3
	}
	if c.Notify.RetryDelaySeconds == 0 {
		c.Notify.RetryDelaySeconds = 2
	}
}

package config

import (
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Mail     MailConfig     `yaml:"mail" mapstructure:"mail"`
	Queue    QueueConfig    `yaml:"queue" mapstructure:"queue"`
	Intake   IntakeConfig   `yaml:"intake" mapstructure:"intake"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port           int             `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	FrontendURL    string          `yaml:"frontend_url" mapstructure:"frontend_url"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests" mapstructure:"requests"`
	Window   time.Duration `yaml:"window" mapstructure:"window"`
}

// StoreConfig selects the lead store. Driver is "postgres" or "sqlite"; for
// sqlite DatabaseURL is a file path.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

type TelegramConfig struct {
	BotToken string        `yaml:"bot_token" mapstructure:"bot_token"`
	ChatID   string        `yaml:"chat_id" mapstructure:"chat_id"`
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// MailConfig configures the optional email copy of lead notifications.
// Empty Host disables it.
type MailConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	To       string `yaml:"to" mapstructure:"to"`
}

func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.To != ""
}

// QueueConfig points at RabbitMQ. Empty URL keeps analytics events on the
// local log file only.
type QueueConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

type IntakeConfig struct {
	IPThrottle bool          `yaml:"ip_throttle" mapstructure:"ip_throttle"`
	IPWindow   time.Duration `yaml:"ip_window" mapstructure:"ip_window"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level               string `yaml:"level" mapstructure:"level"`
	Format              string `yaml:"format" mapstructure:"format"`
	Dir                 string `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB           int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxAgeDays          int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	AnalyticsMaxAgeDays int    `yaml:"analytics_max_age_days" mapstructure:"analytics_max_age_days"`
}

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:5174",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:5174",
	"https://quizthenox.live",
	"https://www.quizthenox.live",
}

// legacyEnv maps config keys to the bare variable names older deployments
// still set.
var legacyEnv = map[string]string{
	"server.port":         "PORT",
	"server.frontend_url": "FRONTEND_URL",
	"store.database_url":  "DATABASE_URL",
	"telegram.bot_token":  "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":    "TELEGRAM_CHAT_ID",
	"log.level":           "LOG_LEVEL",
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KVIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range legacyEnv {
		envKey := "KVIZ_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, envKey, name); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", name)
		}
	}

	v.SetDefault("server.port", 3001)
	v.SetDefault("server.allowed_origins", defaultOrigins)
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", 15*time.Minute)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", 10*time.Second)
	v.SetDefault("mail.port", 587)
	v.SetDefault("intake.ip_throttle", true)
	v.SetDefault("intake.ip_window", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.analytics_max_age_days", 30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Server.FrontendURL != "" && !slices.Contains(cfg.Server.AllowedOrigins, cfg.Server.FrontendURL) {
		cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, cfg.Server.FrontendURL)
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it starts.
func (c *Config) Validate(command string) error {
	var problems []string

	switch command {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimit.Requests <= 0 || c.Server.RateLimit.Window <= 0 {
			problems = append(problems, "server.rate_limit requests and window must be positive")
		}
		if c.Intake.IPWindow <= 0 {
			problems = append(problems, "intake.ip_window must be positive")
		}
		problems = append(problems, c.storeProblems()...)
	case "migrate", "stats":
		problems = append(problems, c.storeProblems()...)
	case "worker":
		if c.Queue.URL == "" {
			problems = append(problems, "queue.url is required")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) storeProblems() []string {
	var problems []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	return problems
}

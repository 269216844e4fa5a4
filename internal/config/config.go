// Package config provides YAML-based configuration loading for labyard.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level labyard configuration, loaded from labyard.yaml.
type Config struct {
	Database    DatabaseConfig   `yaml:"database"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Codegen     CodegenConfig    `yaml:"codegen"`
	Redis       RedisConfig      `yaml:"redis"`
	Notify      NotifyConfig     `yaml:"notify"`
	Sweep       SweepConfig      `yaml:"sweep"`
	Attachments AttachmentConfig `yaml:"attachments"`
	Seed        SeedConfig       `yaml:"seed"`
}

// DatabaseConfig selects and addresses the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// Path is the SQLite file; ":memory:" keeps everything in process.
	Path    string `yaml:"path"`
	SSLMode string `yaml:"sslmode"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// CodegenConfig selects the counter behind requirement and sample codes.
type CodegenConfig struct {
	Driver string `yaml:"driver"` // table or redis
}

// RedisConfig addresses the Redis server used for code sequences.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NotifyConfig selects notification channels.
type NotifyConfig struct {
	Channels []string      `yaml:"channels"`
	Async    bool          `yaml:"async"`
	Timeout  time.Duration `yaml:"timeout"`
	SMTP     SMTPConfig    `yaml:"smtp"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
}

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SweepConfig schedules the storage expiry sweep. The sweep runs unless
// enabled is explicitly false.
type SweepConfig struct {
	Enabled       *bool  `yaml:"enabled"`
	Cron          string `yaml:"cron"`
	LookaheadDays int    `yaml:"lookahead_days"`
}

// AttachmentConfig selects where requirement documents are kept.
type AttachmentConfig struct {
	Driver    string `yaml:"driver"` // memory, s3 or minio
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// SeedConfig lists catalog rows inserted by `ly db seed`.
type SeedConfig struct {
	AnalysisTypes []SeedAnalysisType `yaml:"analysis_types"`
	Plants        []SeedPlant        `yaml:"plants"`
}

// SeedAnalysisType is one analysis type to seed.
type SeedAnalysisType struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Method         string `yaml:"method"`
	EstimatedHours int    `yaml:"estimated_hours"`
}

// SeedPlant is one plant to seed.
type SeedPlant struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

var (
	dbDrivers         = []string{"mysql", "postgres", "sqlite"}
	codegenDrivers    = []string{"table", "redis"}
	notifyChannels    = []string{"log", "smtp", "slack", "discord"}
	attachmentDrivers = []string{"memory", "s3", "minio"}
	logFormats        = []string{"json", "console"}
)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SweepEnabled reports whether `ly serve` schedules the expiry sweep.
func (c *Config) SweepEnabled() bool {
	return c.Sweep.Enabled == nil || *c.Sweep.Enabled
}

// Lookahead returns the sweep window as a duration.
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.Sweep.LookaheadDays) * 24 * time.Hour
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.Name == "" {
		c.Database.Name = "labyard"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "labyard.db"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.TokenTTL == 0 {
		c.Server.TokenTTL = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Codegen.Driver == "" {
		c.Codegen.Driver = "table"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if len(c.Notify.Channels) == 0 {
		c.Notify.Channels = []string{"log"}
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 30 * time.Second
	}
	if c.Notify.SMTP.Port == 0 {
		c.Notify.SMTP.Port = 587
	}
	if c.Sweep.Enabled == nil {
		enabled := true
		c.Sweep.Enabled = &enabled
	}
	if c.Sweep.Cron == "" {
		c.Sweep.Cron = "0 8 * * *"
	}
	if c.Sweep.LookaheadDays == 0 {
		c.Sweep.LookaheadDays = 7
	}
	if c.Attachments.Driver == "" {
		c.Attachments.Driver = "memory"
	}
	if c.Attachments.Region == "" {
		c.Attachments.Region = "us-east-1"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Sprintf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value))
		}
	}

	oneOf("database.driver", c.Database.Driver, dbDrivers)
	if c.Database.Driver != "sqlite" && c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	oneOf("log.format", c.Log.Format, logFormats)
	oneOf("codegen.driver", c.Codegen.Driver, codegenDrivers)
	oneOf("attachments.driver", c.Attachments.Driver, attachmentDrivers)
	if c.Attachments.Driver != "memory" && c.Attachments.Bucket == "" {
		errs = append(errs, "attachments.bucket is required")
	}
	if c.Attachments.Driver == "minio" && c.Attachments.Endpoint == "" {
		errs = append(errs, "attachments.endpoint is required for minio")
	}

	for i, ch := range c.Notify.Channels {
		oneOf(fmt.Sprintf("notify.channels[%d]", i), ch, notifyChannels)
		switch ch {
		case "smtp":
			if c.Notify.SMTP.Host == "" || c.Notify.SMTP.From == "" {
				errs = append(errs, "notify.smtp.host and notify.smtp.from are required")
			}
		case "slack":
			if c.Notify.Slack.BotToken == "" || c.Notify.Slack.ChannelID == "" {
				errs = append(errs, "notify.slack.bot_token and notify.slack.channel_id are required")
			}
		case "discord":
			if c.Notify.Discord.BotToken == "" || c.Notify.Discord.ChannelID == "" {
				errs = append(errs, "notify.discord.bot_token and notify.discord.channel_id are required")
			}
		}
	}

	if _, err := cron.ParseStandard(c.Sweep.Cron); err != nil {
		errs = append(errs, fmt.Sprintf("sweep.cron: %v", err))
	}
	if c.Sweep.LookaheadDays < 0 {
		errs = append(errs, "sweep.lookahead_days must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	for i, at := range c.Seed.AnalysisTypes {
		if at.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.analysis_types[%d].name is required", i))
		}
	}
	for i, p := range c.Seed.Plants {
		if p.Code == "" || p.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.plants[%d] needs code and name", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"leadflow/internal/models"
)

// EnvPath names the environment variable holding the config path.
const EnvPath = "LEADFLOW_CONFIG"

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Dialect     string `yaml:"dialect"` // postgres | sqlite
	DSN         string `yaml:"url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type ReactivationConfig struct {
	Enabled bool `yaml:"enabled"`
}

type WorkflowConfig struct {
	MaxAttempts      int                `yaml:"max_attempts"`
	Reactivation     ReactivationConfig `yaml:"reactivation"`
	RequireReasonFor []models.Stage     `yaml:"require_reason_for"`
	UseRedisLock     bool               `yaml:"use_redis_lock"`
	LockTTL          time.Duration      `yaml:"lock_ttl"`
}

type DispatchConfig struct {
	Workers         int           `yaml:"workers"`
	Buffer          int           `yaml:"buffer"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	// nil = default; 0 disables retries
	MaxRetries *int `yaml:"max_retries"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type EmailConfig struct {
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`
	SMTPUser     string   `yaml:"smtp_user"`
	SMTPPassword string   `yaml:"smtp_password"`
	FromEmail    string   `yaml:"from_email"`
	To           []string `yaml:"to"`
}

type NotificationsConfig struct {
	HighSalience []models.Stage `yaml:"high_salience"`
	Telegram     TelegramConfig `yaml:"telegram"`
	Email        EmailConfig    `yaml:"email"`
}

type AutomationConfig struct {
	Stages   []models.Stage `yaml:"stages"`
	QueueKey string         `yaml:"queue_key"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	// Storage: "sql" (default) or "memory" for local runs without a database.
	Storage       string              `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Automation    AutomationConfig    `yaml:"automation"`
	JWT           JWTConfig           `yaml:"jwt"`
	Log           LogConfig           `yaml:"log"`
}

// ResolvePath picks the config path: explicit flag, then LEADFLOW_CONFIG, then the default.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig reads the YAML file at path, expands ${VAR} references, applies
// defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage == "" {
		c.Storage = "sql"
	}
	if c.Database.Dialect == "" {
		c.Database.Dialect = "postgres"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "leadflow:"
	}
	if c.Workflow.MaxAttempts == 0 {
		c.Workflow.MaxAttempts = 3
	}
	if c.Workflow.LockTTL == 0 {
		c.Workflow.LockTTL = 10 * time.Second
	}
	if c.Dispatch.Workers == 0 {
		c.Dispatch.Workers = 4
	}
	if c.Dispatch.Buffer == 0 {
		c.Dispatch.Buffer = 256
	}
	if c.Dispatch.DeliveryTimeout == 0 {
		c.Dispatch.DeliveryTimeout = 5 * time.Second
	}
	if c.Dispatch.MaxRetries == nil {
		retries := 3
		c.Dispatch.MaxRetries = &retries
	}
	if c.Notifications.HighSalience == nil {
		c.Notifications.HighSalience = []models.Stage{models.StageHotEngaged, models.StageClosedWon}
	}
	if c.Notifications.Email.SMTPPort == 0 {
		c.Notifications.Email.SMTPPort = 587
	}
	if c.Automation.Stages == nil {
		c.Automation.Stages = []models.Stage{models.StageQualifying, models.StageWarmNurturing, models.StageMeetingScheduled}
	}
	if c.Automation.QueueKey == "" {
		c.Automation.QueueKey = c.Redis.Prefix + "automation"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage {
	case "sql":
		switch c.Database.Dialect {
		case "postgres", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("database.dialect: unknown %q", c.Database.Dialect))
		}
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.url is required for sql storage"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage: unknown %q", c.Storage))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Workflow.MaxAttempts < 1 {
		errs = append(errs, errors.New("workflow.max_attempts must be positive"))
	}
	if c.Workflow.UseRedisLock && c.Redis.Addr == "" {
		errs = append(errs, errors.New("workflow.use_redis_lock needs redis.addr"))
	}
	if c.Dispatch.Workers < 1 || c.Dispatch.Buffer < 1 {
		errs = append(errs, errors.New("dispatch.workers and dispatch.buffer must be positive"))
	}
	if r := c.Dispatch.MaxRetries; r != nil && *r < 0 {
		errs = append(errs, errors.New("dispatch.max_retries must not be negative"))
	}
	if c.Notifications.Telegram.Token != "" && c.Notifications.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("notifications.telegram.chat_id is required with a token"))
	}
	if len(c.Notifications.Email.To) > 0 && c.Notifications.Email.SMTPHost == "" {
		errs = append(errs, errors.New("notifications.email.smtp_host is required with recipients"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

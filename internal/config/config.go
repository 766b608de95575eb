package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type CacheConfig struct {
	// Driver is "memory" or "redis".
	Driver     string        `yaml:"driver"`
	Size       int           `yaml:"size"`
	TTL        time.Duration `yaml:"ttl"`
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db"`
	RedisToken string        `yaml:"-"` // Loaded from environment
}

type EmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

type JobsConfig struct {
	ReminderCron       string        `yaml:"reminder_cron"`
	ReminderLeadTime   time.Duration `yaml:"reminder_lead_time"`
	ExpireRequestsCron string        `yaml:"expire_requests_cron"`
}

type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	ContactCooldown   time.Duration `yaml:"contact_cooldown"`
	ContactMaxPerHour int           `yaml:"contact_max_per_hour"`
	IPMaxPerHour      int           `yaml:"ip_max_per_hour"`
	TrustProxy        bool          `yaml:"trust_proxy"`
}

type Config struct {
	App struct {
		Name          string `yaml:"name"`
		Environment   string `yaml:"environment"`
		Port          int    `yaml:"port"`
		BaseDomain    string `yaml:"base_domain"`
		DefaultRegion string `yaml:"default_phone_region"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Email     EmailConfig     `yaml:"email"`
	Jobs      JobsConfig      `yaml:"jobs"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and environment secrets,
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Load sensitive values from environment
	cfg.Cache.RedisToken = os.Getenv("REDIS_PASSWORD")
	cfg.Email.AccessKeyID = os.Getenv("AWS_SES_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SES_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.DefaultRegion == "" {
		c.App.DefaultRegion = "BR"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = 1024
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Jobs.ReminderCron == "" {
		c.Jobs.ReminderCron = "*/15 * * * *"
	}
	if c.Jobs.ReminderLeadTime == 0 {
		c.Jobs.ReminderLeadTime = 24 * time.Hour
	}
	if c.Jobs.ExpireRequestsCron == "" {
		c.Jobs.ExpireRequestsCron = "0 * * * *"
	}
	if c.RateLimit.ContactCooldown == 0 {
		c.RateLimit.ContactCooldown = 30 * time.Second
	}
	if c.RateLimit.ContactMaxPerHour == 0 {
		c.RateLimit.ContactMaxPerHour = 5
	}
	if c.RateLimit.IPMaxPerHour == 0 {
		c.RateLimit.IPMaxPerHour = 30
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case "memory":
		if c.Cache.Size < 0 {
			return fmt.Errorf("cache size must be positive")
		}
	case "redis":
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return fmt.Errorf("cache redis_addr is required for redis")
		}
	default:
		return fmt.Errorf("unsupported cache driver: %s", c.Cache.Driver)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}

	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
		if c.Email.AccessKeyID == "" || c.Email.SecretAccessKey == "" {
			return fmt.Errorf("AWS_SES_ACCESS_KEY_ID and AWS_SES_SECRET_ACCESS_KEY are required when email is enabled")
		}
	}

	for name, expr := range map[string]string{
		"jobs.reminder_cron":        c.Jobs.ReminderCron,
		"jobs.expire_requests_cron": c.Jobs.ExpireRequestsCron,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s is not a valid cron expression: %w", name, err)
		}
	}
	if c.Jobs.ReminderLeadTime < 0 {
		return fmt.Errorf("jobs.reminder_lead_time must not be negative")
	}
	if c.RateLimit.ContactCooldown < 0 || c.RateLimit.ContactMaxPerHour < 0 || c.RateLimit.IPMaxPerHour < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}

	return nil
}

// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Components accept it instead of *Config so tests can hand in their own values.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Engine() EngineConfig
	Browser() BrowserConfig
	Automation() AutomationConfig
	Invite() InviteConfig
	Secrets() SecretsConfig
	Service() ServiceConfig
	Metrics() MetricsConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Automation Setters
	SetAutomationInteractive(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	EngineCfg     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	AutomationCfg AutomationConfig `mapstructure:"automation" yaml:"automation"`
	InviteCfg     InviteConfig     `mapstructure:"invite" yaml:"invite"`
	SecretsCfg    SecretsConfig    `mapstructure:"secrets" yaml:"secrets"`
	ServiceCfg    ServiceConfig    `mapstructure:"service" yaml:"service"`
	MetricsCfg    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }
func (c *Config) Engine() EngineConfig         { return c.EngineCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Automation() AutomationConfig { return c.AutomationCfg }
func (c *Config) Invite() InviteConfig         { return c.InviteCfg }
func (c *Config) Secrets() SecretsConfig       { return c.SecretsCfg }
func (c *Config) Service() ServiceConfig       { return c.ServiceCfg }
func (c *Config) Metrics() MetricsConfig       { return c.MetricsCfg }

func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetAutomationInteractive(b bool) { c.AutomationCfg.Interactive = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// EngineConfig configures the asynchronous job runner.
type EngineConfig struct {
	QueueSize          int           `mapstructure:"queue_size" yaml:"queue_size"`
	WorkerConcurrency  int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	DefaultTaskTimeout time.Duration `mapstructure:"default_task_timeout" yaml:"default_task_timeout"`
}

// BrowserConfig holds settings for pooled and dedicated browser processes.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	PoolSize        int           `mapstructure:"pool_size" yaml:"pool_size"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	ProfileRoot     string        `mapstructure:"profile_root" yaml:"profile_root"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
}

// AutomationConfig describes the target console and the bounds of every wait.
type AutomationConfig struct {
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	LoginPath          string        `mapstructure:"login_path" yaml:"login_path"`
	MembersPath        string        `mapstructure:"members_path" yaml:"members_path"`
	Interactive        bool          `mapstructure:"interactive" yaml:"interactive"`
	ManualLoginTimeout time.Duration `mapstructure:"manual_login_timeout" yaml:"manual_login_timeout"`
	ManualPollInterval time.Duration `mapstructure:"manual_poll_interval" yaml:"manual_poll_interval"`
	ScreenshotDir      string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout     time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	ActionTimeout      time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	DialogTimeout      time.Duration `mapstructure:"dialog_timeout" yaml:"dialog_timeout"`
	WorkspaceAttempts  int           `mapstructure:"workspace_attempts" yaml:"workspace_attempts"`
	WorkspaceTimeout   time.Duration `mapstructure:"workspace_timeout" yaml:"workspace_timeout"`
	NavigationRetries  int           `mapstructure:"navigation_retries" yaml:"navigation_retries"`
	ResponseTimeout    time.Duration `mapstructure:"response_timeout" yaml:"response_timeout"`
	FallbackTimeout    time.Duration `mapstructure:"fallback_timeout" yaml:"fallback_timeout"`
	ConfirmTimeout     time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	StepDelay          time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
}

// InviteConfig holds defaults for bulk invite jobs.
type InviteConfig struct {
	DefaultDelay time.Duration `mapstructure:"default_delay" yaml:"default_delay"`
	DefaultRole  string        `mapstructure:"default_role" yaml:"default_role"`
	MemberLimit  int           `mapstructure:"member_limit" yaml:"member_limit"`
}

// SecretsConfig holds the key used to open stored credentials.
type SecretsConfig struct {
	// Key is a base64-encoded 32 byte key.
	Key string `mapstructure:"key" yaml:"-"`
}

// ServiceConfig tunes operator-facing behavior.
type ServiceConfig struct {
	Locale        string        `mapstructure:"locale" yaml:"locale"`
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	// CheckRate is the number of login probes allowed per minute by the watcher.
	CheckRate float64 `mapstructure:"check_rate" yaml:"check_rate"`
}

// MetricsConfig controls the prometheus endpoint of the serve command.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "seatctl")
	v.SetDefault("logger.log_file", "seatctl.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Engine --
	v.SetDefault("engine.queue_size", 100)
	v.SetDefault("engine.worker_concurrency", 2)
	v.SetDefault("engine.default_task_timeout", "2h")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.pool_size", 2)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.profile_root", ".automation-profiles")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)

	// -- Automation --
	v.SetDefault("automation.base_url", "https://chatgpt.com")
	v.SetDefault("automation.login_path", "/auth/login")
	v.SetDefault("automation.members_path", "/admin/members")
	v.SetDefault("automation.interactive", false)
	v.SetDefault("automation.manual_login_timeout", "8m")
	v.SetDefault("automation.manual_poll_interval", "2s")
	v.SetDefault("automation.screenshot_dir", "/tmp")
	v.SetDefault("automation.navigation_timeout", "60s")
	v.SetDefault("automation.element_timeout", "10s")
	v.SetDefault("automation.action_timeout", "3s")
	v.SetDefault("automation.dialog_timeout", "5s")
	v.SetDefault("automation.workspace_attempts", 3)
	v.SetDefault("automation.workspace_timeout", "15s")
	v.SetDefault("automation.navigation_retries", 3)
	v.SetDefault("automation.response_timeout", "15s")
	v.SetDefault("automation.fallback_timeout", "8s")
	v.SetDefault("automation.confirm_timeout", "20s")
	v.SetDefault("automation.poll_interval", "250ms")
	v.SetDefault("automation.settle_delay", "5s")
	v.SetDefault("automation.step_delay", "2s")

	// -- Invite --
	v.SetDefault("invite.default_delay", "3s")
	v.SetDefault("invite.default_role", "member")
	v.SetDefault("invite.member_limit", 5)

	// -- Service --
	v.SetDefault("service.locale", "en")
	v.SetDefault("service.check_interval", "15m")
	v.SetDefault("service.check_rate", 4.0)

	// -- Metrics --
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9464")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("secrets.key", "SEATCTL_SECRETS_KEY")
	_ = v.BindEnv("database.url", "SEATCTL_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading ~ in every filesystem path of the configuration.
func (c *Config) ExpandPaths() error {
	paths := []*string{
		&c.BrowserCfg.ProfileRoot,
		&c.BrowserCfg.ExecPath,
		&c.AutomationCfg.ScreenshotDir,
		&c.LoggerCfg.LogFile,
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be a positive integer")
	}
	if c.BrowserCfg.PoolSize <= 0 {
		return fmt.Errorf("browser.pool_size must be a positive integer")
	}
	if c.BrowserCfg.LaunchTimeout <= 0 {
		return fmt.Errorf("browser.launch_timeout must be positive")
	}
	if c.BrowserCfg.ProfileRoot == "" {
		return fmt.Errorf("browser.profile_root is required")
	}
	if !strings.HasPrefix(c.AutomationCfg.BaseURL, "http://") && !strings.HasPrefix(c.AutomationCfg.BaseURL, "https://") {
		return fmt.Errorf("automation.base_url must be an absolute http(s) URL")
	}
	a := c.AutomationCfg
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"manual_login_timeout", a.ManualLoginTimeout},
		{"navigation_timeout", a.NavigationTimeout},
		{"element_timeout", a.ElementTimeout},
		{"action_timeout", a.ActionTimeout},
		{"dialog_timeout", a.DialogTimeout},
		{"workspace_timeout", a.WorkspaceTimeout},
		{"response_timeout", a.ResponseTimeout},
		{"fallback_timeout", a.FallbackTimeout},
		{"confirm_timeout", a.ConfirmTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("automation.%s must be positive", d.key)
		}
	}
	if c.AutomationCfg.WorkspaceAttempts <= 0 {
		return fmt.Errorf("automation.workspace_attempts must be a positive integer")
	}
	if c.AutomationCfg.NavigationRetries <= 0 {
		return fmt.Errorf("automation.navigation_retries must be a positive integer")
	}
	if c.InviteCfg.DefaultDelay < 0 {
		return fmt.Errorf("invite.default_delay must not be negative")
	}
	if c.InviteCfg.MemberLimit <= 0 {
		return fmt.Errorf("invite.member_limit must be a positive integer")
	}
	switch c.InviteCfg.DefaultRole {
	case "member", "admin":
	default:
		return fmt.Errorf("invite.default_role must be one of member, admin")
	}
	if c.ServiceCfg.CheckRate <= 0 {
		return fmt.Errorf("service.check_rate must be positive")
	}
	return nil
}

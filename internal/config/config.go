// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the complete configuration of an othello run.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Vision  VisionConfig  `mapstructure:"vision" yaml:"vision"`
	Planner PlannerConfig `mapstructure:"planner" yaml:"planner"`
	Explore ExploreConfig `mapstructure:"explore" yaml:"explore"`
	Stories StoriesConfig `mapstructure:"stories" yaml:"stories"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggerConfig configures the zap logger and its rotating file sink.
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

// ColorConfig names the console color of each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// Device backends.
const (
	BackendADB        = "adb"
	BackendChromedp   = "chromedp"
	BackendPlaywright = "playwright"
)

// DeviceConfig selects and configures the device driver.
type DeviceConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	ScreenshotDir string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	ADB           ADBConfig     `mapstructure:"adb" yaml:"adb"`
	Browser       BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// ADBConfig addresses a physical or emulated Android device.
type ADBConfig struct {
	Path            string        `mapstructure:"path" yaml:"path"`
	Serial          string        `mapstructure:"serial" yaml:"serial"`
	BrowserPackage  string        `mapstructure:"browser_package" yaml:"browser_package"`
	BrowserActivity string        `mapstructure:"browser_activity" yaml:"browser_activity"`
	SwipeDuration   time.Duration `mapstructure:"swipe_duration" yaml:"swipe_duration"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// BrowserConfig configures the emulated mobile browser used by the chromedp
// and playwright backends.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	DeviceScaleFactor float64       `mapstructure:"device_scale_factor" yaml:"device_scale_factor"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// InstallDriver downloads the Playwright driver and Chromium on start.
	InstallDriver bool `mapstructure:"install_driver" yaml:"install_driver"`
}

// AuthConfig locates the local session archive and the device-side profile.
type AuthConfig struct {
	SessionPath string `mapstructure:"session_path" yaml:"session_path"`
	Package     string `mapstructure:"package" yaml:"package"`
	ProfileDir  string `mapstructure:"profile_dir" yaml:"profile_dir"`
}

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LLMConfig configures the model provider behind the LLM-backed strategies.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel     string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// Strategy selectors. "auto" picks the LLM strategy when an API key is
// configured and the offline strategy otherwise.
const (
	StrategyAuto        = "auto"
	StrategyLLM         = "llm"
	StrategyManual      = "manual"
	StrategyUIAutomator = "uiautomator"
	StrategyNone        = "none"
)

// VisionConfig selects the screen analysis strategy.
type VisionConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
}

// PlannerConfig selects the exploration planner strategy.
type PlannerConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
}

// ExploreConfig bounds exploration runs.
type ExploreConfig struct {
	MaxSteps        int    `mapstructure:"max_steps" yaml:"max_steps"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir"`
	StagnationLimit int    `mapstructure:"stagnation_limit" yaml:"stagnation_limit"`
}

// StoriesConfig configures story batches.
type StoriesConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// StoreConfig configures the run history database. A DSN starting with
// postgres:// or postgresql:// selects PostgreSQL, anything else is a SQLite path.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// NewDefaultConfig returns a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "othello")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Device --
	v.SetDefault("device.backend", BackendADB)
	v.SetDefault("device.screenshot_dir", "screenshots")
	v.SetDefault("device.adb.path", "adb")
	v.SetDefault("device.adb.serial", "")
	v.SetDefault("device.adb.browser_package", "com.android.chrome")
	v.SetDefault("device.adb.browser_activity", "com.google.android.apps.chrome.Main")
	v.SetDefault("device.adb.swipe_duration", "300ms")
	v.SetDefault("device.adb.command_timeout", "30s")
	v.SetDefault("device.browser.headless", true)
	v.SetDefault("device.browser.width", 412)
	v.SetDefault("device.browser.height", 915)
	v.SetDefault("device.browser.device_scale_factor", 2.625)
	v.SetDefault("device.browser.user_agent",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36")
	v.SetDefault("device.browser.user_data_dir", "")
	v.SetDefault("device.browser.action_timeout", "10s")
	v.SetDefault("device.browser.navigation_timeout", "45s")
	v.SetDefault("device.browser.install_driver", false)

	// -- Auth --
	v.SetDefault("auth.session_path", "auth/session.bin")
	v.SetDefault("auth.package", "com.android.chrome")
	v.SetDefault("auth.profile_dir", "app_chrome")

	// -- LLM --
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.fast_model", "gpt-4o-mini")
	v.SetDefault("llm.powerful_model", "gpt-4o")
	v.SetDefault("llm.api_timeout", "90s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.debug", false)

	// -- Strategies --
	v.SetDefault("vision.provider", StrategyAuto)
	v.SetDefault("planner.provider", StrategyAuto)

	// -- Loops --
	v.SetDefault("explore.max_steps", 10)
	v.SetDefault("explore.output_dir", "routes")
	v.SetDefault("explore.stagnation_limit", 0)
	v.SetDefault("stories.output_dir", "results")

	// -- Persistence & Metrics --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.dsn", "~/.othello/history.db")
	v.SetDefault("metrics.addr", "")
}

// NewConfigFromViper unmarshals, post-processes and validates the configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are read from dedicated variables before falling back to the
	// provider's conventional ones.
	_ = v.BindEnv("llm.api_key", "OTHELLO_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("llm.debug", "OTHELLO_DEBUG")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Logger.LogFile,
		&c.Device.ScreenshotDir,
		&c.Device.Browser.UserDataDir,
		&c.Auth.SessionPath,
		&c.Explore.OutputDir,
		&c.Stories.OutputDir,
	}
	if !isPostgresDSN(c.Store.DSN) {
		paths = append(paths, &c.Store.DSN)
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
	switch c.Device.Backend {
	case BackendADB, BackendChromedp, BackendPlaywright:
	default:
		return fmt.Errorf("device.backend must be one of adb, chromedp, playwright; got %q", c.Device.Backend)
	}
	if c.Device.Backend != BackendADB && (c.Device.Browser.Width <= 0 || c.Device.Browser.Height <= 0) {
		return fmt.Errorf("device.browser.width and device.browser.height must be positive")
	}
	if c.Explore.MaxSteps <= 0 {
		return fmt.Errorf("explore.max_steps must be a positive integer")
	}
	if c.Explore.StagnationLimit < 0 {
		return fmt.Errorf("explore.stagnation_limit must not be negative")
	}
	if c.Auth.SessionPath == "" {
		return fmt.Errorf("auth.session_path is a required configuration field")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be openai or gemini; got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if err := validateStrategy("vision.provider", c.Vision.Provider, StrategyAuto, StrategyLLM, StrategyUIAutomator, StrategyNone); err != nil {
		return err
	}
	if err := validateStrategy("planner.provider", c.Planner.Provider, StrategyAuto, StrategyLLM, StrategyManual); err != nil {
		return err
	}
	if c.Vision.Provider == StrategyUIAutomator && c.Device.Backend != BackendADB {
		return fmt.Errorf("vision.provider uiautomator requires device.backend adb")
	}
	if c.Store.Enabled && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when store.enabled is true")
	}
	return nil
}

// HasLLMKey reports whether an API key is available for the LLM strategies.
func (c *Config) HasLLMKey() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// IsPostgres reports whether the store DSN targets PostgreSQL.
func (s StoreConfig) IsPostgres() bool {
	return isPostgresDSN(s.DSN)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func validateStrategy(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s; got %q", key, strings.Join(allowed, ", "), value)
}

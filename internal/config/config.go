// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Archive scopes understood by the archiver.
const (
	// ArchiveScopeAll sweeps every PDF found in the receipts directory, including
	// the per-order receipt PDFs that are intermediate artifacts.
	ArchiveScopeAll = "all"
	// ArchiveScopeComplete only archives the final merged "-complete.pdf" files.
	ArchiveScopeComplete = "complete"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Site() SiteConfig
	Orders() OrdersConfig
	Output() OutputConfig
	Submit() SubmitConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Output Setters
	SetOutputDir(string)
	SetOutputArchiveScope(string)

	// Submit Setters
	SetSubmitMaxAttempts(int)
}

// Config holds the entire application configuration.
// Sections are exported so viper can populate them; callers should prefer the getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
	SiteCfg    SiteConfig    `mapstructure:"site" yaml:"site"`
	OrdersCfg  OrdersConfig  `mapstructure:"orders" yaml:"orders"`
	OutputCfg  OutputConfig  `mapstructure:"output" yaml:"output"`
	SubmitCfg  SubmitConfig  `mapstructure:"submit" yaml:"submit"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }
func (c *Config) Site() SiteConfig       { return c.SiteCfg }
func (c *Config) Orders() OrdersConfig   { return c.OrdersCfg }
func (c *Config) Output() OutputConfig   { return c.OutputCfg }
func (c *Config) Submit() SubmitConfig   { return c.SubmitCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)         { c.BrowserCfg.Headless = b }
func (c *Config) SetOutputDir(dir string)           { c.OutputCfg.Dir = dir }
func (c *Config) SetOutputArchiveScope(s string)    { c.OutputCfg.ArchiveScope = s }
func (c *Config) SetSubmitMaxAttempts(attempts int) { c.SubmitCfg.MaxAttempts = attempts }

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

// BrowserConfig holds settings for the Chromium instance driving the storefront.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// SlowMotion is a pause applied after every browser action, giving the
	// storefront's client side rendering time to catch up.
	SlowMotion     time.Duration `mapstructure:"slow_motion" yaml:"slow_motion"`
	ExecPath       string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	Debug          bool          `mapstructure:"debug" yaml:"debug"`
}

// NetworkConfig tunes timeouts for HTTP downloads and browser operations.
type NetworkConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// SiteConfig describes the order page and the selectors used to drive it.
type SiteConfig struct {
	OrderURL  string          `mapstructure:"order_url" yaml:"order_url"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
}

// SelectorsConfig holds CSS selectors (or XPath expressions when they start
// with "/") for every control the form filler touches.
type SelectorsConfig struct {
	ModalDismiss string `mapstructure:"modal_dismiss" yaml:"modal_dismiss"`
	Head         string `mapstructure:"head" yaml:"head"`
	// BodyRadio is a template; "{value}" is replaced with the order's Body field.
	BodyRadio    string `mapstructure:"body_radio" yaml:"body_radio"`
	Legs         string `mapstructure:"legs" yaml:"legs"`
	Address      string `mapstructure:"address" yaml:"address"`
	Preview      string `mapstructure:"preview" yaml:"preview"`
	PreviewImage string `mapstructure:"preview_image" yaml:"preview_image"`
	Order        string `mapstructure:"order" yaml:"order"`
	ErrorBanner  string `mapstructure:"error_banner" yaml:"error_banner"`
	Receipt      string `mapstructure:"receipt" yaml:"receipt"`
	ReceiptID    string `mapstructure:"receipt_id" yaml:"receipt_id"`
	OrderAnother string `mapstructure:"order_another" yaml:"order_another"`
}

// OrdersConfig configures where the order CSV comes from.
type OrdersConfig struct {
	CSVURL    string `mapstructure:"csv_url" yaml:"csv_url"`
	LocalPath string `mapstructure:"local_path" yaml:"local_path"`
	Overwrite bool   `mapstructure:"overwrite" yaml:"overwrite"`
}

// OutputConfig controls the on-disk layout of screenshots, PDFs and the archive.
type OutputConfig struct {
	Dir             string `mapstructure:"dir" yaml:"dir"`
	ReceiptsSubdir  string `mapstructure:"receipts_subdir" yaml:"receipts_subdir"`
	ArchiveName     string `mapstructure:"archive_name" yaml:"archive_name"`
	ArchiveScope    string `mapstructure:"archive_scope" yaml:"archive_scope"`
	KeepScreenshots bool   `mapstructure:"keep_screenshots" yaml:"keep_screenshots"`
	ManifestName    string `mapstructure:"manifest_name" yaml:"manifest_name"`
}

// SubmitConfig bounds the resubmission loop that runs while the storefront
// shows its error banner.
type SubmitConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
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
	v.SetDefault("logger.service_name", "robot-order")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_motion", "50ms")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 1024)
	v.SetDefault("browser.debug", false)

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.action_timeout", "30s")
	v.SetDefault("network.post_load_wait", "500ms")
	v.SetDefault("network.user_agent", "")

	// -- Site --
	v.SetDefault("site.order_url", "https://robotsparebinindustries.com/#/robot-order")
	v.SetDefault("site.selectors.modal_dismiss", "//button[normalize-space(text())='OK']")
	v.SetDefault("site.selectors.head", "#head")
	v.SetDefault("site.selectors.body_radio", "[name='body'][value='{value}']")
	v.SetDefault("site.selectors.legs", "[placeholder='Enter the part number for the legs']")
	v.SetDefault("site.selectors.address", "#address")
	v.SetDefault("site.selectors.preview", "#preview")
	v.SetDefault("site.selectors.preview_image", "#robot-preview-image")
	v.SetDefault("site.selectors.order", "#order")
	v.SetDefault("site.selectors.error_banner", ".alert.alert-danger")
	v.SetDefault("site.selectors.receipt", "#receipt")
	v.SetDefault("site.selectors.receipt_id", ".badge-success")
	v.SetDefault("site.selectors.order_another", "#order-another")

	// -- Orders --
	v.SetDefault("orders.csv_url", "https://robotsparebinindustries.com/orders.csv")
	v.SetDefault("orders.local_path", "orders.csv")
	v.SetDefault("orders.overwrite", true)

	// -- Output --
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.receipts_subdir", "receipt-order")
	v.SetDefault("output.archive_name", "receipts.zip")
	v.SetDefault("output.archive_scope", ArchiveScopeAll)
	v.SetDefault("output.keep_screenshots", false)
	v.SetDefault("output.manifest_name", "run-manifest.json")

	// -- Submit --
	v.SetDefault("submit.max_attempts", 5)
	v.SetDefault("submit.retry_interval", "1s")
	v.SetDefault("submit.settle_delay", "300ms")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Short aliases for the two endpoints most often pointed at a staging site.
	_ = v.BindEnv("site.order_url", "ROBOT_ORDER_SITE_URL")
	_ = v.BindEnv("orders.csv_url", "ROBOT_ORDER_CSV_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("error expanding configured paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every filesystem path of the config.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.OutputCfg.Dir, &c.OrdersCfg.LocalPath, &c.LoggerCfg.LogFile, &c.BrowserCfg.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.SiteCfg.OrderURL == "" {
		return fmt.Errorf("site.order_url is a required configuration field")
	}
	if c.OrdersCfg.CSVURL == "" {
		return fmt.Errorf("orders.csv_url is a required configuration field")
	}
	if c.OrdersCfg.LocalPath == "" {
		return fmt.Errorf("orders.local_path is a required configuration field")
	}
	if err := c.OutputCfg.Validate(); err != nil {
		return fmt.Errorf("output configuration invalid: %w", err)
	}
	if err := c.SubmitCfg.Validate(); err != nil {
		return fmt.Errorf("submit configuration invalid: %w", err)
	}
	if err := c.SiteCfg.Selectors.Validate(); err != nil {
		return fmt.Errorf("site.selectors configuration invalid: %w", err)
	}
	if c.BrowserCfg.SlowMotion < 0 {
		return fmt.Errorf("browser.slow_motion must not be negative")
	}
	return nil
}

// Validate checks the output layout settings.
func (o *OutputConfig) Validate() error {
	if o.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if o.ReceiptsSubdir == "" {
		return fmt.Errorf("receipts_subdir is required")
	}
	if !strings.HasSuffix(strings.ToLower(o.ArchiveName), ".zip") {
		return fmt.Errorf("archive_name must end in .zip, got %q", o.ArchiveName)
	}
	switch o.ArchiveScope {
	case ArchiveScopeAll, ArchiveScopeComplete:
	default:
		return fmt.Errorf("archive_scope must be %q or %q, got %q", ArchiveScopeAll, ArchiveScopeComplete, o.ArchiveScope)
	}
	return nil
}

// Validate checks the SubmitConfig settings.
func (s *SubmitConfig) Validate() error {
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if s.RetryInterval < 0 {
		return fmt.Errorf("retry_interval must not be negative")
	}
	if s.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	return nil
}

// Validate ensures every selector the pipeline depends on is set.
func (s *SelectorsConfig) Validate() error {
	required := map[string]string{
		"modal_dismiss": s.ModalDismiss,
		"head":          s.Head,
		"body_radio":    s.BodyRadio,
		"legs":          s.Legs,
		"address":       s.Address,
		"preview":       s.Preview,
		"preview_image": s.PreviewImage,
		"order":         s.Order,
		"error_banner":  s.ErrorBanner,
		"receipt":       s.Receipt,
		"order_another": s.OrderAnother,
	}
	for name, sel := range required {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if !strings.Contains(s.BodyRadio, "{value}") {
		return fmt.Errorf("body_radio must contain the {value} placeholder")
	}
	return nil
}

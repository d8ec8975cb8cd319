/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Configuration for goflowdroid. Resource locations (FlowDroid jar, Android
platform stubs, sources and sinks files), download URLs, scraping and storage options,
loaded through viper from flags, GOFLOWDROID_* environment variables and config files.
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gvieralopez/goflowdroid/pkg/logging"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of every environment override
	EnvPrefix = "GOFLOWDROID"

	DefaultAPKFolder     = "apks"
	DefaultAndroidFolder = "android-platforms-master"
	DefaultFlowDroidJar  = "soot-infoflow-cmd-2.9.0-jar-with-dependencies.jar"
	DefaultFlowDroidURL  = "https://github.com/secure-software-engineering/FlowDroid/releases/download/v2.9/" + DefaultFlowDroidJar
	DefaultAndroidURL    = "https://github.com/Sable/android-platforms/archive/master.zip"
	DefaultProvider      = "cubapk.com"
	DefaultUserAgent     = "Mozilla/5.0"

	// SourcesSinksFolder is the folder under Home holding sources and sinks files
	SourcesSinksFolder = "sources_sinks"
)

// FlowDroidConfig locates the analysis jar
type FlowDroidConfig struct {
	Jar string `mapstructure:"jar"`
	URL string `mapstructure:"url"`
}

// AndroidConfig locates the Android platform stubs
type AndroidConfig struct {
	Folder string `mapstructure:"folder"`
	URL    string `mapstructure:"url"`
}

// ScrapeConfig controls how APK catalogs are fetched
type ScrapeConfig struct {
	Browser  bool          `mapstructure:"browser"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxPages int           `mapstructure:"max_pages"` // 0 walks the whole catalog
}

// StoreConfig controls archival of logs and reports
type StoreConfig struct {
	Bucket   string `mapstructure:"bucket"` // gocloud blob URL, empty disables archival
	BasePath string `mapstructure:"base_path"`
}

// Config is the full goflowdroid configuration
type Config struct {
	Home      string          `mapstructure:"home"`
	APKDir    string          `mapstructure:"apk_dir"`
	Java      string          `mapstructure:"java"`
	Aapt      string          `mapstructure:"aapt"` // empty disables APK metadata lookup
	Timeout   time.Duration   `mapstructure:"timeout"`
	Provider  string          `mapstructure:"provider"`
	UserAgent string          `mapstructure:"user_agent"`
	FlowDroid FlowDroidConfig `mapstructure:"flowdroid"`
	Android   AndroidConfig   `mapstructure:"android"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
}

// LogConfig mirrors logging.LoggerConfig for viper decoding
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Dir      string `mapstructure:"dir"`
	MaxFiles int    `mapstructure:"max_files"`
	Colors   bool   `mapstructure:"colors"`
	Caller   bool   `mapstructure:"caller"`
}

// DefaultHome returns the default resource directory
func DefaultHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "goflowdroid")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "goflowdroid")
	}
	return filepath.Join(".", ".goflowdroid")
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Home:      DefaultHome(),
		APKDir:    DefaultAPKFolder,
		Java:      "java",
		Aapt:      "aapt",
		Provider:  DefaultProvider,
		UserAgent: DefaultUserAgent,
		FlowDroid: FlowDroidConfig{Jar: DefaultFlowDroidJar, URL: DefaultFlowDroidURL},
		Android:   AndroidConfig{Folder: DefaultAndroidFolder, URL: DefaultAndroidURL},
		Scrape:    ScrapeConfig{Timeout: 30 * time.Second},
		Log: LogConfig{
			Level:    string(logging.LogLevelInfo),
			Format:   string(logging.LogFormatCustom),
			MaxFiles: 10,
			Colors:   true,
		},
	}
}

// SetDefaults registers every default on v so that env variables and config
// files can override individual keys
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("home", d.Home)
	v.SetDefault("apk_dir", d.APKDir)
	v.SetDefault("java", d.Java)
	v.SetDefault("aapt", d.Aapt)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("provider", d.Provider)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("flowdroid.jar", d.FlowDroid.Jar)
	v.SetDefault("flowdroid.url", d.FlowDroid.URL)
	v.SetDefault("android.folder", d.Android.Folder)
	v.SetDefault("android.url", d.Android.URL)
	v.SetDefault("scrape.browser", d.Scrape.Browser)
	v.SetDefault("scrape.timeout", d.Scrape.Timeout)
	v.SetDefault("scrape.max_pages", d.Scrape.MaxPages)
	v.SetDefault("store.bucket", d.Store.Bucket)
	v.SetDefault("store.base_path", d.Store.BasePath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.max_files", d.Log.MaxFiles)
	v.SetDefault("log.colors", d.Log.Colors)
	v.SetDefault("log.caller", d.Log.Caller)
}

// Load reads the configuration from v, applying the config file named by
// the "config" key when present
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing values
func (c *Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("home must not be empty")
	}
	if c.FlowDroid.Jar == "" {
		return fmt.Errorf("flowdroid.jar must not be empty")
	}
	if c.Android.Folder == "" {
		return fmt.Errorf("android.folder must not be empty")
	}
	if c.Java == "" {
		return fmt.Errorf("java must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Scrape.MaxPages < 0 {
		return fmt.Errorf("scrape.max_pages must not be negative")
	}
	return c.Logger().Validate()
}

// FlowDroidPath is the location of the FlowDroid jar
func (c *Config) FlowDroidPath() string {
	return filepath.Join(c.Home, c.FlowDroid.Jar)
}

// AndroidPath is the location of the Android platforms folder
func (c *Config) AndroidPath() string {
	return filepath.Join(c.Home, c.Android.Folder)
}

// SourcesSinksDir is the folder holding the bundled sources and sinks files
func (c *Config) SourcesSinksDir() string {
	return filepath.Join(c.Home, SourcesSinksFolder)
}

// Logger converts the log section into a logging.LoggerConfig
func (c *Config) Logger() *logging.LoggerConfig {
	return &logging.LoggerConfig{
		Level:     logging.LogLevel(c.Log.Level),
		Format:    logging.LogFormat(c.Log.Format),
		OutputDir: c.Log.Dir,
		MaxFiles:  c.Log.MaxFiles,
		Timestamp: true,
		Caller:    c.Log.Caller,
		Colors:    c.Log.Colors,
	}
}

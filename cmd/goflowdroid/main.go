/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for goflowdroid. Installs FlowDroid and its Android
platforms, downloads APKs from catalog sites, runs FlowDroid over them and reports the
leaks it finds.
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gvieralopez/goflowdroid/cmd/goflowdroid/commands"
	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile string

	// Resources
	home         string
	apkDir       string
	java         string
	aapt         string
	timeout      time.Duration
	providerName string
	userAgent    string
	flowdroidJar string
	flowdroidURL string
	androidDir   string
	androidURL   string

	// Scraping
	browser       bool
	maxPages      int
	scrapeTimeout time.Duration

	// Storage
	storeBucket   string
	storeBasePath string

	// Logging configuration
	logLevel    string
	logFormat   string
	logDir      string
	logMaxFiles int
	logColors   bool
	logCaller   bool
)

// rootFlags maps each root persistent flag to the config key it sets
var rootFlags = map[string]string{
	"config":          "config",
	"home":            "home",
	"apk-dir":         "apk_dir",
	"java":            "java",
	"aapt":            "aapt",
	"timeout":         "timeout",
	"provider":        "provider",
	"user-agent":      "user_agent",
	"flowdroid-jar":   "flowdroid.jar",
	"flowdroid-url":   "flowdroid.url",
	"android-folder":  "android.folder",
	"android-url":     "android.url",
	"scrape-timeout":  "scrape.timeout",
	"store":           "store.bucket",
	"store-base-path": "store.base_path",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"log-dir":         "log.dir",
	"log-max-files":   "log.max_files",
	"log-colors":      "log.colors",
	"log-caller":      "log.caller",
}

// downloadFlags maps the download command flags to config keys
var downloadFlags = map[string]string{
	"browser":   "scrape.browser",
	"max-pages": "scrape.max_pages",
}

func main() {
	rootCmd := newRootCommand(viper.GetViper())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Execute root command
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCommand builds the command tree with its flags bound to v
func newRootCommand(v *viper.Viper) *cobra.Command {
	defaults := config.Default()

	// Create root command
	rootCmd := &cobra.Command{
		Use:   "goflowdroid",
		Short: "goflowdroid - FlowDroid leak analysis for APK corpora",
		Long: `goflowdroid runs the FlowDroid static taint analyzer over Android APKs and
summarizes the data leaks it reports. It installs FlowDroid and the Android platform
stubs, downloads APKs from public catalogs, and analyzes single APKs or whole folders.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Configuration file path")
	flags.StringVar(&home, "home", defaults.Home, "Directory holding FlowDroid, Android platforms and sources/sinks files")
	flags.StringVar(&apkDir, "apk-dir", defaults.APKDir, "Default APK folder")
	flags.StringVar(&java, "java", defaults.Java, "Java executable")
	flags.StringVar(&aapt, "aapt", defaults.Aapt, "aapt executable for APK metadata (empty disables)")
	flags.DurationVar(&timeout, "timeout", defaults.Timeout, "Maximum FlowDroid run time per APK (0 = unlimited)")
	flags.StringVar(&providerName, "provider", defaults.Provider, "Default APK provider")
	flags.StringVar(&userAgent, "user-agent", defaults.UserAgent, "User-Agent sent on every download")
	flags.StringVar(&flowdroidJar, "flowdroid-jar", defaults.FlowDroid.Jar, "FlowDroid jar file name under home")
	flags.StringVar(&flowdroidURL, "flowdroid-url", defaults.FlowDroid.URL, "FlowDroid jar download URL")
	flags.StringVar(&androidDir, "android-folder", defaults.Android.Folder, "Android platforms folder name under home")
	flags.StringVar(&androidURL, "android-url", defaults.Android.URL, "Android platforms archive URL")
	flags.DurationVar(&scrapeTimeout, "scrape-timeout", defaults.Scrape.Timeout, "Timeout of each catalog page fetch")
	flags.StringVar(&storeBucket, "store", "", "Bucket URL archiving logs and reports (file://, s3://, gs://)")
	flags.StringVar(&storeBasePath, "store-base-path", defaults.Store.BasePath, "Key prefix inside the store bucket")

	// Add logging-specific flags
	flags.StringVar(&logLevel, "log-level", defaults.Log.Level, "Logging level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", defaults.Log.Format, "Log format (text, json, custom)")
	flags.StringVar(&logDir, "log-dir", defaults.Log.Dir, "Log output directory (empty disables log files)")
	flags.IntVar(&logMaxFiles, "log-max-files", defaults.Log.MaxFiles, "Maximum number of log files to keep")
	flags.BoolVar(&logColors, "log-colors", defaults.Log.Colors, "Color log levels on terminals")
	flags.BoolVar(&logCaller, "log-caller", defaults.Log.Caller, "Include caller location in log lines")

	// Bind flags to viper
	for name, key := range rootFlags {
		v.BindPFlag(key, flags.Lookup(name))
	}

	// Add install command
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install FlowDroid, the Android platforms and the bundled sources/sinks",
		Long: `Download the FlowDroid jar and the Android platform stubs into the home directory,
write the bundled sources and sinks files and create the default APK folder.`,
		Args: cobra.NoArgs,
		RunE: commands.RunInstall,
	}
	installCmd.Flags().String("only", "", "Install a single component (flowdroid, android, sources-sinks, apk-folder)")
	rootCmd.AddCommand(installCmd)

	// Add analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze an APK or a folder of APKs with FlowDroid",
		Long: `Run FlowDroid on a single APK or on every APK below a folder (the default APK folder
when no path is given) and print how many leaks were found and in which APKs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: commands.RunAnalyze,
	}
	analyzeCmd.Flags().String("sources-sinks", "", "Sources and sinks file: a path, small.txt or large.txt (default small.txt)")
	analyzeCmd.Flags().Bool("save-logs", true, "Save raw FlowDroid logs next to each APK")
	analyzeCmd.Flags().String("report-dir", "", "Write JSON and HTML reports into this folder")
	rootCmd.AddCommand(analyzeCmd)

	// Add download command
	downloadCmd := &cobra.Command{
		Use:   "download <amount> <path> [provider]",
		Short: "Download APKs from a provider catalog",
		Long: `Download the first <amount> APKs listed by a provider into <path>. Unknown providers
fall back to ` + config.DefaultProvider + `.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: commands.RunDownload,
	}
	downloadCmd.Flags().Bool("force", false, "Download APKs that already exist again")
	downloadCmd.Flags().BoolVar(&browser, "browser", defaults.Scrape.Browser, "Render catalog pages in headless Chrome")
	downloadCmd.Flags().IntVar(&maxPages, "max-pages", defaults.Scrape.MaxPages, "Maximum catalog pages to scrape (0 = all)")
	for name, key := range downloadFlags {
		v.BindPFlag(key, downloadCmd.Flags().Lookup(name))
	}
	rootCmd.AddCommand(downloadCmd)

	// Add parse-logs command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "parse-logs <dir>",
		Short: "Count leaks in saved FlowDroid logs",
		Long:  `Read every .log file in a folder and report the leaks FlowDroid recorded in each.`,
		Args:  cobra.ExactArgs(1),
		RunE:  commands.RunParseLogs,
	})

	// Add check command for built-in self-checks
	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Perform built-in self-checks of the installation",
		Long: `Check that java is on PATH and that FlowDroid, the Android platforms, the sources
and sinks files and the APK folder are in place.`,
		Args: cobra.NoArgs,
		RunE: commands.PerformSelfCheck,
	})

	return rootCmd
}

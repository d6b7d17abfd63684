package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mfenderov/duyuru-watch/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	cfg       config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "duyuru-watch",
	Short: "Watch a court announcements page and notify about new entries",
	Long: `duyuru-watch polls the Ankara courthouse announcements page, keeps the last
known list in a snapshot store and sends unseen announcements to Telegram
or a webhook.

Commands:
  serve  Start the HTTP API (read, cron trigger, admin, Telegram webhook)
  check  Run one reconciliation cycle now
  list   Print the stored announcements
  reset  Clear the stored snapshot
  seed   Load sample announcements into the store
  mcp    Start the MCP server on stdio`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func initLogger() {
	level := slog.LevelWarn
	if logLevel != "" {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			level = slog.LevelWarn
		}
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// envBindings maps config keys to extra environment names accepted besides
// the DUYURU_ prefixed one. The extra names are the ones older deployments
// were configured with.
var envBindings = map[string][]string{
	"source.url":                     nil,
	"source.base_url":                nil,
	"source.timeout":                 nil,
	"source.max_attempts":            nil,
	"source.backoff":                 nil,
	"source.browser.enabled":         nil,
	"source.browser.remote_url":      nil,
	"store.backend":                  nil,
	"store.max_items":                nil,
	"store.redis.url":                {"REDIS_URL", "UPSTASH_REDIS_URL"},
	"store.redis.addr":               nil,
	"store.redis.password":           nil,
	"store.sqlite.path":              nil,
	"store.s3.endpoint":              nil,
	"store.s3.bucket":                nil,
	"store.s3.access_key_id":         nil,
	"store.s3.secret_access_key":     nil,
	"store.s3.use_ssl":               nil,
	"store.elasticsearch.index":      nil,
	"store.elasticsearch.username":   nil,
	"store.elasticsearch.password":   nil,
	"notify.telegram.token":          {"TG_TOKEN"},
	"notify.telegram.chat_id":        {"TG_CHAT_ID"},
	"notify.telegram.webhook_secret": nil,
	"notify.webhook.url":             nil,
	"notify.delay":                   nil,
	"reconcile.baseline_policy":      nil,
	"reconcile.store_read_policy":    nil,
	"reconcile.alert_on_failure":     nil,
	"server.addr":                    nil,
	"server.cron_secret":             {"CRON_SECRET"},
	"server.cycle_timeout":           nil,
}

func initConfig() {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/duyuru-watch")
		viper.AddConfigPath(".")
	}

	// DUYURU_STORE_REDIS_URL -> store.redis.url
	viper.SetEnvPrefix("DUYURU")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, legacy := range envBindings {
		names := append([]string{envName(key)}, legacy...)
		viper.BindEnv(append([]string{key}, names...)...)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	if addrs := os.Getenv("DUYURU_STORE_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Store.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
	if kw := os.Getenv("DUYURU_SOURCE_LINK_KEYWORDS"); kw != "" {
		cfg.Source.LinkKeywords = strings.Split(kw, ",")
	}
}

func envName(key string) string {
	return "DUYURU_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Source    Source    `mapstructure:"source"`
	Store     Store     `mapstructure:"store"`
	Notify    Notify    `mapstructure:"notify"`
	Reconcile Reconcile `mapstructure:"reconcile"`
	Server    Server    `mapstructure:"server"`
	MCP       MCP       `mapstructure:"mcp"`
}

// Source describes the monitored announcements page.
type Source struct {
	URL            string        `mapstructure:"url"`
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
	MinTitleLength int           `mapstructure:"min_title_length"`
	LinkKeywords   []string      `mapstructure:"link_keywords"`
	Browser        Browser       `mapstructure:"browser"`
}

// Browser configures the headless browser fallback used after HTTP retries fail.
type Browser struct {
	Enabled   bool          `mapstructure:"enabled"`
	RemoteURL string        `mapstructure:"remote_url"` // Empty = launch a local Chrome
	Stealth   bool          `mapstructure:"stealth"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Store selects and configures the snapshot store backend.
type Store struct {
	Backend       string        `mapstructure:"backend"` // memory, redis, sqlite, s3, elasticsearch
	MaxItems      int           `mapstructure:"max_items"`
	SnapshotKey   string        `mapstructure:"snapshot_key"`
	TimestampKey  string        `mapstructure:"timestamp_key"`
	Redis         Redis         `mapstructure:"redis"`
	SQLite        SQLite        `mapstructure:"sqlite"`
	S3            S3            `mapstructure:"s3"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
}

// Redis holds Redis connection configuration.
type Redis struct {
	URL      string `mapstructure:"url"` // redis:// or rediss:// URL, wins over Addr
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SQLite holds the SQLite database location.
type SQLite struct {
	Path string `mapstructure:"path"`
}

// S3 holds S3/MinIO storage configuration.
type S3 struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Notify configures outbound messaging.
type Notify struct {
	Telegram       Telegram      `mapstructure:"telegram"`
	Webhook        Webhook       `mapstructure:"webhook"`
	Delay          time.Duration `mapstructure:"delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ChatReplyCount int           `mapstructure:"chat_reply_count"`
	Messages       Messages      `mapstructure:"messages"`
}

// Telegram holds Telegram Bot API configuration.
type Telegram struct {
	Token         string `mapstructure:"token"`
	ChatID        string `mapstructure:"chat_id"`
	APIURL        string `mapstructure:"api_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// Webhook holds a generic JSON webhook target.
type Webhook struct {
	URL string `mapstructure:"url"`
}

// Messages holds the user-facing message texts.
type Messages struct {
	NewHeader  string `mapstructure:"new_header"`
	ListHeader string `mapstructure:"list_header"` // %d is replaced by the item count
	LinkText   string `mapstructure:"link_text"`
	Footer     string `mapstructure:"footer"`
	Empty      string `mapstructure:"empty"`
	Welcome    string `mapstructure:"welcome"`
	Help       string `mapstructure:"help"`
	Alert      string `mapstructure:"alert"`
}

// Reconcile holds the reconciliation policies.
type Reconcile struct {
	BaselinePolicy  string `mapstructure:"baseline_policy"`   // notify or silent
	StoreReadPolicy string `mapstructure:"store_read_policy"` // fail_closed or fail_open
	AlertOnFailure  bool   `mapstructure:"alert_on_failure"`
}

// Server holds HTTP server configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	CronSecret      string        `mapstructure:"cron_secret"` // Empty rejects every trigger call
	CycleTimeout    time.Duration `mapstructure:"cycle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Source: Source{
			URL:            "https://ankara.adalet.gov.tr/Arsiv/tumu",
			BaseURL:        "https://ankara.adalet.gov.tr",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7",
			Timeout:        15 * time.Second,
			MaxAttempts:    3,
			Backoff:        2 * time.Second,
			MinTitleLength: 5,
			LinkKeywords:   []string{"duyuru", "ilan", "arsiv", "haber"},
			Browser: Browser{
				Enabled: false, // Requires a Chrome binary or a remote DevTools URL
				Stealth: true,
				Timeout: 60 * time.Second,
			},
		},
		Store: Store{
			Backend:      "sqlite",
			MaxItems:     50,
			SnapshotKey:  "all_duyurular",
			TimestampKey: "last_check_timestamp",
			Redis: Redis{
				Addr: "localhost:6379",
			},
			SQLite: SQLite{
				Path: "duyuru-watch.db",
			},
			S3: S3{
				Endpoint:        "localhost:9000",
				Bucket:          "duyuru-watch",
				Prefix:          "snapshots",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
			Elasticsearch: Elasticsearch{
				Addresses: []string{"http://localhost:9200"},
				Index:     "duyuru-watch-state",
			},
		},
		Notify: Notify{
			Telegram: Telegram{
				APIURL: "https://api.telegram.org",
			},
			Delay:          500 * time.Millisecond,
			Timeout:        10 * time.Second,
			ChatReplyCount: 3,
			Messages: Messages{
				NewHeader:  "🆕 <b>YENİ DUYURU!</b>",
				ListHeader: "📋 <b>Son %d Duyuru</b>",
				LinkText:   "Duyuruyu Gör",
				Footer:     "#AnkaraAdliye #Duyuru",
				Empty:      "📋 Henüz duyuru bulunamadı.",
				Welcome:    "👋 Merhaba! Son Ankara Adliyesi duyurularını görmek için /duyuru yazın.",
				Help:       "Bilinmeyen komut. /start veya /duyuru kullanabilirsiniz.",
				Alert:      "⚠️ <b>Duyuru Kontrol Hatası</b>",
			},
		},
		Reconcile: Reconcile{
			BaselinePolicy:  "notify",
			StoreReadPolicy: "fail_closed",
			AlertOnFailure:  false,
		},
		Server: Server{
			Addr:            ":8080",
			CycleTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		MCP: MCP{
			Name:    "duyuru-watch",
			Version: "1.0.0",
		},
	}
}

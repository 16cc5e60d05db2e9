package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/socky-bot/socky/internal/biz/domain"
)

// Config represents application configuration
type Config struct {
	// Trigger store
	Store StoreConfig

	// Bot behavior
	Bot BotConfig

	// IRC transport
	IRC IRCConfig

	// Feishu transport
	Feishu FeishuConfig

	// Prometheus endpoint (optional)
	Metrics MetricsConfig

	// Canned reply texts (loaded from YAML)
	Replies *Replies

	// Debug mode
	Debug bool
}

// StoreConfig contains trigger store configuration
type StoreConfig struct {
	DBPath      string
	SearchLimit int
}

// BotConfig contains runtime defaults; persisted settings override them
type BotConfig struct {
	Admins        []string // bootstrap admins, never removable
	Interval      time.Duration
	QuietWindow   time.Duration
	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration
	ChunkLimit    int
	SendRate      float64 // outbound lines per second, 0 disables
	SendBurst     int
}

// IRCConfig contains IRC configuration
type IRCConfig struct {
	Server   string
	Port     int
	TLS      bool
	Nick     string
	Channels []string
	SASLUser string
	SASLPass string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Addr string // empty disables the endpoint
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("SOCKY_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".socky", "socky.db")
	}

	replies, err := LoadReplies(os.Getenv("SOCKY_REPLIES_PATH"))
	if err != nil {
		replies = DefaultReplies()
	}

	return &Config{
		Store: StoreConfig{
			DBPath:      dbPath,
			SearchLimit: envInt("SOCKY_SEARCH_LIMIT", 10),
		},
		Bot: BotConfig{
			Admins:        splitList(os.Getenv("SOCKY_ADMINS")),
			Interval:      envDuration("SOCKY_INTERVAL", domain.DefaultResponseInterval),
			QuietWindow:   envDuration("SOCKY_SHUTUP", domain.DefaultQuietWindow),
			ReplyDelayMin: envDuration("SOCKY_REPLY_DELAY_MIN", time.Second),
			ReplyDelayMax: envDuration("SOCKY_REPLY_DELAY_MAX", 4*time.Second),
			ChunkLimit:    envInt("SOCKY_CHUNK_LIMIT", 425),
			SendRate:      envFloat("SOCKY_SEND_RATE", 2),
			SendBurst:     envInt("SOCKY_SEND_BURST", 4),
		},
		IRC: IRCConfig{
			Server:   os.Getenv("IRC_SERVER"),
			Port:     envInt("IRC_PORT", 6667),
			TLS:      os.Getenv("IRC_TLS") == "true",
			Nick:     envString("IRC_NICK", "Socky"),
			Channels: splitList(os.Getenv("IRC_CHANNELS")),
			SASLUser: os.Getenv("IRC_SASL_USER"),
			SASLPass: os.Getenv("IRC_SASL_PASS"),
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("SOCKY_METRICS_ADDR"),
		},
		Replies: replies,
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

// Validate validates settings shared by every transport
func (c *Config) Validate() error {
	if c.Store.DBPath == "" {
		return &ConfigError{Field: "SOCKY_DB_PATH", Message: "required"}
	}
	if c.Store.SearchLimit <= 0 {
		return &ConfigError{Field: "SOCKY_SEARCH_LIMIT", Message: "must be positive"}
	}
	if c.Bot.ChunkLimit < 16 {
		return &ConfigError{Field: "SOCKY_CHUNK_LIMIT", Message: "must be at least 16"}
	}
	if c.Bot.Interval < 0 || c.Bot.QuietWindow < 0 {
		return &ConfigError{Field: "SOCKY_INTERVAL/SOCKY_SHUTUP", Message: "must not be negative"}
	}
	if c.Bot.ReplyDelayMin < 0 || c.Bot.ReplyDelayMax < c.Bot.ReplyDelayMin {
		return &ConfigError{Field: "SOCKY_REPLY_DELAY_MIN/SOCKY_REPLY_DELAY_MAX", Message: "need 0 <= min <= max"}
	}
	return nil
}

// ValidateIRC validates settings needed to run on IRC
func (c *Config) ValidateIRC() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.IRC.Server == "" {
		return &ConfigError{Field: "IRC_SERVER", Message: "required"}
	}
	if c.IRC.Port <= 0 || c.IRC.Port > 65535 {
		return &ConfigError{Field: "IRC_PORT", Message: "out of range"}
	}
	if c.IRC.Nick == "" {
		return &ConfigError{Field: "IRC_NICK", Message: "required"}
	}
	if c.IRC.SASLUser != "" && c.IRC.SASLPass == "" {
		return &ConfigError{Field: "IRC_SASL_PASS", Message: "required when IRC_SASL_USER is set"}
	}
	return nil
}

// ValidateFeishu validates settings needed to run on Feishu
func (c *Config) ValidateFeishu() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// envDuration accepts a Go duration ("1500ms") or whole seconds ("15")
func envDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return def
}

// splitList splits a comma separated value, dropping blanks
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

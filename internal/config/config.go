// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every startup knob. Values come from config.yaml (optional)
// and QUIZ_-prefixed environment variables, e.g. QUIZ_SERVER_ADDR or
// QUIZ_ROOMCLEANUP_ENABLED.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Content     ContentConfig     `mapstructure:"content"`
	RoomCleanup RoomCleanupConfig `mapstructure:"roomcleanup"`
	Autoplay    AutoplayConfig    `mapstructure:"autoplay"`
	Historian   HistorianConfig   `mapstructure:"historian"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// PublicBaseURL is what join links and QR codes point at.
	PublicBaseURL  string   `mapstructure:"publicbaseurl"`
	AllowedOrigins []string `mapstructure:"allowedorigins"`
}

// ContentConfig locates and seeds the content packs.
type ContentConfig struct {
	Dir    string `mapstructure:"dir"`
	Locale string `mapstructure:"locale"`
	// Seed fixes the content rng when non-zero; zero means time-seeded.
	Seed int64 `mapstructure:"seed"`
}

// RoomCleanupConfig tunes the janitor.
type RoomCleanupConfig struct {
	Enabled                        bool `mapstructure:"enabled"`
	CleanupIntervalSeconds         int  `mapstructure:"cleanupintervalseconds"`
	RoomWithoutHostTTLMinutes      int  `mapstructure:"roomwithouthostttlminutes"`
	DisconnectedPlayerGraceSeconds int  `mapstructure:"disconnectedplayergraceseconds"`
}

// AutoplayConfig tunes the bot driver.
type AutoplayConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	PollIntervalMs   int  `mapstructure:"pollintervalms"`
	MinActionDelayMs int  `mapstructure:"minactiondelayms"`
	MaxActionDelayMs int  `mapstructure:"maxactiondelayms"`
}

// HistorianConfig points the event log at its Redis queue.
type HistorianConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	RedisAddr string `mapstructure:"redisaddr"`
	RedisDB   int    `mapstructure:"redisdb"`
	QueueName string `mapstructure:"queuename"`
}

// Load reads configuration once at startup.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.publicbaseurl", "http://localhost:8080")
	v.SetDefault("server.allowedorigins", []string{"https://*", "http://*"})

	v.SetDefault("content.dir", "content")
	v.SetDefault("content.locale", "en")
	v.SetDefault("content.seed", int64(0))

	v.SetDefault("roomcleanup.enabled", true)
	v.SetDefault("roomcleanup.cleanupintervalseconds", 30)
	v.SetDefault("roomcleanup.roomwithouthostttlminutes", 10)
	v.SetDefault("roomcleanup.disconnectedplayergraceseconds", 120)

	v.SetDefault("autoplay.enabled", true)
	v.SetDefault("autoplay.pollintervalms", 250)
	v.SetDefault("autoplay.minactiondelayms", 800)
	v.SetDefault("autoplay.maxactiondelayms", 4000)

	v.SetDefault("historian.enabled", false)
	v.SetDefault("historian.redisaddr", "localhost:6379")
	v.SetDefault("historian.redisdb", 0)
	v.SetDefault("historian.queuename", "partyquiz_events")

	v.SetEnvPrefix("quiz")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// CleanupInterval returns the janitor tick period.
func (c RoomCleanupConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// HostTTL returns how long a hostless room survives.
func (c RoomCleanupConfig) HostTTL() time.Duration {
	return time.Duration(c.RoomWithoutHostTTLMinutes) * time.Minute
}

// PlayerGrace returns the disconnect grace period.
func (c RoomCleanupConfig) PlayerGrace() time.Duration {
	return time.Duration(c.DisconnectedPlayerGraceSeconds) * time.Second
}

// PollInterval returns the bot driver tick period.
func (c AutoplayConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MinActionDelay returns the lower bound of a bot's thinking time.
func (c AutoplayConfig) MinActionDelay() time.Duration {
	return time.Duration(c.MinActionDelayMs) * time.Millisecond
}

// MaxActionDelay returns the upper bound of a bot's thinking time.
func (c AutoplayConfig) MaxActionDelay() time.Duration {
	return time.Duration(c.MaxActionDelayMs) * time.Millisecond
}

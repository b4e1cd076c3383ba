// Package config loads the bot configuration from config.yml, with
// environment variables (prefix TRACKER_) taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration.
type Config struct {
	BotToken    string
	BotUsername string
	AdminID     int64
	// Public controls whether anyone may use the bot. When false, new users
	// wait in the approval queue until the admin enables them.
	Public bool

	CheckInterval    time.Duration
	UserDelay        time.Duration
	RetryDelay       time.Duration
	FailureThreshold int

	FetchTimeout time.Duration
	// Headers overrides the browser-like header set sent with page fetches.
	Headers map[string]string

	DataDir    string
	LogDir     string
	ListenAddr string

	// PostgresDSN enables the optional price-history sink when set.
	PostgresDSN string
}

// Load reads config.yml from dir and applies environment overrides.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("public", false)
	v.SetDefault("checkIntervalMinutes", 60)
	v.SetDefault("userDelaySeconds", 10)
	v.SetDefault("retryDelaySeconds", 6)
	v.SetDefault("failureThreshold", 5)
	v.SetDefault("fetchTimeoutSeconds", 30)
	v.SetDefault("dataDir", "userdata")
	v.SetDefault("logDir", "logs")
	v.SetDefault("listenAddr", ":8080")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// a missing file is fine as long as the environment fills the gaps
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		BotToken:         v.GetString("botToken"),
		BotUsername:      v.GetString("botUsername"),
		AdminID:          v.GetInt64("adminID"),
		Public:           v.GetBool("public"),
		CheckInterval:    time.Duration(v.GetInt("checkIntervalMinutes")) * time.Minute,
		UserDelay:        time.Duration(v.GetInt("userDelaySeconds")) * time.Second,
		RetryDelay:       time.Duration(v.GetInt("retryDelaySeconds")) * time.Second,
		FailureThreshold: v.GetInt("failureThreshold"),
		FetchTimeout:     time.Duration(v.GetInt("fetchTimeoutSeconds")) * time.Second,
		Headers:          v.GetStringMapString("headers"),
		DataDir:          v.GetString("dataDir"),
		LogDir:           v.GetString("logDir"),
		ListenAddr:       v.GetString("listenAddr"),
		PostgresDSN:      v.GetString("pgDSN"),
	}

	if cfg.BotToken == "" {
		return Config{}, errors.New("botToken must be set")
	}
	if cfg.AdminID == 0 {
		return Config{}, errors.New("adminID must be set")
	}
	if cfg.FailureThreshold <= 0 {
		return Config{}, errors.New("failureThreshold must be positive")
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"xui-sub-sync/internal/constants"
	apperrors "xui-sub-sync/internal/errors"
)

// Load loads the configuration from environment variables and an optional file
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		LogLevel: v.GetString("log_level"),
		Database: DatabaseConfig{
			Path:     strings.TrimSpace(v.GetString("database.path")),
			Timezone: strings.TrimSpace(v.GetString("database.timezone")),
		},
		Sync: SyncConfig{
			Enabled:          v.GetBool("sync.enabled"),
			Interval:         v.GetDuration("sync.interval"),
			HostTimeout:      v.GetDuration("sync.host_timeout"),
			MaxParallelHosts: v.GetInt("sync.max_parallel_hosts"),
		},
		Panel: PanelConfig{
			Timeout:         v.GetDuration("panel.timeout"),
			RetryCount:      v.GetInt("panel.retry_count"),
			InsecureTLS:     v.GetBool("panel.insecure_tls"),
			InboundCacheTTL: v.GetDuration("panel.inbound_cache_ttl"),
		},
		Subscription: SubscriptionConfig{
			Name:                strings.TrimSpace(v.GetString("subscription.name")),
			LiveSync:            v.GetBool("subscription.live_sync"),
			LiveTimeout:         v.GetDuration("subscription.live_timeout"),
			PublicURL:           strings.TrimRight(strings.TrimSpace(v.GetString("subscription.public_url")), "/"),
			UpdateIntervalHours: v.GetInt("subscription.update_interval_hours"),
		},
		Server: ServerConfig{
			ListenAddr: v.GetString("server.listen_addr"),
		},
		Telegram: TelegramConfig{
			Token:  strings.TrimSpace(v.GetString("telegram.token")),
			APIURL: strings.TrimRight(strings.TrimSpace(v.GetString("telegram.api_url")), "/"),
		},
		XTLS: XTLSConfig{
			VisionOverTLS: v.GetBool("xtls.vision_over_tls"),
		},
	}

	adminIDs, err := parseAdminIDs(adminIDsValue(v))
	if err != nil {
		return nil, err
	}
	cfg.Telegram.AdminIDs = adminIDs

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("database.path", constants.DefaultDBPath)
	v.SetDefault("database.timezone", "")
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", constants.DefaultSyncInterval*time.Second)
	v.SetDefault("sync.host_timeout", constants.DefaultHostTimeout*time.Second)
	v.SetDefault("sync.max_parallel_hosts", constants.DefaultMaxParallelHosts)
	v.SetDefault("panel.timeout", constants.DefaultTimeout*time.Second)
	v.SetDefault("panel.retry_count", constants.DefaultRetryCount)
	v.SetDefault("panel.insecure_tls", true)
	v.SetDefault("panel.inbound_cache_ttl", constants.DefaultInboundTTL*time.Second)
	v.SetDefault("subscription.name", constants.DefaultSubscriptionName)
	v.SetDefault("subscription.live_sync", false)
	v.SetDefault("subscription.live_timeout", constants.DefaultLiveTimeout*time.Second)
	v.SetDefault("subscription.update_interval_hours", constants.DefaultUpdateIntervalHours)
	v.SetDefault("server.listen_addr", constants.DefaultListenAddr)
	v.SetDefault("telegram.admin_ids", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_url", "")
	v.SetDefault("subscription.public_url", "")
	v.SetDefault("xtls.vision_over_tls", false)
}

// adminIDsValue flattens admin_ids given either as an env string or a config file list
func adminIDsValue(v *viper.Viper) string {
	if list, ok := v.Get("telegram.admin_ids").([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	}
	return v.GetString("telegram.admin_ids")
}

// parseAdminIDs parses a comma separated list of Telegram chat ids
func parseAdminIDs(raw string) ([]int64, error) {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil, nil
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		var id int64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &id); err != nil {
			return nil, &apperrors.ConfigError{Section: "telegram", Message: fmt.Sprintf("invalid admin id %q", part)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Database.Path == "" {
		return &apperrors.ConfigError{Section: "database", Message: "path is required"}
	}
	if cfg.Database.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Database.Timezone); err != nil {
			return &apperrors.ConfigError{Section: "database", Message: fmt.Sprintf("unknown timezone %q", cfg.Database.Timezone)}
		}
	}

	if cfg.Sync.Interval <= 0 {
		return &apperrors.ConfigError{Section: "sync", Message: "interval must be positive"}
	}
	if cfg.Sync.HostTimeout <= 0 {
		return &apperrors.ConfigError{Section: "sync", Message: "host_timeout must be positive"}
	}
	if cfg.Sync.MaxParallelHosts < 1 {
		return &apperrors.ConfigError{Section: "sync", Message: "max_parallel_hosts must be at least 1"}
	}

	if cfg.Panel.Timeout <= 0 {
		return &apperrors.ConfigError{Section: "panel", Message: "timeout must be positive"}
	}
	if cfg.Panel.RetryCount < 0 {
		return &apperrors.ConfigError{Section: "panel", Message: "retry_count cannot be negative"}
	}

	if cfg.Subscription.LiveSync && cfg.Subscription.LiveTimeout <= 0 {
		return &apperrors.ConfigError{Section: "subscription", Message: "live_timeout must be positive when live_sync is on"}
	}

	if cfg.Telegram.Token != "" && len(cfg.Telegram.AdminIDs) == 0 {
		return &apperrors.ConfigError{Section: "telegram", Message: "admin_ids is required when token is set"}
	}

	return nil
}

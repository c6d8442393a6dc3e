package config

import "time"

// Config represents the application configuration
type Config struct {
	LogLevel     string             `mapstructure:"log_level"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Panel        PanelConfig        `mapstructure:"panel"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Server       ServerConfig       `mapstructure:"server"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	XTLS         XTLSConfig         `mapstructure:"xtls"`
}

// DatabaseConfig holds the key store location
type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	Timezone string `mapstructure:"timezone"`
}

// SyncConfig controls the reconciliation scheduler
type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	HostTimeout      time.Duration `mapstructure:"host_timeout"`
	MaxParallelHosts int           `mapstructure:"max_parallel_hosts"`
}

// PanelConfig holds the HTTP client settings used for every panel
type PanelConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	InsecureTLS     bool          `mapstructure:"insecure_tls"`
	InboundCacheTTL time.Duration `mapstructure:"inbound_cache_ttl"`
}

// SubscriptionConfig controls feed delivery
type SubscriptionConfig struct {
	Name                string        `mapstructure:"name"`
	LiveSync            bool          `mapstructure:"live_sync"`
	LiveTimeout         time.Duration `mapstructure:"live_timeout"`
	PublicURL           string        `mapstructure:"public_url"`
	UpdateIntervalHours int           `mapstructure:"update_interval_hours"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TelegramConfig holds the admin report bot configuration
type TelegramConfig struct {
	Token    string  `mapstructure:"token"`
	APIURL   string  `mapstructure:"api_url"`
	AdminIDs []int64 `mapstructure:"admin_ids"`
}

// XTLSConfig extends the transport flag policy
type XTLSConfig struct {
	VisionOverTLS bool `mapstructure:"vision_over_tls"`
}

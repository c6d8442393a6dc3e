package constants

import "time"

const (
	// Flow constants
	FlowVision = "xtls-rprx-vision"

	// Sync constants
	DefaultSyncInterval     = 300 // seconds
	DefaultHostTimeout      = 20  // seconds
	DefaultMaxParallelHosts = 4
	DefaultReportTimeout    = 30 // seconds

	// Network constants
	DefaultTimeout          = 15
	DefaultRetryCount       = 2
	DefaultRetryWaitTime    = 1
	DefaultRetryMaxWaitTime = 5

	// Panel API paths
	LoginPath        = "/login"
	InboundsListPath = "/panel/api/inbounds/list"
	UpdateClientPath = "/panel/api/inbounds/updateClient/%s"

	// Cache constants
	CacheExpiration      = 30 // minutes
	CacheCleanupInterval = 10 // minutes
	SessionCacheKey      = "session"
	DefaultInboundTTL    = 30 // seconds

	// Subscription constants
	DefaultSubscriptionName    = "VPN"
	DefaultUpdateIntervalHours = 12
	DefaultLiveTimeout         = 5 // seconds

	// Server constants
	DefaultListenAddr = ":1488"
	DefaultDBPath     = "users.db"

	// Formatting constants
	TimestampFormat = "2006-01-02 15:04:05"
	DateFormat      = "2006-01-02"
)

// StoreLocation is the zone naive timestamps in the key store are written in.
var StoreLocation = time.FixedZone("MSK", 3*60*60)

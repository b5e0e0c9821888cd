package constants

import "time"

const (
	StatsCacheTTL     = 10 * time.Minute
	FetchDelay        = 10 * time.Millisecond
	StatsKeyPrefix    = "gwent-profile-helper:"
	StatsCacheVersion = 2
)

const (
	DefaultUpstreamHost  = "www.playgwent.com"
	DefaultLocale        = "en"
	DefaultWatchSchedule = "@every 1m"
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 2 * time.Minute
)

const (
	UpstreamRPS              = 5
	BreakerFailureThreshold  = 5
	BreakerOpenTimeout       = 30 * time.Second
	UpstreamMaxConnsPerHost  = 16
	UpstreamMaxIdleConnDur   = 1 * time.Minute
	UpstreamMaxResponseBytes = 8 << 20
	UpstreamMaxRedirects     = 5
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

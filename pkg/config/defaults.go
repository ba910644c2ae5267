package config

import "time"

const (
	StoreDriverMongo  = "mongo"
	StoreDriverSQLite = "sqlite"

	DefaultStoreDriver       = StoreDriverMongo
	DefaultMongoURI          = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabaseName = "bureau"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultSQLitePath        = "bureau.db"

	DefaultPort = "8080"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 35 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultBusinessTimezone = "UTC"
	DefaultPhoneRegion      = "US"

	DefaultCalendarBaseURL      = "https://graph.microsoft.com/v1.0"
	DefaultCalendarCallTimeout  = 8 * time.Second
	MinCalendarCallTimeout      = 5 * time.Second
	MaxCalendarCallTimeout      = 10 * time.Second
	DefaultCalendarRateLimitRPS = 20
	DefaultCalendarMaxParallel  = 4
	DefaultCalendarSyncTimeout  = 15 * time.Second

	DefaultEventPublishTimeout = 10 * time.Second

	DefaultOAuthTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	DefaultOAuthScopes   = "offline_access,Calendars.ReadWrite,Calendars.Read.Shared"

	DefaultRedisDB             = 0
	DefaultTokenRefreshLockTTL = 15 * time.Second
)

package config

const (
	EnvStoreDriver       = "STORE_DRIVER"
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvSQLitePath        = "SQLITE_PATH"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests  = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow    = "RATE_LIMIT_WINDOW"
	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvBusinessTimezone = "BUSINESS_TIMEZONE"
	EnvPhoneRegion      = "PHONE_REGION"

	EnvCalendarBaseURL      = "CALENDAR_BASE_URL"
	EnvCalendarCallTimeout  = "CALENDAR_CALL_TIMEOUT"
	EnvCalendarRateLimitRPS = "CALENDAR_RATE_LIMIT_RPS"
	EnvCalendarMaxParallel  = "CALENDAR_MAX_PARALLEL"
	EnvCalendarSyncTimeout  = "CALENDAR_SYNC_TIMEOUT"

	EnvEventPublishTimeout = "EVENT_PUBLISH_TIMEOUT"

	EnvOAuthClientID     = "OAUTH_CLIENT_ID"
	EnvOAuthClientSecret = "OAUTH_CLIENT_SECRET"
	EnvOAuthTokenURL     = "OAUTH_TOKEN_URL"
	EnvOAuthScopes       = "OAUTH_SCOPES"

	EnvCredentialSealingKey = "CREDENTIAL_SEALING_KEY"

	EnvRedisAddr           = "REDIS_ADDR"
	EnvRedisPassword       = "REDIS_PASSWORD"
	EnvRedisDB             = "REDIS_DB"
	EnvTokenRefreshLockTTL = "TOKEN_REFRESH_LOCK_TTL"
)

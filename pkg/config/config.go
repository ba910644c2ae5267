package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bureau/pkg/client"
	kafka_config "bureau/pkg/kafka/config"
	"bureau/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	StoreDriver       string
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	SQLitePath        string

	Port string

	RateLimitRequests  int
	RateLimitWindow    time.Duration
	CORSAllowedOrigins []string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BusinessTimezone string
	Location         *time.Location
	PhoneRegion      string

	CalendarBaseURL      string
	CalendarCallTimeout  time.Duration
	CalendarRateLimitRPS int
	CalendarMaxParallel  int
	CalendarSyncTimeout  time.Duration

	EventPublishTimeout time.Duration

	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthScopes       []string

	CredentialSealingKey string

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	TokenRefreshLockTTL time.Duration

	Kafka *kafka_config.Config

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the environment, and exits on an
// invalid configuration.
func Load(serviceName string) *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env file: %v\n", err)
	}

	cfg := fromEnv(serviceName)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.Kafka = kafkaCfg

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func fromEnv(serviceName string) *Config {
	cfg := &Config{
		StoreDriver:       strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver)),
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		SQLitePath:        getEnvStr(EnvSQLitePath, DefaultSQLitePath),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests:  getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:    getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),
		CORSAllowedOrigins: getEnvList(EnvCORSAllowedOrigins, ""),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		BusinessTimezone: getEnvStr(EnvBusinessTimezone, DefaultBusinessTimezone),
		PhoneRegion:      getEnvStr(EnvPhoneRegion, DefaultPhoneRegion),

		CalendarBaseURL:      strings.TrimRight(getEnvStr(EnvCalendarBaseURL, DefaultCalendarBaseURL), "/"),
		CalendarCallTimeout:  getEnvDuration(EnvCalendarCallTimeout, DefaultCalendarCallTimeout),
		CalendarRateLimitRPS: getEnvNum(EnvCalendarRateLimitRPS, DefaultCalendarRateLimitRPS),
		CalendarMaxParallel:  getEnvNum(EnvCalendarMaxParallel, DefaultCalendarMaxParallel),
		CalendarSyncTimeout:  getEnvDuration(EnvCalendarSyncTimeout, DefaultCalendarSyncTimeout),

		EventPublishTimeout: getEnvDuration(EnvEventPublishTimeout, DefaultEventPublishTimeout),

		OAuthClientID:     getEnvStr(EnvOAuthClientID, ""),
		OAuthClientSecret: getEnvStr(EnvOAuthClientSecret, ""),
		OAuthTokenURL:     getEnvStr(EnvOAuthTokenURL, DefaultOAuthTokenURL),
		OAuthScopes:       getEnvList(EnvOAuthScopes, DefaultOAuthScopes),

		CredentialSealingKey: getEnvStr(EnvCredentialSealingKey, ""),

		RedisAddr:           getEnvStr(EnvRedisAddr, ""),
		RedisPassword:       getEnvStr(EnvRedisPassword, ""),
		RedisDB:             getEnvNum(EnvRedisDB, DefaultRedisDB),
		TokenRefreshLockTTL: getEnvDuration(EnvTokenRefreshLockTTL, DefaultTokenRefreshLockTTL),

		Kafka: &kafka_config.Config{},

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if loc, err := time.LoadLocation(cfg.BusinessTimezone); err == nil {
		cfg.Location = loc
	}
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetSQLite() {
	cfg.Client.SetSQLite(cfg.Log, cfg.SQLitePath)
}

// SetStore connects the backend selected by StoreDriver.
func (cfg *Config) SetStore() {
	if cfg.StoreDriver == StoreDriverSQLite {
		cfg.SetSQLite()
		return
	}
	cfg.SetMongo()
}

// SetRedis connects Redis when an address is configured.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		cfg.Log.Info("Redis not configured, token refresh locks are process local")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreDriver {
	case StoreDriverMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreDriverSQLite:
		if cfg.SQLitePath == "" {
			errors = append(errors, "SQLitePath cannot be empty")
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of [mongo, sqlite], got: %s", cfg.StoreDriver))
	}

	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("BusinessTimezone must be a valid IANA zone, got: %s", cfg.BusinessTimezone))
	}

	if cfg.CalendarCallTimeout < MinCalendarCallTimeout || cfg.CalendarCallTimeout > MaxCalendarCallTimeout {
		errors = append(errors, fmt.Sprintf("CalendarCallTimeout must be between %s and %s, got: %s", MinCalendarCallTimeout, MaxCalendarCallTimeout, cfg.CalendarCallTimeout))
	}
	if !strings.HasPrefix(cfg.CalendarBaseURL, "https://") && !strings.HasPrefix(cfg.CalendarBaseURL, "http://") {
		errors = append(errors, fmt.Sprintf("CalendarBaseURL must be an http(s) URL, got: %s", cfg.CalendarBaseURL))
	}
	if cfg.CalendarRateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("CalendarRateLimitRPS must be positive, got: %d", cfg.CalendarRateLimitRPS))
	}
	if cfg.CalendarMaxParallel <= 0 {
		errors = append(errors, fmt.Sprintf("CalendarMaxParallel must be positive, got: %d", cfg.CalendarMaxParallel))
	}
	if cfg.CalendarSyncTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("CalendarSyncTimeout must be positive, got: %s", cfg.CalendarSyncTimeout))
	}
	if cfg.OAuthClientSecret != "" && cfg.OAuthClientID == "" {
		errors = append(errors, "OAuthClientID is required when OAuthClientSecret is set")
	}
	if cfg.RedisAddr != "" && cfg.TokenRefreshLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("TokenRefreshLockTTL must be positive, got: %s", cfg.TokenRefreshLockTTL))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"sqlite_path", cfg.SQLitePath,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"business_timezone", cfg.BusinessTimezone,
		"calendar_base_url", cfg.CalendarBaseURL,
		"calendar_call_timeout", cfg.CalendarCallTimeout,
		"calendar_rate_limit_rps", cfg.CalendarRateLimitRPS,
		"calendar_max_parallel", cfg.CalendarMaxParallel,
		"calendar_sync_timeout", cfg.CalendarSyncTimeout,
		"event_publish_timeout", cfg.EventPublishTimeout,
		"oauth_client_set", cfg.OAuthClientID != "",
		"credential_sealing_enabled", cfg.CredentialSealingKey != "",
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.Kafka.Brokers,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(getEnvStr(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

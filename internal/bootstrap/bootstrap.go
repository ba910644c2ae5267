// Package bootstrap builds the shared runtime pieces every binary needs from
// a loaded config.
package bootstrap

import (
	"context"
	"fmt"

	"bureau/internal/calendar"
	"bureau/internal/intervals"
	"bureau/internal/intervals/mongostore"
	"bureau/internal/intervals/sqlstore"
	mongoMigration "bureau/internal/migrations/mongo"
	"bureau/pkg/config"
	"bureau/pkg/sealer"

	"golang.org/x/oauth2"
)

// Backend connects the configured store and brings its schema up to date.
func Backend(ctx context.Context, cfg *config.Config) (intervals.Backend, error) {
	s, err := sealer.New(cfg.CredentialSealingKey)
	if err != nil {
		return nil, fmt.Errorf("credential sealer: %w", err)
	}
	if s == nil {
		cfg.Log.Warn("CREDENTIAL_SEALING_KEY not set, calendar credentials are stored in plain text")
	}

	cfg.SetStore()

	if cfg.StoreDriver == config.StoreDriverSQLite {
		store := sqlstore.New(cfg.Client.SQLite, s)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("sqlite migration: %w", err)
		}
		return store, nil
	}

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		return nil, fmt.Errorf("mongo migration: %w", err)
	}
	return mongostore.New(db, s, mongostore.Options{}), nil
}

// OAuth returns nil when no client is configured; tokens then cannot be
// refreshed and expire with their advisors' access.
func OAuth(cfg *config.Config) *oauth2.Config {
	if cfg.OAuthClientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.OAuthTokenURL},
		Scopes:       cfg.OAuthScopes,
	}
}

// Calendar builds the remote calendar gateway over creds. Token refreshes
// are serialized across processes when Redis is configured.
func Calendar(cfg *config.Config, creds intervals.CredentialStore) *calendar.Gateway {
	cfg.SetRedis()

	var locker calendar.RefreshLocker = calendar.NoopLocker{}
	if cfg.Client.Redis != nil {
		locker = calendar.NewRedisLocker(cfg.Client.Redis, cfg.TokenRefreshLockTTL)
	}

	tokens := calendar.NewTokenManager(creds, OAuth(cfg), locker, cfg.Log)
	return calendar.New(calendar.Options{
		BaseURL:      cfg.CalendarBaseURL,
		CallTimeout:  cfg.CalendarCallTimeout,
		RateLimitRPS: float64(cfg.CalendarRateLimitRPS),
		MaxParallel:  cfg.CalendarMaxParallel,
	}, tokens, cfg.Log)
}

package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bureau/internal/intervals"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// expirySkew renews tokens slightly before the provider would reject them.
const expirySkew = time.Minute

// TokenManager hands out bearer tokens per advisor and renews them.
//
// Refreshes for one advisor are collapsed by a singleflight group inside the
// process and serialized across processes by the RefreshLocker. After the
// lock is taken the credential is reloaded, so a caller that waited on
// another refresh reuses its result instead of spending the refresh token
// again.
type TokenManager struct {
	store  intervals.CredentialStore
	oauth  *oauth2.Config
	locker RefreshLocker
	group  singleflight.Group
	now    func() time.Time
	log    *logger.Logger
}

// NewTokenManager builds a manager. oauth may be nil, in which case expired
// credentials fail with ErrRefreshUnavailable; locker may be nil for a
// single process.
func NewTokenManager(store intervals.CredentialStore, oauth *oauth2.Config, locker RefreshLocker, log *logger.Logger) *TokenManager {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &TokenManager{
		store:  store,
		oauth:  oauth,
		locker: locker,
		now:    time.Now,
		log:    log,
	}
}

func (m *TokenManager) usable(c *model.Credential) bool {
	return !c.Expired(m.now().Add(expirySkew))
}

func (m *TokenManager) load(ctx context.Context, advisorID string) (*model.Credential, error) {
	c, err := m.store.Credential(ctx, advisorID)
	if errors.Is(err, intervals.ErrNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return c, nil
}

// AccessToken returns a token valid for at least expirySkew.
func (m *TokenManager) AccessToken(ctx context.Context, advisorID string) (string, error) {
	c, err := m.load(ctx, advisorID)
	if err != nil {
		return "", err
	}
	if m.usable(c) {
		return c.AccessToken, nil
	}
	return m.Refresh(ctx, advisorID, c.AccessToken)
}

// Refresh renews the credential unless someone already replaced stale.
func (m *TokenManager) Refresh(ctx context.Context, advisorID, stale string) (string, error) {
	v, err, shared := m.group.Do(advisorID, func() (any, error) {
		return m.refresh(ctx, advisorID, stale)
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.log.Debug("Shared in-flight token refresh", "advisor_id", advisorID)
	}
	return v.(string), nil
}

func (m *TokenManager) refresh(ctx context.Context, advisorID, stale string) (string, error) {
	unlock, err := m.locker.Lock(ctx, advisorID)
	if err != nil {
		return "", fmt.Errorf("failed to take refresh lock: %w", err)
	}
	defer unlock()

	c, err := m.load(ctx, advisorID)
	if err != nil {
		return "", err
	}
	if c.AccessToken != stale && m.usable(c) {
		return c.AccessToken, nil
	}
	if m.oauth == nil || c.RefreshToken == "" {
		return "", ErrRefreshUnavailable
	}

	expired := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       m.now().Add(-time.Hour),
	}
	tok, err := m.oauth.TokenSource(ctx, expired).Token()
	if err != nil {
		m.log.Warn("Calendar token refresh failed", "advisor_id", advisorID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}

	renewed := model.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = c.RefreshToken
	}
	if renewed.ExpiresAt.IsZero() {
		renewed.ExpiresAt = m.now().Add(time.Hour)
	}
	if err := m.store.SaveCredential(ctx, advisorID, renewed); err != nil {
		return "", fmt.Errorf("failed to save refreshed credential: %w", err)
	}

	m.log.Info("Calendar token refreshed", "advisor_id", advisorID, "expires_at", renewed.ExpiresAt)
	return renewed.AccessToken, nil
}

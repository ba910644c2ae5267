package intervals

import (
	"fmt"

	"bureau/pkg/model"
	"bureau/pkg/sealer"
)

// SealCredential encrypts both tokens. A nil sealer stores them as given.
func SealCredential(s *sealer.Sealer, c model.Credential) (model.Credential, error) {
	access, err := s.Seal(c.AccessToken)
	if err != nil {
		return c, fmt.Errorf("failed to seal access token: %w", err)
	}
	refresh, err := s.Seal(c.RefreshToken)
	if err != nil {
		return c, fmt.Errorf("failed to seal refresh token: %w", err)
	}
	c.AccessToken, c.RefreshToken = access, refresh
	return c, nil
}

func OpenCredential(s *sealer.Sealer, c model.Credential) (model.Credential, error) {
	access, err := s.Open(c.AccessToken)
	if err != nil {
		return c, fmt.Errorf("failed to open access token: %w", err)
	}
	refresh, err := s.Open(c.RefreshToken)
	if err != nil {
		return c, fmt.Errorf("failed to open refresh token: %w", err)
	}
	c.AccessToken, c.RefreshToken = access, refresh
	return c, nil
}

package model

import "time"

// Credential is an opaque renewable delegated access grant.
type Credential struct {
	AccessToken  string    `json:"-" bson:"access_token"`
	RefreshToken string    `json:"-" bson:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" bson:"expires_at"`
}

func (c *Credential) Expired(now time.Time) bool {
	return c == nil || c.AccessToken == "" || !now.Before(c.ExpiresAt)
}

package domain

import "time"

// OAuthConnection stores per (user, provider) tokens. Access and refresh
// tokens never leave the API process; only the status projection is served.
type OAuthConnection struct {
	ID             string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID         string    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_provider"`
	Provider       string    `json:"provider" gorm:"type:varchar(64);not null;uniqueIndex:idx_user_provider"`
	AccessToken    string    `json:"-" gorm:"type:text;not null"`
	RefreshToken   string    `json:"-" gorm:"type:text"`
	Expiry         time.Time `json:"-"`
	Scope          string    `json:"-" gorm:"type:text"`
	ConnectedEmail string    `json:"connected_email" gorm:"type:varchar(255)"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for OAuthConnection
func (OAuthConnection) TableName() string {
	return "oauth_connections"
}

// OAuthProviderGoogle is the single supported identity provider.
const OAuthProviderGoogle = "google"

// OAuthStatus is the frontend-safe projection of a connection.
type OAuthStatus struct {
	Provider       string `json:"provider"`
	Connected      bool   `json:"connected"`
	ConnectedEmail string `json:"connected_email,omitempty"`
}

// Expired reports whether the access token needs a refresh before use.
func (c *OAuthConnection) Expired() bool {
	if c.Expiry.IsZero() {
		return false
	}
	// Refresh slightly early so in-flight requests don't race expiry.
	return time.Now().After(c.Expiry.Add(-30 * time.Second))
}

package models

import (
	"net/url"
	"slices"
	"time"

	id "stride/pkg/domain"
)

// Client is a registered OAuth client. SecretHash is a bcrypt digest and is
// never serialized.
type Client struct {
	ID           id.ClientID `json:"id"`
	ClientID     string      `json:"client_id"`
	SecretHash   string      `json:"-"`
	RedirectURIs []string    `json:"redirect_uris,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// AllowsRedirect reports whether uri may receive codes for this client.
// Clients that registered no URIs accept any absolute URL.
func (c *Client) AllowsRedirect(uri string) bool {
	if len(c.RedirectURIs) == 0 {
		return true
	}
	return slices.Contains(c.RedirectURIs, uri)
}

// Athlete is the resource owner.
type Athlete struct {
	ID           id.AthleteID `json:"id"`
	UserName     string       `json:"user_name"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AuthorizationCode is a single-use capability binding one client, one
// athlete and one redirect target.
type AuthorizationCode struct {
	Code        string
	ClientID    id.ClientID
	AthleteID   id.AthleteID
	RedirectURI string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsExpired reports whether the code is older than ttl at now. A zero ttl
// disables expiry.
func (c *AuthorizationCode) IsExpired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.After(c.CreatedAt.Add(ttl))
}

// BoundTo reports whether the code was issued to clientID for redirectURI.
func (c *AuthorizationCode) BoundTo(clientID id.ClientID, redirectURI string) bool {
	return c.ClientID == clientID && c.RedirectURI == redirectURI
}

// AccessToken is an opaque bearer credential. AthleteID is nil for tokens
// minted by the client-credentials grant.
type AccessToken struct {
	Token     string
	ClientID  id.ClientID
	AthleteID *id.AthleteID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoginSession backs the session cookie that gates the authorization
// endpoints.
type LoginSession struct {
	ID        id.SessionID `json:"id"`
	AthleteID id.AthleteID `json:"athlete_id"`
	Device    string       `json:"device,omitempty"`
	IP        string       `json:"ip,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (s *LoginSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsAbsoluteURL reports whether raw parses as an absolute URL with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != "" && u.Fragment == ""
}

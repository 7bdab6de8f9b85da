package auth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim keys written into every session token.
const (
	ClaimUserID    = "id"
	ClaimAuthToken = "auth_token"
	ClaimIssuer    = "iss"
	ClaimExpiresAt = "exp"
	ClaimIssuedAt  = "iat"
	ClaimIP        = "ip"
	ClaimUserAgent = "user_agent"
)

// Claims is the typed view of a session token payload
type Claims struct {
	// UserID and AuthToken live under the namespace object.
	UserID    string
	AuthToken string

	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time

	// IP and UserAgent are only present when request binding is enabled.
	IP        string
	UserAgent string
}

// Map renders the claims in wire form under namespace
func (c *Claims) Map(namespace string) map[string]any {
	out := map[string]any{
		namespace: map[string]any{
			ClaimUserID:    c.UserID,
			ClaimAuthToken: c.AuthToken,
		},
	}
	if !c.ExpiresAt.IsZero() {
		out[ClaimExpiresAt] = c.ExpiresAt.Unix()
	}
	if !c.IssuedAt.IsZero() {
		out[ClaimIssuedAt] = c.IssuedAt.Unix()
	}
	if c.Issuer != "" {
		out[ClaimIssuer] = c.Issuer
	}
	if c.IP != "" {
		out[ClaimIP] = c.IP
	}
	if c.UserAgent != "" {
		out[ClaimUserAgent] = c.UserAgent
	}
	return out
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	return c.ExpiresAt
}

// ParseClaims builds typed claims from a decoded payload. The payload must
// pass ValidPayload.
func ParseClaims(raw map[string]any, namespace string) (*Claims, error) {
	if !ValidPayload(raw, namespace) {
		return nil, ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"namespace": namespace,
		})
	}

	ns := raw[namespace].(map[string]any)
	c := &Claims{
		UserID:    stringClaim(ns, ClaimUserID),
		AuthToken: stringClaim(ns, ClaimAuthToken),
		Issuer:    stringClaim(raw, ClaimIssuer),
		IP:        stringClaim(raw, ClaimIP),
		UserAgent: stringClaim(raw, ClaimUserAgent),
	}
	if t, ok := timeClaim(raw[ClaimExpiresAt]); ok {
		c.ExpiresAt = t
	}
	if t, ok := timeClaim(raw[ClaimIssuedAt]); ok {
		c.IssuedAt = t
	}
	return c, nil
}

// ValidPayload reports whether raw carries a namespace object with a
// non empty auth_token. It does not check signatures or expiry.
func ValidPayload(raw map[string]any, namespace string) bool {
	if raw == nil {
		return false
	}
	ns, ok := raw[namespace].(map[string]any)
	if !ok {
		return false
	}
	return strings.TrimSpace(stringClaim(ns, ClaimAuthToken)) != ""
}

func stringClaim(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

func timeClaim(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case *jwt.NumericDate:
		if t == nil {
			return time.Time{}, false
		}
		return t.Time, true
	case jwt.NumericDate:
		return t.Time, true
	case float64:
		return time.Unix(int64(t), 0), true
	case int64:
		return time.Unix(t, 0), true
	case int:
		return time.Unix(int64(t), 0), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return time.Time{}, false
			}
			n = int64(f)
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}

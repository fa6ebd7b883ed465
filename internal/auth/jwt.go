// Package auth issues and parses the bearer tokens handed to riders,
// drivers and internal system callers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL is the lifetime of tokens issued on signup and login.
const DefaultTokenTTL = 7 * 24 * time.Hour

const (
	claimClerkID = "clerkId"
	claimRole    = "role"
	claimSubject = "sub"
	claimExpiry  = "exp"
	claimIssued  = "iat"

	roleSystem = "system"
)

// Claims is the verified content of a token.
type Claims struct {
	ClerkID   string
	System    bool
	Subject   string
	ExpiresAt time.Time
}

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. A non-positive ttl uses DefaultTokenTTL.
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token carrying the identity credential.
func (m *Manager) Issue(clerkID string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		claimClerkID: clerkID,
		claimIssued:  now.Unix(),
		claimExpiry:  exp.Unix(),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// IssueSystem signs a token for an internal caller identified by subject.
func (m *Manager) IssueSystem(subject string, ttl time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		claimSubject: subject,
		claimRole:    roleSystem,
		claimIssued:  now.Unix(),
		claimExpiry:  now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of tokenString.
func (m *Manager) Parse(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	if exp, ok := mc[claimExpiry].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	} else {
		return Claims{}, ErrInvalidToken
	}

	if role, _ := mc[claimRole].(string); role == roleSystem {
		sub, _ := mc[claimSubject].(string)
		if sub == "" {
			return Claims{}, ErrInvalidToken
		}
		claims.System = true
		claims.Subject = sub
		return claims, nil
	}

	clerkID, _ := mc[claimClerkID].(string)
	if clerkID == "" {
		return Claims{}, ErrInvalidToken
	}
	claims.ClerkID = clerkID
	return claims, nil
}

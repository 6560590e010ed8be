package session

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"aidanwoods.dev/go-paseto"
	"go.uber.org/zap"
)

const (
	CookieName = "wheelcast_session"

	issuer   = "wheelcast"
	lifetime = 2 * time.Hour
)

var ErrNoSession = errors.New("no valid session")

// Claims is the identity carried by a session token.
type Claims struct {
	OwnerID string
	Role    string
}

// Manager signs and verifies session cookies as PASETO v4 public tokens.
type Manager struct {
	secretKey paseto.V4AsymmetricSecretKey
	parser    paseto.Parser
}

// NewManager builds a Manager from a base64-encoded ed25519 secret. An
// undecodable secret falls back to a random per-process key, which keeps the
// server up but invalidates sessions on restart.
func NewManager(secret string) *Manager {
	key, err := loadSecretKey(secret)
	if err != nil {
		zap.L().Error("failed to decode session secret, using random key", zap.Error(err))
		key = paseto.NewV4AsymmetricSecretKey()
	}

	return &Manager{
		secretKey: key,
		parser: paseto.MakeParser([]paseto.Rule{
			paseto.IssuedBy(issuer),
			paseto.NotExpired(),
		}),
	}
}

// Issue builds a session cookie for the given identity.
func (m *Manager) Issue(claims Claims) (cookie *http.Cookie, err error) {
	now := time.Now()
	expiresAt := now.Add(lifetime)

	token := paseto.NewToken()
	token.SetIssuer(issuer)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expiresAt)
	token.SetSubject(claims.OwnerID)
	if err = token.Set("role", claims.Role); err != nil {
		return
	}

	cookie = &http.Cookie{
		Name:     CookieName,
		Value:    token.V4Sign(m.secretKey, nil),
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(lifetime / time.Second),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
	}

	err = cookie.Valid()
	return
}

// Clear builds an expired cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
	}
}

// Verify extracts and validates the session cookie from a request. Absent,
// expired and forged cookies all come back as ErrNoSession.
func (m *Manager) Verify(r *http.Request) (claims Claims, err error) {
	cookie, err := r.Cookie(CookieName)
	if errors.Is(err, http.ErrNoCookie) {
		err = ErrNoSession
		return
	} else if err != nil {
		return
	}

	token, err := m.parser.ParseV4Public(m.secretKey.Public(), cookie.Value, nil)
	if err != nil {
		zap.L().Debug("invalid session token", zap.Error(err))
		err = ErrNoSession
		return
	}

	if claims.OwnerID, err = token.GetSubject(); err != nil {
		err = ErrNoSession
		return
	}
	if err = token.Get("role", &claims.Role); err != nil {
		err = ErrNoSession
	}
	return
}

func loadSecretKey(secret string) (key paseto.V4AsymmetricSecretKey, err error) {
	var decoded []byte
	if decoded, err = base64.StdEncoding.DecodeString(secret); err != nil {
		return
	}

	return paseto.NewV4AsymmetricSecretKeyFromBytes(decoded)
}

package shared

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	// CSRFSessionKey stores the token in the session.
	CSRFSessionKey = "csrf_token"
	// CSRFFormField carries the token in form posts.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token for scripted requests.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues per-session tokens and checks them on form posts.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a manager keyed by secret.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the session token, minting one if needed.
func (m *CSRFManager) EnsureToken(sess *Session) string {
	if token := sess.Get(CSRFSessionKey); token != "" {
		return token
	}
	token := m.mint(sess.ID)
	sess.Set(CSRFSessionKey, token)
	return token
}

// Verify checks token against the one stored in sess.
func (m *CSRFManager) Verify(sess *Session, token string) error {
	if sess == nil {
		return ErrCSRFTokenMissing
	}
	expected := sess.Get(CSRFSessionKey)
	token = strings.TrimSpace(token)
	if expected == "" || token == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) mint(sessionID string) string {
	nonce := make([]byte, 16)
	_, _ = rand.Read(nonce)
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sessionID))
	mac.Write(nonce)
	return base64.RawURLEncoding.EncodeToString(append(nonce, mac.Sum(nil)...))
}

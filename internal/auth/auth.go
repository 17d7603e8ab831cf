// Package auth issues and verifies the self-contained session tokens
// that gate the admin API, and handles admin password hashing.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SessionTTL is how long an issued session token stays valid.
const SessionTTL = 7 * 24 * time.Hour

type tokenPayload struct {
	Exp int64 `json:"exp"` // unix seconds
}

// IssueToken returns a signed session token expiring SessionTTL from now.
func IssueToken(secret string) string {
	return issueTokenAt(secret, time.Now().Add(SessionTTL))
}

func issueTokenAt(secret string, exp time.Time) string {
	payload, _ := json.Marshal(tokenPayload{Exp: exp.Unix()})
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + sign(secret, encoded)
}

// VerifyToken reports whether the token is well-formed, signed with the
// secret, and unexpired. All failure modes look identical to the caller.
func VerifyToken(token, secret string) bool {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	if !hmac.Equal([]byte(sign(secret, encoded)), []byte(sig)) {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	return time.Now().Unix() < p.Exp
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

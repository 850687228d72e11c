// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/duochat/internal/normalize"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// JWTManager signs and validates JWT tokens used by the API.
type JWTManager struct {
	keys      map[string]string // kid -> HMAC secret; "" kid for single-secret mode
	activeKid string            // kid used to sign new tokens
	duration  time.Duration     // How long tokens are valid (e.g., 24 hours)
	now       func() time.Time
}

// Claims is the custom JWT payload (principal id, email, display name).
// RegisteredClaims.ID carries a unique token id used for revocation.
type Claims struct {
	UserID               string `json:"user_id"` // account ObjectID in hex
	Email                string `json:"email"`
	Name                 string `json:"name"`
	jwt.RegisteredClaims        // Includes ExpiresAt, IssuedAt, ID, etc.
}

// NewJWTManager returns a manager signing with a single secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:     map[string]string{"": secretKey},
		duration: duration,
		now:      time.Now,
	}
}

// NewJWTManagerFromKeys returns a manager that signs with activeKid and
// verifies tokens signed by any key in keys, so secrets can be rotated
// without invalidating sessions issued under the previous key.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	cp := make(map[string]string, len(keys))
	for k, v := range keys {
		cp[k] = v
	}
	return &JWTManager{
		keys:      cp,
		activeKid: activeKid,
		duration:  duration,
		now:       time.Now,
	}
}

// GenerateToken issues a signed JWT token for a principal.
func (m *JWTManager) GenerateToken(userID, email, name string) (string, *Claims, error) {
	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", nil, fmt.Errorf("no signing key for kid %q", m.activeKid)
	}

	now := m.now()
	claims := &Claims{
		UserID: userID,
		Email:  normalize.Email(email),
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	// HS256 (HMAC with SHA-256); the kid header selects the key on verify
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return tokenString, claims, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Security check: ensure token was signed with HMAC (not asymmetric key)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, errors.New("token missing subject or id")
	}

	return claims, nil
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	// default cost (10 rounds) balances security and speed
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

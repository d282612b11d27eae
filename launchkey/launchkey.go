// Package launchkey generates per-launch credential material shared between
// the desktop shell and the server process it spawns.
//
// Each launch gets a unique ID and a random secret. The secret travels to the
// server through its environment; the shell signs a short-lived token with it
// so the server can recognize the shell's own readiness probes.
package launchkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid launch token")
	ErrTokenExpired = errors.New("launch token expired")
)

const secretLength = 32

// Key holds the credentials for a single launch attempt.
type Key struct {
	LaunchID string
	Secret   []byte
}

// New creates a fresh launch key with a random secret.
func New() (*Key, error) {
	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate launch secret: %w", err)
	}
	return &Key{
		LaunchID: uuid.New().String(),
		Secret:   secret,
	}, nil
}

// SecretHex returns the secret encoded for transport in an environment
// variable.
func (k *Key) SecretHex() string {
	return hex.EncodeToString(k.Secret)
}

// Sign creates an HS256 token carrying the launch ID, valid for ttl.
func (k *Key) Sign(ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"launch_id": k.LaunchID,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(k.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign launch token: %w", err)
	}
	return tokenString, nil
}

// Verify checks a token against a hex-encoded secret, as the server reads it
// from its environment, and returns the launch ID it carries.
func Verify(secretHex string, tokenString string) (string, error) {
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", fmt.Errorf("%w: malformed secret", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	launchID, ok := claims["launch_id"].(string)
	if !ok || launchID == "" {
		return "", fmt.Errorf("%w: missing launch_id claim", ErrInvalidToken)
	}
	return launchID, nil
}

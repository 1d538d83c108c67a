// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signing keys for player identity tokens. Identity issuance itself is an
// external concern; this package only mints and verifies the bearer tokens
// the venue gateway hands to clients.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	tokenExpire time.Duration
)

// Init generates a fresh ed25519 key pair at runtime. Tokens signed by one
// instance do not survive a restart; the gateway re-issues on reconnect.
func Init(expire time.Duration) error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	tokenExpire = expire
	return nil
}

// InitFromPath loads ed25519 keys from files, for deployments where several
// instances must accept each other's tokens.
func InitFromPath(privatePath, publicPath string, expire time.Duration) error {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("read private key file: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("read public key file: %w", err)
	}
	privateKey = ed25519.PrivateKey(priv)
	publicKey = ed25519.PublicKey(pub)
	tokenExpire = expire
	return nil
}

// CreateToken signs a JWT with "sub" = the player identity. A zero expire
// configured at Init means tokens never expire.
func CreateToken(player string) (string, error) {
	claims := jwt.MapClaims{
		"sub": player,
	}
	if tokenExpire > 0 {
		claims["exp"] = time.Now().Add(tokenExpire).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// Authenticate verifies a token and returns the player identity from "sub".
func Authenticate(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	player, ok := claims["sub"].(string)
	if !ok || player == "" {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return player, nil
}

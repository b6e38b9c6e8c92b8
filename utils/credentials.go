package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/myblog/config"
)

const tokenIssuer = "myblog"

// Password length bounds for local accounts. bcrypt ignores bytes past 72.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// Claims carries the user identity only. Roles are loaded per request so a
// revoked role applies without waiting for the token to expire.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the user. A non-positive ttl uses TokenTTLHours.
func GenerateToken(userID uint, username string, ttl time.Duration) (string, error) {
	cfg := config.Get()
	if ttl <= 0 {
		ttl = time.Duration(cfg.TokenTTLHours) * time.Hour
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	})
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken verifies signature, issuer and expiry.
func ParseToken(raw string) (*Claims, error) {
	secret := []byte(config.Get().JWTSecret)
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// TokenExpiry returns when a valid token lapses; logout blacklists it until then.
func TokenExpiry(raw string) (time.Time, error) {
	claims, err := ParseToken(raw)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

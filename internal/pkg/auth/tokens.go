package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JonasWeigert/TeamDesk/internal/pkg/env"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// NewMagicToken returns a random url-safe login token.
func NewMagicToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashMagicToken derives the storage key for a magic token. Only the peppered
// HMAC ever touches the database.
func HashMagicToken(token string) string {
	pepper := env.GetEnv("MAGIC_LINK_PEPPER", "dev-pepper-change-me")
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// MagicLinkExpiry returns the expiry for a freshly issued link.
func MagicLinkExpiry(now time.Time) time.Time {
	minutes := envInt("MAGIC_LINK_EXPIRES_MINUTES", 15)
	return now.Add(time.Duration(minutes) * time.Minute)
}

// IssueAccessToken signs an HS256 JWT for the given user.
func IssueAccessToken(userID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(envInt("JWT_EXPIRES_MINUTES", 60)) * time.Minute)

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    env.GetEnv("JWT_ISSUER", "teamdesk-api"),
		Audience:  jwt.ClaimStrings{env.GetEnv("JWT_AUDIENCE", "teamdesk-api")},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(env.GetEnv("JWT_SECRET", "dev-secret-change-me")))
}

// ParseAccessToken validates signature, issuer, audience and expiry and
// returns the subject user id.
func ParseAccessToken(raw string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(env.GetEnv("JWT_SECRET", "dev-secret-change-me")), nil
	},
		jwt.WithIssuer(env.GetEnv("JWT_ISSUER", "teamdesk-api")),
		jwt.WithAudience(env.GetEnv("JWT_AUDIENCE", "teamdesk-api")),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil {
		return v
	}
	return def
}

// Package middleware provides authentication, logging, tracing and rate
// limiting middleware for the HTTP surface.
package middleware

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "gatekeeper-api"
	TokenAudience = "gatekeeper-client"
	TokenTTL      = 24 * time.Hour
)

var (
	ErrMissingCredentials = errors.New("authorization required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMalformedBasic     = errors.New("invalid basic credentials")
)

// Credentials is what a request presented in its Authorization header.
// Exactly one of UserID (bearer) or UserName/Password (basic) is set.
type Credentials struct {
	UserID   uint
	UserName string
	Password string
	Basic    bool
}

// IssueToken signs an HS256 token for the given user.
func IssueToken(secret string, userID uint, userName string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": userName,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns the subject user ID.
func ParseToken(secret, tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

// ParseBasic decodes the payload of an HTTP Basic Authorization header.
func ParseBasic(payload string) (string, string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", "", ErrMalformedBasic
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" {
		return "", "", ErrMalformedBasic
	}
	return user, pass, nil
}

// ExtractCredentials reads the Authorization header. Basic credentials are
// only honored when allowBasic is set.
func ExtractCredentials(c *fiber.Ctx, secret string, allowBasic bool) (Credentials, error) {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return Credentials{}, ErrMissingCredentials
	}

	scheme, payload, ok := strings.Cut(header, " ")
	if !ok {
		return Credentials{}, ErrMissingCredentials
	}

	switch {
	case strings.EqualFold(scheme, "Bearer"):
		userID, err := ParseToken(secret, strings.TrimSpace(payload))
		if err != nil {
			return Credentials{}, err
		}
		return Credentials{UserID: userID}, nil
	case strings.EqualFold(scheme, "Basic") && allowBasic:
		user, pass, err := ParseBasic(payload)
		if err != nil {
			return Credentials{}, err
		}
		return Credentials{UserName: user, Password: pass, Basic: true}, nil
	default:
		return Credentials{}, ErrMissingCredentials
	}
}

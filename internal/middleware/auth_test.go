package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testSecret, 42, "alice", time.Hour)
	require.NoError(t, err)

	userID, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	_, err = ParseToken("another-secret-another-secret-1234", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = IssueToken("", 1, "alice", time.Hour)
	assert.Error(t, err)
}

func TestParseToken_Rejects(t *testing.T) {
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.Itoa(7),
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{"missing exp", func(c jwt.MapClaims) { delete(c, "exp") }},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "someone-else" }},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{"non numeric subject", func(c jwt.MapClaims) { c["sub"] = "alice" }},
		{"zero subject", func(c jwt.MapClaims) { c["sub"] = "0" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := valid()
			tt.mutate(claims)
			_, err := ParseToken(testSecret, sign(claims))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err := ParseToken(testSecret, "malformed.token.here")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseBasic(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	user, pass, err := ParseBasic(enc("alice:s3cr:et"))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "s3cr:et", pass)

	_, _, err = ParseBasic(enc("no-colon"))
	assert.ErrorIs(t, err, ErrMalformedBasic)
	_, _, err = ParseBasic(enc(":pw"))
	assert.ErrorIs(t, err, ErrMalformedBasic)
	_, _, err = ParseBasic("%%%")
	assert.ErrorIs(t, err, ErrMalformedBasic)
}

func TestExtractCredentials(t *testing.T) {
	token, err := IssueToken(testSecret, 9, "bob", time.Hour)
	require.NoError(t, err)
	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte("bob:pw"))

	tests := []struct {
		name       string
		header     string
		allowBasic bool
		wantStatus int
		wantBasic  bool
	}{
		{"bearer", "Bearer " + token, false, http.StatusOK, false},
		{"basic allowed", basic, true, http.StatusOK, true},
		{"basic disabled", basic, false, http.StatusUnauthorized, false},
		{"missing header", "", true, http.StatusUnauthorized, false},
		{"unknown scheme", "Digest abc", true, http.StatusUnauthorized, false},
		{"bad bearer", "Bearer nope", true, http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/whoami", func(c *fiber.Ctx) error {
				creds, err := ExtractCredentials(c, testSecret, tt.allowBasic)
				if err != nil {
					return c.SendStatus(fiber.StatusUnauthorized)
				}
				assert.Equal(t, tt.wantBasic, creds.Basic)
				if creds.Basic {
					assert.Equal(t, "bob", creds.UserName)
				} else {
					assert.Equal(t, uint(9), creds.UserID)
				}
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

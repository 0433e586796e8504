package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:             "development",
		Port:            "9898",
		JWTSecret:       "secure-secret-at-least-32-chars-long",
		DBDriver:        "postgres",
		DBPassword:      "secure-password",
		DBSSLMode:       "require",
		NotifyRecipient: "superadmin@example.com",
		ApprovalBaseURL: "http://localhost:9898",
		NotifyChannels:  "log",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateNotifications(t *testing.T) {
	c := validConfig()
	c.NotifyChannels = "smtp,log"
	assert.Error(t, c.Validate(), "smtp without host must fail")

	c.SMTPHost = "mail.local"
	assert.NoError(t, c.Validate())

	c.NotifyChannels = "pigeon"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.NotifyRecipient = ""
	assert.Error(t, c.Validate())

	c.NotifyRecipient = "not-an-address"
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateProductionSecret(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c.JWTSecret = "short"
	assert.Error(t, c.Validate())
}

func TestConfig_Helpers(t *testing.T) {
	c := validConfig()
	c.NotifyChannels = " smtp, ,redis "
	assert.Equal(t, []string{"smtp", "redis"}, c.NotifyChannelList())
	assert.Equal(t, 10*time.Second, c.NotifyTimeout())
	c.NotifyTimeoutSeconds = 3
	assert.Equal(t, 3*time.Second, c.NotifyTimeout())
}

func TestLoadConfig_Normalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer os.Unsetenv("APPROVAL_BASE_URL")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")
	os.Setenv("APPROVAL_BASE_URL", "https://mod.example.com/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "https://mod.example.com", c.ApprovalBaseURL)
	assert.Equal(t, "superadmin@example.com", c.NotifyRecipient)
}

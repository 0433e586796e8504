package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "alice", false},
		{"With Separators", "jane.doe_2", false},
		{"Too Short", "ab", true},
		{"Too Long", strings.Repeat("a", 65), true},
		{"Space", "bad name", true},
		{"Leading Hyphen", "-alice", true},
		{"Trailing Dot", "alice.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "correct-horse", false},
		{"Exactly Min Length", "12345678", false},
		{"Exactly Max Length", strings.Repeat("p", 72), false},
		{"Too Short", "short", true},
		{"Too Long", strings.Repeat("p", 73), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateEmail("superadmin@example.com"))
	assert.Error(t, ValidateEmail("superadmin"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@x.com"))
}

func TestValidatePost(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidatePost("", "body"))
	assert.Error(t, ValidatePost("t", "   "))
	assert.Error(t, ValidatePost(strings.Repeat("t", 256), "body"))
	assert.Error(t, ValidatePost("t", strings.Repeat("c", 20001)))
}

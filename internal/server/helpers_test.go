package server

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func uitoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestHumanizeParam(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "user ID", humanizeParam("userId"))
	assert.Equal(t, "token", humanizeParam("token"))
}

func TestCapitalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Authorization required", capitalize("authorization required"))
	assert.Equal(t, "", capitalize(""))
}

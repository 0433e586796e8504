package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_Percentages(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,over=150%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))
	assert.True(t, m.Enabled("over", 1), "values above 100% clamp to full rollout")

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42))
	}
	assert.False(t, m.Enabled("canary", 0))

	var on int
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("canary", id) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 80)
}

func TestNewManager_Parsing(t *testing.T) {
	m := NewManager(" bad ,x=on, Y = 20% ,z=off,w=maybe,=on")

	assert.Equal(t, []string{"x", "y", "z"}, m.Names())
	assert.True(t, m.Enabled("x", 123))
	assert.False(t, m.Enabled("z", 123))
	assert.False(t, m.Enabled("w", 123), "unparseable values are dropped")
}

func TestBulkModerationDefaultsOn(t *testing.T) {
	for _, raw := range []string{"", "basic_auth=on", " bad "} {
		m := NewManager(raw)
		assert.True(t, m.Enabled(FlagBulkModeration, 7), raw)
		assert.True(t, m.EnabledGlobally(FlagBulkModeration), raw)
		assert.False(t, m.Enabled(FlagBasicAuth+"_x", 7), raw)
	}

	var nilManager *Manager
	assert.True(t, nilManager.Enabled(FlagBulkModeration, 7))

	off := NewManager("bulk_moderation=off")
	assert.False(t, off.Enabled(FlagBulkModeration, 7))
	assert.False(t, off.EnabledGlobally(FlagBulkModeration))

	partial := NewManager("bulk_moderation=0%")
	assert.False(t, partial.Enabled(FlagBulkModeration, 7))
}

func TestEnabledGlobally(t *testing.T) {
	m := NewManager(FlagBasicAuth + "=on," + FlagBulkModeration + "=50%,full=100%")

	assert.True(t, m.EnabledGlobally(FlagBasicAuth))
	assert.False(t, m.EnabledGlobally(FlagBulkModeration))
	assert.True(t, m.EnabledGlobally("full"))

	var nilManager *Manager
	assert.False(t, nilManager.EnabledGlobally(FlagBasicAuth))
	assert.False(t, nilManager.Enabled(FlagBasicAuth, 1))
	assert.Empty(t, nilManager.Names())
}

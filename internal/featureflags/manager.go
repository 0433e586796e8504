// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// FlagBasicAuth accepts "Authorization: Basic" credentials alongside JWTs.
	FlagBasicAuth = "basic_auth"
	// FlagBulkModeration enables the approveAll and rejectAll operations.
	FlagBulkModeration = "bulk_moderation"
)

// defaultOn holds flags that stay on until configured otherwise.
var defaultOn = map[string]bool{
	FlagBulkModeration: true,
}

// rule is one parsed flag value. percent is 0..100; on/off map to 100/0.
type rule struct {
	raw     string
	percent int
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, true
	}
	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(pct, 0), 100)}, true
}

// Manager holds flags parsed from a list such as
// "basic_auth=on,bulk_moderation=25%". Unparseable entries are dropped.
type Manager struct {
	rules map[string]rule
}

// NewManager parses a comma-separated key=value list.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}
	return &Manager{rules: rules}
}

// Enabled reports whether name is on for userID. Partial rollouts bucket
// users deterministically and never include the anonymous user 0.
func (m *Manager) Enabled(name string, userID uint) bool {
	r, ok := m.rule(name)
	switch {
	case !ok:
		return defaultOn[normalize(name)]
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < r.percent
}

// EnabledGlobally reports whether a flag is on for every caller.
func (m *Manager) EnabledGlobally(name string) bool {
	r, ok := m.rule(name)
	if !ok {
		return defaultOn[normalize(name)]
	}
	return r.percent == 100
}

func (m *Manager) rule(name string) (rule, bool) {
	if m == nil {
		return rule{}, false
	}
	r, ok := m.rules[normalize(name)]
	return r, ok
}

// Names lists configured flags in sorted order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}

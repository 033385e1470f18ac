package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesWellFormedKeys(t *testing.T) {
	key, err := New()
	require.NoError(t, err)

	assert.Len(t, key, TotalLen)
	assert.True(t, strings.HasPrefix(key, Prefix))
	assert.True(t, IsValid(key))
}

func TestNewProducesUniqueKeys(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		key, err := New()
		require.NoError(t, err)
		require.True(t, IsValid(key), "generated key %q failed validation", key)

		_, dup := seen[key]
		require.False(t, dup, "duplicate key generated: %s", key)
		seen[key] = struct{}{}
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		name string
		key  string
		want bool
	}{
		{"valid", "gopt_abcDEF123_-abcDEF123_-a", true},
		{"empty", "", false},
		{"missing prefix", "abcDEF123_-abcDEF123_-aXY", false},
		{"wrong prefix", "gpt_abcDEF123_-abcDEF123_-ab", false},
		{"too short", "gopt_abc", false},
		{"too long", "gopt_abcDEF123_-abcDEF123_-ab", false},
		{"illegal chars", "gopt_abcDEF123!-abcDEF123_-", false},
		{"prefix only", "gopt_", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValid(tc.key))
		})
	}
}

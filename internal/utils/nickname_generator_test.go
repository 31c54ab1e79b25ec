package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNickname(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Za-z]+_[A-Za-z]+_\d{4}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		name, err := GenerateNickname()
		require.NoError(t, err)
		assert.Regexp(t, pattern, name)
		seen[name] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentitiesRotate(t *testing.T) {
	ids := NewIdentities([]Identity{
		{UserAgent: "agent-a"},
		{UserAgent: "agent-b"},
	})

	assert.Equal(t, "agent-a", ids.Next()["User-Agent"])
	assert.Equal(t, "agent-b", ids.Next()["User-Agent"])
	assert.Equal(t, "agent-a", ids.Next()["User-Agent"])
}

func TestIdentitiesSharedHeaders(t *testing.T) {
	headers := DefaultIdentities().Next()

	assert.Contains(t, headers["Accept"], "text/html")
	assert.Equal(t, "en-US,en;q=0.5", headers["Accept-Language"])
	assert.Equal(t, "1", headers["Upgrade-Insecure-Requests"])
	assert.Contains(t, headers["User-Agent"], "Chrome")
}

func TestIdentitiesEmptyProfilesFallBack(t *testing.T) {
	for _, ids := range []*Identities{NewIdentities(nil), NewIdentities([]Identity{})} {
		headers := ids.Next()
		assert.Contains(t, headers["User-Agent"], "Chrome")
	}
}

func TestIdentitiesReturnFreshCopies(t *testing.T) {
	ids := NewIdentities([]Identity{{UserAgent: "agent-a"}})

	first := ids.Next()
	first["Accept"] = "mutated"
	delete(first, "User-Agent")

	second := ids.Next()
	require.NotEqual(t, "mutated", second["Accept"])
	assert.Equal(t, "agent-a", second["User-Agent"])
}

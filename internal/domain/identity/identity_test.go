package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	t.Run("User", func(t *testing.T) {
		id := User("user-1")
		assert.True(t, id.IsAuthenticated())
		assert.False(t, id.IsEmpty())
	})

	t.Run("Anonymous", func(t *testing.T) {
		id := Anonymous("sess-1")
		assert.False(t, id.IsAuthenticated())
		assert.False(t, id.IsEmpty())
	})

	t.Run("Empty", func(t *testing.T) {
		var id Identity
		assert.False(t, id.IsAuthenticated())
		assert.True(t, id.IsEmpty())
	})

	t.Run("RoleDoesNotAuthenticate", func(t *testing.T) {
		id := Identity{Role: "admin"}
		assert.False(t, id.IsAuthenticated())
		assert.True(t, id.IsEmpty())
	})
}

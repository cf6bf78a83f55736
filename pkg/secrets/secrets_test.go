package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "stride/pkg/domain-errors"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	t.Run("hash then verify round trips", func(t *testing.T) {
		hash, err := h.Hash("s1")
		require.NoError(t, err)
		assert.NotEqual(t, "s1", hash)
		assert.True(t, h.Verify("s1", hash))
	})

	t.Run("other secret does not verify", func(t *testing.T) {
		hash, err := h.Hash("pw123")
		require.NoError(t, err)
		assert.False(t, h.Verify("pw124", hash))
		assert.False(t, h.Verify("", hash))
	})

	t.Run("same secret hashes differently each time", func(t *testing.T) {
		a, err := h.Hash("s1")
		require.NoError(t, err)
		b, err := h.Hash("s1")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("malformed hash is a mismatch", func(t *testing.T) {
		assert.False(t, h.Verify("s1", "not-a-bcrypt-hash"))
	})

	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := h.Hash("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects secret longer than 72 bytes", func(t *testing.T) {
		_, err := h.Hash(strings.Repeat("x", 73))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("dummy verification never matches", func(t *testing.T) {
		assert.False(t, h.VerifyDummy("s1"))
		assert.False(t, h.VerifyDummy(""))
	})
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}

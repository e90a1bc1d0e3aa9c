package api

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACVerifier(t *testing.T) {
	t.Parallel()

	verifier, err := NewHMACVerifier(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		token := verifier.MintToken("user-7")
		userID, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-7", userID)
	})

	t.Run("tampered signature rejected", func(t *testing.T) {
		t.Parallel()

		token := verifier.MintToken("user-7")
		_, err := verifier.Verify(token[:len(token)-2] + "xx")
		assert.Error(t, err)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		t.Parallel()

		other, err := NewHMACVerifier(bytes.Repeat([]byte("z"), 32))
		require.NoError(t, err)

		_, err = other.Verify(verifier.MintToken("user-7"))
		assert.Error(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		t.Parallel()

		for _, token := range []string{"", "no-dot", "a.b.c", "!!!.???"} {
			_, err := verifier.Verify(token)
			assert.Error(t, err, token)
		}
	})
}

func TestNewHMACVerifierShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewHMACVerifier([]byte("too short"))
	assert.Error(t, err)
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasscode_RoundTrip(t *testing.T) {
	hashed, err := HashPasscode("draw-together")

	require.NoError(t, err)
	assert.NotEqual(t, "draw-together", hashed)
	assert.True(t, CheckPasscode(hashed, "draw-together"))
	assert.False(t, CheckPasscode(hashed, "wrong-passcode"))
}

func TestHashPasscode_TooShort(t *testing.T) {
	_, err := HashPasscode("ab")

	assert.Error(t, err)
}

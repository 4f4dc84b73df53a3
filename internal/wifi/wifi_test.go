package wifi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualBindingRoundTrip(t *testing.T) {
	b, err := NewBinding("virtual", "wlan0")
	require.NoError(t, err)

	require.NoError(t, b.SetSSID([]byte("##^1,hello")))
	got, err := b.GetSSID()
	require.NoError(t, err)
	assert.Equal(t, "##^1,hello", string(got))
}

func TestVirtualBindingRejectsOverlength(t *testing.T) {
	b, err := NewBinding("virtual", "wlan0")
	require.NoError(t, err)

	err = b.SetSSID([]byte(strings.Repeat("x", MaxSSIDLen+1)))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestNewBindingUnknownName(t *testing.T) {
	_, err := NewBinding("does-not-exist", "wlan0")
	assert.ErrorIs(t, err, ErrUnknownBinding)
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceRoundTrip(t *testing.T) {
	raw, encoded, err := NewNonce()
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	decoded, err := DecodeNonce(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestVerifyAcceptsMatchingMAC(t *testing.T) {
	serverNonce, _, err := NewNonce()
	require.NoError(t, err)
	clientNonce, _, err := NewNonce()
	require.NoError(t, err)

	mac := ComputeMAC("sharedsecret", serverNonce, clientNonce, "server-1", "client-1")
	assert.True(t, Verify("sharedsecret", serverNonce, clientNonce, "server-1", "client-1", mac))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	serverNonce, _, _ := NewNonce()
	clientNonce, _, _ := NewNonce()
	mac := ComputeMAC("sharedsecret", serverNonce, clientNonce, "server-1", "client-1")
	assert.False(t, Verify("wrongsecret", serverNonce, clientNonce, "server-1", "client-1", mac))
}

func TestVerifyRejectsTamperedDeviceID(t *testing.T) {
	serverNonce, _, _ := NewNonce()
	clientNonce, _, _ := NewNonce()
	mac := ComputeMAC("sharedsecret", serverNonce, clientNonce, "server-1", "client-1")
	assert.False(t, Verify("sharedsecret", serverNonce, clientNonce, "server-1", "client-2", mac))
}

func TestMACEncodeDecodeRoundTrip(t *testing.T) {
	serverNonce, _, _ := NewNonce()
	clientNonce, _, _ := NewNonce()
	mac := ComputeMAC("k", serverNonce, clientNonce, "s", "c")
	encoded := EncodeMAC(mac)
	decoded, err := DecodeMAC(encoded)
	require.NoError(t, err)
	assert.Equal(t, mac, decoded)
}

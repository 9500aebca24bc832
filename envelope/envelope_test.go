package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := PingRequest{Type: "PING", ReqID: "req-1"}
	b, err := Encode(req)
	require.NoError(t, err)

	env, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "PING", env.Type)
	assert.Equal(t, "req-1", env.ReqID)

	var decoded PingRequest
	require.NoError(t, env.DecodeInto(&decoded))
	assert.Equal(t, req, decoded)
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := Decode([]byte(`{"reqId":"x"}`))
	assert.Error(t, err)
}

func TestNewOKAndNewError(t *testing.T) {
	ok := NewOK("PONG", "req-1")
	assert.True(t, ok.OK)
	assert.Nil(t, ok.Error)

	failed := NewError("PONG", "req-1", CodeBadRequest, "bad request")
	assert.False(t, failed.OK)
	require.NotNil(t, failed.Error)
	assert.Equal(t, CodeBadRequest, failed.Error.Code)
}

func TestResponseTypeMapping(t *testing.T) {
	cases := map[string]string{
		"HELLO":        "HELLO_ACK",
		"AUTH":         "AUTH_OK",
		"PING":         "PONG",
		"LIST_SHARES":  "LIST_SHARES_RESP",
		"LIST_DIR":     "LIST_DIR_RESP",
		"STAT":         "STAT_RESP",
		"DOWNLOAD_REQ": "DOWNLOAD_ACK",
		"UPLOAD_REQ":   "UPLOAD_ACK",
		"HASH_REQ":     "HASH_RESP",
		"UNKNOWN_TYPE": "UNKNOWN_TYPE_RESP",
	}
	for in, want := range cases {
		assert.Equal(t, want, ResponseType(in))
	}
}

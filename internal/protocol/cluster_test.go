package protocol

import (
	"testing"

	"github.com/devrev/elastirouter/internal/errors"
	"github.com/devrev/elastirouter/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var exampleResponse = []byte(
	"CONFIG cluster 0 147\r\n" +
		"12\n" +
		"test.0001.use1.cache.amazonaws.com|10.0.0.1|11211 " +
		"test.0002.use1.cache.amazonaws.com|10.0.0.2|11211\n\r\n" +
		"END\r\n")

func TestEncodeQuery(t *testing.T) {
	codec := NewCodec(true, zap.NewNop())
	assert.Equal(t, []byte("config get cluster\r\n"), codec.EncodeQuery())
}

func TestDecode_VPCIPPreference(t *testing.T) {
	codec := NewCodec(true, zap.NewNop())

	nodes, err := codec.Decode(exampleResponse)
	require.NoError(t, err)

	assert.Equal(t, []model.NodeAddress{
		{Host: "10.0.0.1", Port: 11211},
		{Host: "10.0.0.2", Port: 11211},
	}, nodes)
}

func TestDecode_HostnamePreference(t *testing.T) {
	codec := NewCodec(false, zap.NewNop())

	nodes, err := codec.Decode(exampleResponse)
	require.NoError(t, err)

	assert.Equal(t, []model.NodeAddress{
		{Host: "test.0001.use1.cache.amazonaws.com", Port: 11211},
		{Host: "test.0002.use1.cache.amazonaws.com", Port: 11211},
	}, nodes)
}

func TestDecode_SkipsMalformedTokens(t *testing.T) {
	payload := []byte(
		"CONFIG cluster 0 99\r\n" +
			"3\n" +
			"host-a.cache|10.0.0.1|11211 bad-token host-b.cache|10.0.0.2|notaport host-c.cache|10.0.0.3|11213\n\r\n" +
			"END\r\n")
	codec := NewCodec(true, zap.NewNop())

	nodes, err := codec.Decode(payload)
	require.NoError(t, err)

	// Malformed tokens are dropped, order of the rest preserved.
	assert.Equal(t, []model.NodeAddress{
		{Host: "10.0.0.1", Port: 11211},
		{Host: "10.0.0.3", Port: 11213},
	}, nodes)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty response", []byte("")},
		{"whitespace only", []byte("\r\n\n\r\n")},
		{"too short", []byte("CONFIG cluster 0 1\r\nX\r\n")},
		{"missing END", []byte("CONFIG cluster 0 1\r\n12\nhost|10.0.0.1|11211\n\r\nEN\r\n")},
		{"blank membership", []byte("CONFIG cluster 0 1\r\n\n\r\nEND\r\n")},
		{"all tokens malformed", []byte("CONFIG cluster 0 1\r\nbad|format\r\nEND\r\n")},
	}

	codec := NewCodec(true, zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := codec.Decode(tt.payload)
			require.Error(t, err)
			assert.True(t, errors.IsProtocolError(err), "expected ProtocolError, got %v", err)
			assert.Nil(t, nodes)
		})
	}
}

func TestDecode_MultilineMembership(t *testing.T) {
	// Only the line immediately preceding END is membership data.
	payload := []byte(
		"CONFIG cluster 0 147\r\n" +
			"12\n" +
			"test.0001.use1.cache.amazonaws.com|10.0.0.1|11211\n" +
			"test.0002.use1.cache.amazonaws.com|10.0.0.2|11211\n\r\n" +
			"END\r\n")
	codec := NewCodec(true, zap.NewNop())

	nodes, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, []model.NodeAddress{{Host: "10.0.0.2", Port: 11211}}, nodes)
}

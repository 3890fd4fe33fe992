package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeAddress_Key(t *testing.T) {
	addr := NodeAddress{Host: "test.0001.use1.cache.amazonaws.com", Port: 11211}
	assert.Equal(t, "test.0001.use1.cache.amazonaws.com:11211", addr.Key())
}

func TestParseNodeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    NodeAddress
		wantErr bool
	}{
		{"hostname", "cache.example.com:11211", NodeAddress{Host: "cache.example.com", Port: 11211}, false},
		{"ip", "10.0.0.1:11211", NodeAddress{Host: "10.0.0.1", Port: 11211}, false},
		{"missing port", "cache.example.com", NodeAddress{}, true},
		{"empty host", ":11211", NodeAddress{}, true},
		{"bad port", "cache.example.com:http", NodeAddress{}, true},
		{"trailing colon", "cache.example.com:", NodeAddress{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNodeKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeAddress_KeyRoundTrip(t *testing.T) {
	addr := NodeAddress{Host: "10.0.0.2", Port: 11212}
	parsed, err := ParseNodeKey(addr.Key())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)
}

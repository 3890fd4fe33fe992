// Package protocol implements the ElastiCache auto-discovery wire format:
// the "config get cluster" query and its membership response.
package protocol

import (
	"strconv"
	"strings"

	"github.com/devrev/elastirouter/internal/errors"
	"github.com/devrev/elastirouter/internal/model"
	"go.uber.org/zap"
)

const (
	// ClusterQuery is the command sent to the configuration endpoint.
	ClusterQuery = "config get cluster\r\n"

	// ResponseEndMarker terminates a cluster config response.
	ResponseEndMarker = "\n\r\nEND\r\n"

	endSentinel = "END"
)

// Codec encodes the cluster membership query and decodes the response
// into an ordered node list.
type Codec struct {
	// UseVPCIP selects the VPC-internal IP field of each membership token
	// over the public hostname field.
	UseVPCIP bool

	logger *zap.Logger
}

// NewCodec creates a codec. Malformed membership tokens are logged
// through the given logger and skipped.
func NewCodec(useVPCIP bool, logger *zap.Logger) *Codec {
	return &Codec{UseVPCIP: useVPCIP, logger: logger}
}

// EncodeQuery returns the raw bytes of the cluster membership query.
func (c *Codec) EncodeQuery() []byte {
	return []byte(ClusterQuery)
}

// Decode parses a raw "config get cluster" response into the ordered node
// list. The response structure is: a header line, a version line, one or
// more membership lines of space-separated host|ip|port tokens, then the
// END sentinel. Malformed tokens are skipped; structural problems fail
// with a ProtocolError.
func (c *Codec) Decode(response []byte) ([]model.NodeAddress, error) {
	var lines []string
	for _, raw := range strings.Split(string(response), "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return nil, errors.NewProtocolError("empty response")
	}
	if len(lines) < 3 {
		c.logger.Warn("Cluster config response too short", zap.Strings("lines", lines))
		return nil, errors.NewProtocolError("response too short: %d lines", len(lines))
	}

	endIdx := -1
	for i, line := range lines {
		if line == endSentinel {
			endIdx = i
			break
		}
	}
	if endIdx < 0 {
		c.logger.Warn("Cluster config response missing END token", zap.Strings("lines", lines))
		return nil, errors.NewProtocolError("response missing END token")
	}
	if endIdx == 0 {
		return nil, errors.NewProtocolError("no membership line found")
	}

	membership := lines[endIdx-1]
	nodes := make([]model.NodeAddress, 0)
	for _, token := range strings.Split(membership, " ") {
		parts := strings.Split(token, "|")
		if len(parts) != 3 {
			c.logger.Warn("Bad node format in membership token", zap.String("token", token))
			continue
		}

		port, err := strconv.Atoi(parts[2])
		if err != nil {
			c.logger.Warn("Bad port in membership token", zap.String("token", token))
			continue
		}

		host := parts[0]
		if c.UseVPCIP {
			host = parts[1]
		}
		nodes = append(nodes, model.NodeAddress{Host: host, Port: port})
	}

	if len(nodes) == 0 {
		c.logger.Warn("No nodes parsed from membership line", zap.String("line", membership))
		return nil, errors.NewProtocolError("no nodes parsed")
	}

	return nodes, nil
}

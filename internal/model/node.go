package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NodeAddress identifies a single cache node. Two addresses are equal iff
// host and port match exactly; no DNS resolution is performed.
type NodeAddress struct {
	Host string
	Port int
}

// Key returns the canonical "host:port" identity used for hash ring
// membership and the node connection map.
func (a NodeAddress) Key() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

func (a NodeAddress) String() string {
	return a.Key()
}

// ParseNodeKey splits a "host:port" key back into a NodeAddress.
func ParseNodeKey(key string) (NodeAddress, error) {
	idx := strings.LastIndex(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return NodeAddress{}, fmt.Errorf("invalid node key %q: expected host:port", key)
	}

	port, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return NodeAddress{}, fmt.Errorf("invalid port in node key %q: %w", key, err)
	}

	return NodeAddress{Host: key[:idx], Port: port}, nil
}

// TopologySnapshot is a read-consistent view of the current cluster
// membership. It is produced under the topology lock and never mutated.
type TopologySnapshot struct {
	NodeKeys    []string
	LastRefresh time.Time
}

package errors

import (
	"errors"
	"fmt"
	"net"
)

// ProtocolError indicates a malformed or unparseable discovery response
// from the configuration endpoint.
type ProtocolError struct {
	Reason string
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cluster discovery: %s", e.Reason)
}

// NewProtocolError creates a ProtocolError with the given reason
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// DiscoveryError indicates a transport failure (connect/send/recv) while
// querying the configuration endpoint. It wraps the underlying cause.
type DiscoveryError struct {
	Op    string
	Cause error
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("cluster discovery %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying error
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// NewDiscoveryError wraps a transport failure in a DiscoveryError
func NewDiscoveryError(op string, cause error) *DiscoveryError {
	return &DiscoveryError{Op: op, Cause: cause}
}

// NoNodesAvailableError indicates routing was attempted against an empty
// hash ring.
type NoNodesAvailableError struct{}

// Error implements the error interface
func (e *NoNodesAvailableError) Error() string {
	return "no cache nodes available in hash ring"
}

// ErrClientClosed is returned for operations on a closed client.
var ErrClientClosed = errors.New("elasticache client is closed")

// IsProtocolError reports whether err is (or wraps) a ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsDiscoveryError reports whether err is (or wraps) a DiscoveryError
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// IsNoNodesAvailable reports whether err is (or wraps) a NoNodesAvailableError
func IsNoNodesAvailable(err error) bool {
	var ne *NoNodesAvailableError
	return errors.As(err, &ne)
}

// IsRetryable reports whether a routing failure should trigger a forced
// topology refresh and retry. Transport-class and protocol-class failures
// are retryable; everything else surfaces immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClientClosed) {
		return false
	}
	if IsProtocolError(err) || IsDiscoveryError(err) || IsNoNodesAvailable(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

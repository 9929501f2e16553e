// Package natsutil classifies NATS errors for the synchronizer and the NATS querier.
package natsutil

import (
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/taskchain/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes request timeouts, missing responders, connection refused and
// disconnections. Classify uses it to tag such failures with ErrConnectivity so
// logs and hooks can tell a lost connection from a failing task service.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Classify maps a NATS error onto the taskchain sentinel it represents.
//
// Connectivity problems are wrapped with ErrConnectivity so callers outside
// this module can test them with errors.Is without importing nats.go.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, types.ErrConnectivity) || !IsConnectivityError(err) {
		return err
	}

	return errors.Join(types.ErrConnectivity, err)
}

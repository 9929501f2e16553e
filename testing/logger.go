package testing

import (
	"testing"

	"github.com/arloliu/taskchain/internal/logging"
	"github.com/arloliu/taskchain/types"
)

// NewTestLogger creates a logger that writes to the test log.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewTest(t)
}

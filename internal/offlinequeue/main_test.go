//go:build !database

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package offlinequeue

import (
	"testing"

	"go.uber.org/goleak"
)

// Container-backed runs leave reaper goroutines behind, so the leak check
// only guards the default build.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

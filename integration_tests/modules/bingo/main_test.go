//go:build integration

package bingointegration

import (
	"testing"

	"github.com/Black-And-White-Club/mundo-bingo/integration_tests/testutils"
)

// TestBingoIntegration shares one Postgres and NATS pair across the suites.
func TestBingoIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container tests in short mode")
	}
	env := testutils.NewTestEnvironment(t)

	t.Run("Repository", func(t *testing.T) { runRepositoryTests(t, env) })
	t.Run("Queue", func(t *testing.T) { runQueueTests(t, env) })
	t.Run("EventBus", func(t *testing.T) { runEventBusTests(t, env) })
}

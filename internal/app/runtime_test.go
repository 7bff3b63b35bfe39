package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/nileharvest/backoffice/internal/testing/guard"
)

func TestInTestModeHonoursEnv(t *testing.T) {
	// The guard import flips BACKOFFICE_TEST_MODE on before any test runs,
	// so runtime startup paths stay inert under `go test ./...`.
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("BACKOFFICE_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("BACKOFFICE_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
}

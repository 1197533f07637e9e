package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check needs no session.
func TestLivezEndpoint(t *testing.T) {
	svc := startService(t, nil)

	health, err := svc.client().GetLiveness(t.Context())
	assertHealthy(t, health, err)
}

// TestReadyzEndpoint verifies readiness reports the credential store.
func TestReadyzEndpoint(t *testing.T) {
	svc := startService(t, nil)

	health, err := svc.client().GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
}

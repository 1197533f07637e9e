package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Role
		err  bool
	}{
		{"", domain.RoleStudent, false},
		{"Student", domain.RoleStudent, false},
		{"manager", domain.RoleManager, false},
		{" ADMIN ", domain.RoleAdmin, false},
		{"Employee", domain.RoleEmployee, false},
		{"superuser", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseRole(tt.in)
			if tt.err {
				require.ErrorIs(t, err, domain.ErrUnknownRole)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRoleIn(t *testing.T) {
	require.True(t, domain.RoleManager.In(domain.RoleManager, domain.RoleAdmin))
	require.False(t, domain.RoleStudent.In(domain.RoleManager, domain.RoleAdmin))
	require.False(t, domain.RoleAdmin.In())
	require.False(t, domain.Role("").Valid())
}

func TestPendingChallengeExpired(t *testing.T) {
	now := time.Now()
	c := domain.PendingChallenge{ExpiresAt: now}

	require.False(t, c.Expired(now))
	require.True(t, c.Expired(now.Add(time.Nanosecond)))
}

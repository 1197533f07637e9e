package http

import (
	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/aussiebroadwan/projectx/pkg/authsdk"
)

// domainToSDKProfile converts a domain.User to its public wire form.
func domainToSDKProfile(u domain.User) authsdk.UserProfile {
	return authsdk.UserProfile{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role.String(),
		TwoFactorEnabled: u.TwoFactorEnabled,
		ClassID:          u.ClassID,
		CohortID:         u.CohortID,
	}
}

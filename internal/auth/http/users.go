package http

import (
	"net/http"

	"github.com/aussiebroadwan/projectx/internal/auth/guard"
	"github.com/aussiebroadwan/projectx/internal/auth/service"
	"github.com/aussiebroadwan/projectx/pkg/authsdk"
	"github.com/aussiebroadwan/projectx/pkg/httpx"
	"github.com/aussiebroadwan/projectx/pkg/slogx"
)

type UsersHandler struct {
	UserService *service.UserService
}

// HandleMe handles GET /auth/me
//
//	@Summary		Current user
//	@Description	Returns the profile of the user owning the jwt cookie.
//	@Tags			Users
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	httpx.ErrorBody	"UNAUTHORIZED"
//	@Router			/auth/me [get].
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := guard.UserFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{User: domainToSDKProfile(u)})
}

// HandleList handles GET /users
//
//	@Summary		List users
//	@Description	Lists every user, oldest first. Requires the Manager or Admin role.
//	@Tags			Users
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UsersResponse
//	@Failure		401	{object}	httpx.ErrorBody	"UNAUTHORIZED"
//	@Failure		403	{object}	httpx.ErrorBody	"FORBIDDEN"
//	@Failure		500	{object}	httpx.ErrorBody
//	@Router			/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.UserService.ListUsers(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list users", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	out := authsdk.UsersResponse{Users: make([]authsdk.UserProfile, 0, len(users))}
	for _, u := range users {
		out.Users = append(out.Users, domainToSDKProfile(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

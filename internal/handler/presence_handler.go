package handler

import (
	"net/http"

	"pitchchat/internal/pkg/auth/jwt"
	"pitchchat/internal/pkg/errs"
	"pitchchat/internal/pkg/resp"
)

// HandleOnlineUsers serves the read-only presence snapshot to the rest of the
// platform. The hub's internal registries are never exposed directly.
func HandleOnlineUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"users": deps.Hub.OnlineUsers(),
		})
	}
}

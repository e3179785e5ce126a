package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"pitchchat/internal/app/realtime"
	"pitchchat/internal/pkg/errs"
	"pitchchat/internal/pkg/logx"
	"pitchchat/internal/pkg/resp"
)

// connectCredential pulls the session credential from the request: the token
// query parameter for browser websocket clients, or a bearer header.
func connectCredential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return ""
}

// HandleWebSocket authenticates the connecting credential, upgrades the
// request and runs the client lifecycle. A bad credential refuses the
// connection before the upgrade, so no realtime state is ever created for it.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential := connectCredential(r)
		if credential == "" {
			logx.Warn("WebSocket request rejected: Missing credential")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		identity, err := deps.Sessions.VerifyIdentity(r.Context(), credential)
		if err != nil {
			logx.Warn("WebSocket request rejected: Credential verification failed", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := realtime.NewClient(deps.Hub, conn, identity)

		go client.WritePump()

		deps.Hub.Attach(client)

		logx.Info("WebSocket connection established", "user_id", identity.UserID)

		client.ReadPump()
	}
}

/*
Package handler provides the HTTP surface of the messaging server: the
websocket endpoint, attachment presign endpoints, a read-only presence query
and a health check. All conversation CRUD lives in the marketplace backend,
not here.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"pitchchat/internal/pkg/auth/jwt"
	"pitchchat/internal/pkg/limiter"
	"pitchchat/internal/pkg/logx"
	"pitchchat/internal/pkg/resp"
)

const (
	// ConnectRate limits websocket connection attempts per IP.
	ConnectRate  = 0.2
	ConnectBurst = 5

	// PresignRate limits attachment presign requests per IP.
	PresignRate  = 0.5
	PresignBurst = 10
)

// Router builds the chi routing table: CORS, request logging, rate limiting,
// then the websocket and API handlers.
func Router(deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	presignLimiter := limiter.NewIPRateLimiter(rate.Limit(PresignRate), PresignBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "pitchchat",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/attachments", func(att chi.Router) {
			att.Use(presignLimiter.Middleware)
			att.Post("/presign-upload", HandlePresignUpload(deps))
			att.Get("/presign-download", HandlePresignDownload(deps))
		})

		api.Get("/presence/online", HandleOnlineUsers(deps))
	})

	r.With(connectLimiter.Middleware).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

package handler

import (
	"pitchchat/internal/app/realtime"
	"pitchchat/internal/app/session"
	"pitchchat/internal/app/storage"
	"pitchchat/internal/configs"
)

// AppDeps bundles the collaborators the HTTP layer needs.
type AppDeps struct {
	Hub      *realtime.Hub
	Config   *configs.AppConfig
	Sessions session.Verifier
	Storage  storage.Service
}

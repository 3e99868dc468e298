package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/healthverse/care-relay/pkg/log"
	"github.com/healthverse/care-relay/pkg/middleware"
)

// NewRouter wires the REST handler and both WebSocket pools on one engine.
func NewRouter(allowedOrigins []string, api *Handler, video, notes *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(log.L()))
	r.Use(middleware.CORS(allowedOrigins))

	api.RegisterRoutes(r)
	video.RegisterRoutes(r, "/ws/video")
	notes.RegisterRoutes(r, "/ws/notes")

	return r
}

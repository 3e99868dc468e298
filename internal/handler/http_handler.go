package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthverse/care-relay/internal/hub"
	"github.com/healthverse/care-relay/internal/ice"
	"github.com/healthverse/care-relay/internal/metrics"
	"github.com/healthverse/care-relay/internal/repository"
	"github.com/healthverse/care-relay/internal/service"
	"github.com/healthverse/care-relay/pkg/log"
	"github.com/healthverse/care-relay/pkg/response"
)

// Handler handles the REST endpoints of relay-service.
type Handler struct {
	hubs        []*hub.Hub
	noteService service.NoteService
	ice         *ice.Provider
	metrics     *metrics.Metrics
}

// NewHandler creates a new HTTP handler.
func NewHandler(hubs []*hub.Hub, noteService service.NoteService, iceProvider *ice.Provider, m *metrics.Metrics) *Handler {
	return &Handler{
		hubs:        hubs,
		noteService: noteService,
		ice:         iceProvider,
		metrics:     m,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/relay/stats", h.Stats)
		api.GET("/ice-servers", h.ICEServers)
		api.GET("/records/:id/notes", h.ListNotes)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns connection and room counts per pool.
func (h *Handler) Stats(c *gin.Context) {
	stats := make([]hub.Stats, 0, len(h.hubs))
	for _, hb := range h.hubs {
		stats = append(stats, hb.Stats())
	}
	response.Success(c, stats)
}

// ICEServers returns the STUN/TURN configuration in RTCConfiguration shape.
func (h *Handler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"iceServers": h.ice.Servers(c.Request.Context()),
	})
}

// ListNotes returns the doctor notes of a record.
func (h *Handler) ListNotes(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	recordID := c.Param("id")
	notes, err := h.noteService.ListNotes(ctx, recordID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			response.NotFound(c, "record not found")
			return
		}
		l.Error().Err(err).Str(log.FieldRecordID, recordID).Msg("failed to list notes")
		response.InternalError(c, "failed to list notes")
		return
	}

	response.Success(c, notes)
}

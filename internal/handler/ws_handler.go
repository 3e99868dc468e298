package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/internal/hub"
	"github.com/healthverse/care-relay/internal/metrics"
	"github.com/healthverse/care-relay/internal/service"
	pkglog "github.com/healthverse/care-relay/pkg/log"
	"github.com/healthverse/care-relay/pkg/middleware"
)

// Pool names.
const (
	PoolVideo = "video"
	PoolNotes = "notes"
)

// NewUpgrader returns an upgrader that only accepts the given origins. An
// empty list accepts every origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// WSHandler handles the WebSocket connections of one pool. Each pool
// accepts only its own set of commands.
type WSHandler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	accepts  map[domain.Kind]bool
	signal   service.SignalService
	notes    service.NoteService
}

// NewCallHandler creates the handler of the call pool.
func NewCallHandler(h *hub.Hub, svc service.SignalService, upgrader websocket.Upgrader, m *metrics.Metrics) *WSHandler {
	return &WSHandler{
		hub:      h,
		upgrader: upgrader,
		metrics:  m,
		signal:   svc,
		accepts: map[domain.Kind]bool{
			domain.KindJoinRoom:          true,
			domain.KindCallUser:          true,
			domain.KindAcceptCall:        true,
			domain.KindNegotiationNeeded: true,
			domain.KindNegotiationDone:   true,
		},
	}
}

// NewNotesHandler creates the handler of the notes pool.
func NewNotesHandler(h *hub.Hub, svc service.NoteService, upgrader websocket.Upgrader, m *metrics.Metrics) *WSHandler {
	return &WSHandler{
		hub:      h,
		upgrader: upgrader,
		metrics:  m,
		notes:    svc,
		accepts: map[domain.Kind]bool{
			domain.KindAddNote: true,
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and message routing.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Str(pkglog.FieldPool, h.hub.Pool()).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, h.hub, conn, domain.NewSession(clientID, h.hub.Pool(), r.RemoteAddr))

	if h.signal != nil {
		// Runs once the hub has forgotten the client
		client.SetDisconnectHandler(func(c *hub.Client) {
			ctx := pkglog.WithConn(context.Background(), h.hub.Pool(), c.ID)
			if err := h.signal.HandleDisconnect(ctx, c); err != nil {
				l.Error().Err(err).Str(pkglog.FieldConnID, c.ID).Msg("disconnect handler error")
			}
		})
	}

	if err := h.hub.Register(client); err != nil {
		l.Warn().Err(err).Msg("rejecting connection")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	pool := h.hub.Pool()
	ctx := pkglog.WithConn(context.Background(), pool, client.ID)
	l := pkglog.Ctx(ctx)

	cmd, err := domain.DecodeCommand(message)
	if err == nil && !h.accepts[cmd.Kind()] {
		err = &domain.DecodeError{Code: domain.ErrCodeWrongDialect, Type: cmd.Kind().String()}
	}
	if err != nil {
		code := domain.ErrCodeMalformed
		var decErr *domain.DecodeError
		if errors.As(err, &decErr) {
			code = decErr.Code
		}
		h.metrics.IncDecodeError(pool, string(code))
		l.Warn().Err(err).Str("code", string(code)).Msg("dropping inbound message")
		return
	}

	h.metrics.IncMessage(pool, cmd.Kind().String())

	switch c := cmd.(type) {
	case domain.JoinRoom:
		err = h.signal.HandleJoinRoom(ctx, client, c)
	case domain.AddNote:
		err = h.notes.HandleAddNote(ctx, client, c)
	case domain.Signal:
		err = h.signal.HandleSignal(ctx, client, c)
	}
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldMsgType, cmd.Kind().String()).Msg("command failed")
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(r *gin.Engine, path string) {
	r.GET(path, gin.WrapF(h.HandleWebSocket))
}

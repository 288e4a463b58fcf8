package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// консоли открываются с других доменов, доступ ограничен API-ключом
	CheckOrigin: func(*http.Request) bool { return true },
}

// @Summary Console push channel
// @Description WebSocket with incident events. Dispatchers receive everything, commanders only their incidents, reporters a single incident of their own session.
// @Tags Realtime
// @Security ApiKeyAuth
// @Param incident_id query string false "Incident to follow (reporters)"
// @Param session_id query string false "Reporter session that submitted the incident (reporters)"
// @Success 101 "Switching Protocols"
// @Failure 400 {object} ErrorResponse "Invalid subscription"
// @Failure 403 {object} ErrorResponse "Incident belongs to another session"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Router /ws [get]
func (h *Handler) consoleSocket(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "consoleSocket").WithField("role", actor.Role)

	var requested models.SubscriptionFilter
	if raw := c.Query("incident_id"); raw != "" && actor.Role == models.RolePublic {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
			return
		}
		requested.IncidentID = id
	}
	filter, err := realtime.ScopeFilter(actor, requested)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}

	// заявитель видит только инцидент своей сессии
	if actor.Role == models.RolePublic {
		incident, err := h.incidents.GetIncident(c.Request.Context(), filter.IncidentID)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if incident.SessionID == "" || incident.SessionID != c.Query("session_id") {
			log.WithField("incident_id", filter.IncidentID).Warn("Reporter asked for incident of another session")
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "incident belongs to another session", Code: "forbidden"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	if err := h.consoles.Serve(c.Request.Context(), conn, actor, filter); err != nil {
		log.WithError(err).Warn("Console rejected")
	}
}

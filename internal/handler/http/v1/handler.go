package v1

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/resq_dispatch/internal/config"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/shenikar/resq_dispatch/internal/realtime"
	"github.com/shenikar/resq_dispatch/internal/service"
	"github.com/sirupsen/logrus"
)

// ReadinessCheck проверяет доступность зависимости
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	submissions service.SubmissionService
	incidents   service.IncidentService
	approvals   service.ApprovalService
	consoles    *realtime.SessionManager
	readiness   map[string]ReadinessCheck
	logger      *logrus.Logger
	validate    *validator.Validate
	cfg         *config.Config
}

func NewHandler(
	submissions service.SubmissionService,
	incidents service.IncidentService,
	approvals service.ApprovalService,
	consoles *realtime.SessionManager,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		submissions: submissions,
		incidents:   incidents,
		approvals:   approvals,
		consoles:    consoles,
		readiness:   make(map[string]ReadinessCheck),
		logger:      logger,
		validate:    validator.New(),
		cfg:         cfg,
	}
}

// AddReadinessCheck регистрирует проверку для /system/ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.readiness[name] = check
}

// @Summary Submit an emergency report
// @Description Normalize, analyze and register a report. The incident is created only after a complete successful analysis.
// @Tags Reports
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param report body SubmitReportRequest true "Report"
// @Success 201 {object} SubmitReportResponse
// @Failure 400 {object} ErrorResponse "Empty or invalid submission"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 409 {object} ErrorResponse "Superseded by a newer submission"
// @Failure 422 {object} ErrorResponse "Rejected by safety check"
// @Failure 503 {object} ErrorResponse "Transient failure, retry"
// @Router /reports [post]
func (h *Handler) submitReport(c *gin.Context) {
	var input SubmitReportRequest
	log := h.logger.WithField("method", "submitReport")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "latitude and longitude must be sent together", Code: "validation"})
		return
	}

	actor := actorFrom(c)
	result, err := h.submissions.Submit(c.Request.Context(), DTOToSubmission(input, actor.Role))
	if err != nil {
		writeError(c, log, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitReportResponse{
		SubmissionID: result.SubmissionID,
		SessionID:    result.SessionID,
		Incident:     ModelToIncidentResponse(result.Incident),
		Analysis:     result.Analysis,
	})
}

// @Summary Get incident by ID
// @Description Get the current snapshot of an incident with its transition history.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidents.GetIncident(c.Request.Context(), id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get approval history
// @Description Append-only log of dispatcher decisions for an incident.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} models.ApprovalRecord
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /incidents/{id}/approvals [get]
func (h *Handler) getApprovalHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getApprovalHistory").WithField("id", id)

	records, err := h.incidents.ApprovalHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	if records == nil {
		records = []*models.ApprovalRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// @Summary Dispatcher queue
// @Description Incidents awaiting dispatch, P1 first, newest first within a priority.
// @Tags Dispatcher
// @Produce json
// @Security ApiKeyAuth
// @Param priority query string false "Priority filter" Enums(P1, P2, P3, P4)
// @Param type query string false "Incident type filter"
// @Param limit query int false "Max items" default(50)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /dispatcher/queue [get]
func (h *Handler) getQueue(c *gin.Context) {
	log := h.logger.WithField("method", "getQueue")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter := models.QueueFilter{
		Priority: models.Priority(c.Query("priority")),
		Type:     models.IncidentType(c.Query("type")),
		Limit:    limit,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown incident type", Code: "validation"})
		return
	}

	incidents, err := h.incidents.QueryQueue(c.Request.Context(), filter)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Approve an incident
// @Description Approve a pending incident, optionally revising priority and assets. Assigns a commander.
// @Tags Dispatcher
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param decision body ApproveRequest true "Approval"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Invalid transition or version conflict"
// @Router /dispatcher/{id}/approve [post]
func (h *Handler) approveIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "approveIncident").WithField("id", id)

	var input ApproveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}

	incident, err := h.approvals.Approve(c.Request.Context(), id, input.Version, actorFrom(c), DTOToOverrides(input))
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Reject an incident
// @Description Reject a pending incident. A reason is required.
// @Tags Dispatcher
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param decision body RejectRequest true "Rejection"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Invalid transition or version conflict"
// @Router /dispatcher/{id}/reject [post]
func (h *Handler) rejectIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "rejectIncident").WithField("id", id)

	var input RejectRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}

	incident, err := h.approvals.Reject(c.Request.Context(), id, input.Version, actorFrom(c), input.Reason, input.Notes)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Commander roster
// @Description Commanders with availability and active incidents.
// @Tags Dispatcher
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.CommanderStatus
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /dispatcher/commanders [get]
func (h *Handler) listCommanders(c *gin.Context) {
	c.JSON(http.StatusOK, h.approvals.Commanders(c.Request.Context()))
}

// @Summary Active incidents of the commander
// @Description Incidents assigned to the calling commander that are not resolved yet.
// @Tags Commander
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} IncidentResponse
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /commander/active [get]
func (h *Handler) getActive(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "getActive").WithField("commander_id", actor.ID)

	incidents, err := h.incidents.QueryActive(c.Request.Context(), actor.ID)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Resolved incidents of the commander
// @Description Most recently resolved incidents of the calling commander.
// @Tags Commander
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Max items" default(20)
// @Success 200 {array} IncidentResponse
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /commander/history [get]
func (h *Handler) getResolved(c *gin.Context) {
	actor := actorFrom(c)
	log := h.logger.WithField("method", "getResolved").WithField("commander_id", actor.ID)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	incidents, err := h.incidents.QueryResolved(c.Request.Context(), actor.ID, limit)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Update incident status
// @Description Field transition by the assigned commander.
// @Tags Commander
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param update body StatusUpdateRequest true "Status update"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Not the assigned commander"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Invalid transition or version conflict"
// @Router /commander/{id}/status [post]
func (h *Handler) updateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "updateStatus").WithField("id", id)

	var input StatusUpdateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
		return
	}

	incident, err := h.incidents.UpdateStatus(c.Request.Context(), id, input.Version, models.Status(input.Status), actorFrom(c), input.Notes)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get conversation session
// @Description Message history of a reporting session.
// @Tags Chat
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Session ID"
// @Success 200 {array} models.ChatMessage
// @Router /chat/sessions/{id} [get]
func (h *Handler) getSession(c *gin.Context) {
	sessionID := c.Param("id")
	log := h.logger.WithField("method", "getSession").WithField("session_id", sessionID)

	messages, err := h.submissions.SessionHistory(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, log, err)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

// @Summary Clear conversation session
// @Description Delete the message history of a reporting session.
// @Tags Chat
// @Security ApiKeyAuth
// @Param id path string true "Session ID"
// @Success 204 "No Content"
// @Router /chat/sessions/{id} [delete]
func (h *Handler) deleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	log := h.logger.WithField("method", "deleteSession").WithField("session_id", sessionID)

	if err := h.submissions.ClearSession(c.Request.Context(), sessionID); err != nil {
		writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Get application readiness
// @Description Check that storage dependencies respond
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string "All dependencies ready"
// @Failure 503 {object} map[string]string "Some dependency is down"
// @Router /system/ready [get]
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := gin.H{}
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			h.logger.WithError(err).WithField("dependency", name).Warn("Readiness check failed")
			result[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	c.JSON(status, result)
}

package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/resq_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// writeError переводит доменную ошибку в HTTP-ответ
func writeError(c *gin.Context, log *logrus.Entry, err error) {
	var (
		conflict  *models.VersionConflictError
		rejection *models.SafetyRejectionError
	)

	switch {
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: "submission rejected by safety check",
			Kind:  "safety_rejected",
			Stage: rejection.Stage,
			Rule:  rejection.Rule,
		})
	case models.IsSafetyRejection(err):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "submission rejected by safety check", Kind: "safety_rejected"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:          "incident was modified, reload and retry",
			Code:           "version_conflict",
			CurrentVersion: conflict.Current,
		})
	case errors.Is(err, models.ErrVersionConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "incident was modified, reload and retry", Code: "version_conflict"})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, models.ErrNoCommander):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no commander available", Code: "no_commander", Retryable: true})
	case errors.Is(err, models.ErrSubmissionReplaced):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "superseded by a newer submission", Code: "superseded"})
	case errors.Is(err, models.ErrEmptySubmission),
		errors.Is(err, models.ErrReasonRequired),
		errors.Is(err, models.ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, models.ErrActorNotPermitted):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, models.ErrIncidentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "incident not found"})
	case models.IsRetryable(err):
		log.WithError(err).Warn("Transient failure")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "unavailable", Retryable: true})
	default:
		log.WithError(err).Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

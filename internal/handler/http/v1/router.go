package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/shenikar/resq_dispatch/internal/models"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Служебные маршруты без аутентификации
	api.GET("/system/health", h.healthCheck)
	api.GET("/system/ready", h.readinessCheck)

	secured := api.Group("", APIKeyAuthMiddleware(h.cfg, h.logger), ActorMiddleware(h.cfg, h.logger))

	// Прием обращений
	secured.POST("/reports", h.submitReport)

	incidents := secured.Group("/incidents")
	{
		incidents.GET("/:id", h.getIncident)
		incidents.GET("/:id/approvals", RequireRole(models.RoleDispatcher), h.getApprovalHistory)
	}

	// Консоль диспетчера
	dispatcher := secured.Group("/dispatcher", RequireRole(models.RoleDispatcher))
	{
		dispatcher.GET("/queue", h.getQueue)
		dispatcher.GET("/commanders", h.listCommanders)
		dispatcher.POST("/:id/approve", h.approveIncident)
		dispatcher.POST("/:id/reject", h.rejectIncident)
	}

	// Консоль командира
	commander := secured.Group("/commander", RequireRole(models.RoleCommander))
	{
		commander.GET("/active", h.getActive)
		commander.GET("/history", h.getResolved)
		commander.POST("/:id/status", h.updateStatus)
	}

	chat := secured.Group("/chat/sessions")
	{
		chat.GET("/:id", h.getSession)
		chat.DELETE("/:id", h.deleteSession)
	}

	// Канал событий для консолей
	secured.GET("/ws", h.consoleSocket)
}

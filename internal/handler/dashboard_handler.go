package handler

import (
	"net/http"

	"reimburse/internal/middleware"
	"reimburse/internal/model"
	"reimburse/internal/service"
	"reimburse/pkg/response"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
}

func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyRole := middleware.RequireRole(model.RoleEmployee, model.RoleManager, model.RoleFinance, model.RoleAudit, model.RoleAdmin)
	router.GET("/api/dashboard", anyRole, h.Dashboard)
}

// Dashboard handles GET /api/dashboard
// @Summary      Role-scoped dashboard
// @Description  Returns the caller's identity, the request queues their role may see, and global counters for admins
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.DashboardResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	result, err := h.dashboardService.Dashboard(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

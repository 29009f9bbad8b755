package handler

import (
	"net/http"

	"reimburse/internal/middleware"
	"reimburse/internal/model"
	"reimburse/internal/service"
	"reimburse/pkg/response"

	"github.com/gin-gonic/gin"
)

type PolicyHandler struct {
	policyService service.PolicyService
}

func NewPolicyHandler(policyService service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policyService: policyService}
}

func (h *PolicyHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyRole := middleware.RequireRole(model.RoleEmployee, model.RoleManager, model.RoleFinance, model.RoleAudit, model.RoleAdmin)

	router.GET("/api/policies", anyRole, h.ListPolicies)
	router.POST("/api/admin/policies", middleware.RequireRole(model.RoleAdmin), h.UpsertPolicy)
}

// ListPolicies handles GET /api/policies
// @Summary      List spending policies
// @Description  Returns all per-category limits so submitters can see the advisory ceilings
// @Tags         policies
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.PolicyResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/policies [get]
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	policies, err := h.policyService.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, policies))
}

// UpsertPolicy handles POST /api/admin/policies
// @Summary      Create or update a policy
// @Description  Admin-only upsert keyed by category
// @Tags         policies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpsertPolicyRequest  true  "Policy payload"
// @Success      200      {object}  response.Response{data=service.PolicyResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/admin/policies [post]
func (h *PolicyHandler) UpsertPolicy(c *gin.Context) {
	var req service.UpsertPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	policy, err := h.policyService.Upsert(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, policy))
}

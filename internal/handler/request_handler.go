package handler

import (
	"io"
	"net/http"
	"strconv"

	"reimburse/internal/middleware"
	"reimburse/internal/model"
	"reimburse/internal/service"
	"reimburse/internal/workflow"
	"reimburse/pkg/pagination"
	"reimburse/pkg/response"

	"github.com/gin-gonic/gin"
)

// maxReceiptBytes caps uploaded receipt images (5 MB).
const maxReceiptBytes = 5 << 20

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	anyRole := middleware.RequireRole(model.RoleEmployee, model.RoleManager, model.RoleFinance, model.RoleAudit, model.RoleAdmin)

	requests := router.Group("/api/requests")
	{
		requests.GET("", anyRole, h.ListRequests)
		requests.POST("", middleware.RequireRole(model.RoleEmployee, model.RoleManager), h.CreateRequest)
		requests.PUT("/:id", middleware.RequireRole(model.RoleEmployee, model.RoleManager), h.UpdateRequest)
		requests.DELETE("/:id", middleware.RequireRole(model.RoleEmployee, model.RoleManager), h.DeleteRequest)
		requests.PUT("/:id/approve", middleware.RequireRole(model.RoleManager), h.Approve)
		requests.PUT("/:id/reject", middleware.RequireRole(model.RoleManager, model.RoleFinance), h.Reject)
		requests.PUT("/:id/pay", middleware.RequireRole(model.RoleFinance), h.Pay)
	}
}

// CreateRequest handles POST /api/requests with a multipart payload
// @Summary      Submit a reimbursement request
// @Description  Creates a new expense claim with an optional receipt image. Responds with the over-limit flag when the amount exceeds the category policy.
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        category     formData  string  true   "Expense category"
// @Param        description  formData  string  true   "Expense details"
// @Param        amount       formData  string  true   "Claimed amount"
// @Param        file         formData  file    false  "Receipt image"
// @Success      201  {object}  response.Response{data=service.RequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	dto := service.CreateRequestDTO{
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		Amount:      c.PostForm("amount"),
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		if fileHeader.Size > maxReceiptBytes {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "receipt exceeds the 5MB limit"))
			return
		}
		file, openErr := fileHeader.Open()
		if openErr != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read receipt upload"))
			return
		}
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read receipt upload"))
			return
		}
		dto.FileName = fileHeader.Filename
		dto.FileData = data
	}

	result, err := h.requestService.CreateRequest(c.Request.Context(), actorFrom(c), dto)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListRequests handles GET /api/requests with role-scoped visibility
// @Summary      List visible requests
// @Description  Returns the requests the caller's role may see: own, team, finance queue, or all.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page   query  int  false  "Page number (audit/admin scope only)"
// @Param        limit  query  int  false  "Items per page (audit/admin scope only)"
// @Success      200  {object}  response.Response{data=service.VisibleRequests}
// @Failure      500  {object}  response.Response
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	params := pagination.Parse(c)

	result, err := h.requestService.ListVisible(c.Request.Context(), actorFrom(c), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateRequest handles PUT /api/requests/:id
// @Summary      Edit a pending request
// @Description  Owner-only edit of category, description and amount while the request is still Pending.
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  int                        true  "Request ID"
// @Param        payload  body  service.UpdateRequestDTO   true  "Updated fields"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id} [put]
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	reqID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid request id"))
		return
	}

	var dto service.UpdateRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.UpdateRequest(c.Request.Context(), actorFrom(c), reqID, dto)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteRequest handles DELETE /api/requests/:id
// @Summary      Withdraw a pending request
// @Description  Owner-only deletion while the request is still Pending.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Request ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id} [delete]
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	reqID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid request id"))
		return
	}

	if err := h.requestService.DeleteRequest(c.Request.Context(), actorFrom(c), reqID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Request deleted successfully"))
}

// Approve handles PUT /api/requests/:id/approve
// @Summary      Approve a team request
// @Description  Manager approval of a direct report's Pending request.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/approve [put]
func (h *RequestHandler) Approve(c *gin.Context) {
	h.transition(c, workflow.ActionApprove)
}

// Reject handles PUT /api/requests/:id/reject
// @Summary      Reject a request
// @Description  Manager rejection of a Pending team request, or finance rejection of a manager's own claim awaiting finance.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/reject [put]
func (h *RequestHandler) Reject(c *gin.Context) {
	h.transition(c, workflow.ActionReject)
}

// Pay handles PUT /api/requests/:id/pay
// @Summary      Release payment
// @Description  Finance pays an approved or awaiting-finance request. Exactly one of any concurrent duplicate calls succeeds.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/pay [put]
func (h *RequestHandler) Pay(c *gin.Context) {
	h.transition(c, workflow.ActionPay)
}

func (h *RequestHandler) transition(c *gin.Context, action string) {
	reqID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid request id"))
		return
	}

	result, err := h.requestService.Transition(c.Request.Context(), actorFrom(c), reqID, action)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

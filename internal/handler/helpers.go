package handler

import (
	"reimburse/internal/middleware"
	"reimburse/internal/service"
	"reimburse/pkg/apperr"
	"reimburse/pkg/response"

	"github.com/gin-gonic/gin"
)

// actorFrom builds the authenticated Actor out of the context values the
// auth middleware set.
func actorFrom(c *gin.Context) service.Actor {
	empID, _ := c.Get(middleware.CtxEmpID)
	role, _ := c.Get(middleware.CtxRole)
	id, _ := empID.(int)
	r, _ := role.(string)
	return service.Actor{EmpID: id, Role: r}
}

// writeError maps a service error to the HTTP status its kind dictates.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.JSON(status, response.Error(status, err.Error()))
}

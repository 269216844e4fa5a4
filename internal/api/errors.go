package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/labyard/internal/workflow"
)

// respond writes err as JSON with the status its type maps to. Errors that
// are not domain errors are logged by the request logger and reported as 500.
func respond(c *gin.Context, err error) {
	var (
		notFound   *workflow.NotFoundError
		conflict   *workflow.ConflictError
		invalid    *workflow.ValidationError
		transition *workflow.InvalidTransitionError
		forbidden  *workflow.ForbiddenError
	)
	switch {
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "invalid_transition",
			"message": transition.Error(),
			"from":    transition.From,
			"to":      transition.To,
			"allowed": transition.Allowed,
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": notFound.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"code": "conflict", "message": conflict.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "validation", "message": invalid.Error(), "field": invalid.Field})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"code": "forbidden", "message": forbidden.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal", "message": "internal error"})
	}
}

// badRequest reports a body or query that could not be decoded.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": err.Error()})
}

// queryInt reads a positive integer query parameter; absent yields def.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

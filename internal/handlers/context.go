package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/uniauth/pkg/errors"
	"github.com/charlesng35/uniauth/pkg/response"
)

// requestContext carries the request origin set by middleware down to the
// services so audit rows can record it.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// requireParam reads a path parameter, answering 400 when it is blank.
func requireParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		response.Error(c, errors.NewBadRequest(name+" is required"))
		return "", false
	}
	return value, true
}

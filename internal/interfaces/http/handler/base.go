package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pimsync/backend/internal/interfaces/http/dto"
)

// BaseHandler provides common response helpers
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithData sends an error response that also carries data
func (h *BaseHandler) ErrorWithData(c *gin.Context, code, message string, data any) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)).WithData(data))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 response without leaking the cause
func (h *BaseHandler) InternalError(c *gin.Context) {
	h.Error(c, dto.ErrCodeInternal, "An internal error occurred")
}

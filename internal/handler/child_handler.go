package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	"github.com/malekaidoudi/creche-sub003/internal/service"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
	"github.com/malekaidoudi/creche-sub003/pkg/response"
)

// ChildHandler exposes child records over HTTP.
type ChildHandler struct {
	service *service.ChildService
}

// NewChildHandler creates a new handler.
func NewChildHandler(svc *service.ChildService) *ChildHandler {
	return &ChildHandler{service: svc}
}

// List returns children visible to the requesting user.
func (h *ChildHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ChildFilter{Search: c.Query("search")}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	children, pagination, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, children, pagination)
}

// Get returns one child.
func (h *ChildHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	child, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, child, nil)
}

// ListDocuments returns the documents attached to a child.
func (h *ChildHandler) ListDocuments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, docs, nil)
}

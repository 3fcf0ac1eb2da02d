package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/malekaidoudi/creche-sub003/internal/service"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
	"github.com/malekaidoudi/creche-sub003/pkg/response"
)

// SettingHandler exposes typed application settings over HTTP.
type SettingHandler struct {
	service *service.SettingService
}

// NewSettingHandler creates a new handler.
func NewSettingHandler(svc *service.SettingService) *SettingHandler {
	return &SettingHandler{service: svc}
}

// List returns all settings. Admin only.
func (h *SettingHandler) List(c *gin.Context) {
	settings, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, settings, nil)
}

// ListPublic returns the public subset without authentication.
func (h *SettingHandler) ListPublic(c *gin.Context) {
	settings, err := h.service.ListPublic(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, settings, nil)
}

// Get returns one setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	setting, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, setting, nil)
}

// Update writes a typed setting value and invalidates the cache.
func (h *SettingHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid setting payload"))
		return
	}

	setting, err := h.service.Update(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, setting, nil)
}

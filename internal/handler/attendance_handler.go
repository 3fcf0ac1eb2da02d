package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	"github.com/malekaidoudi/creche-sub003/internal/service"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
	"github.com/malekaidoudi/creche-sub003/pkg/response"
)

// AttendanceHandler exposes daily attendance recording over HTTP.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// CheckIn records a child arriving today.
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}

	att, err := h.service.CheckIn(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, att)
}

// CheckOut records a child leaving today.
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	var req service.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-out payload"))
		return
	}

	att, err := h.service.CheckOut(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, att, nil)
}

// List returns attendance records for the filter.
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{ChildID: c.Query("child_id")}
	if from := c.Query("date_from"); from != "" {
		if ts, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &ts
		}
	}
	if to := c.Query("date_to"); to != "" {
		if ts, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &ts
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// DailySummary aggregates presence numbers for one day, defaulting to today.
func (h *AttendanceHandler) DailySummary(c *gin.Context) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	summary, err := h.service.DailySummary(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

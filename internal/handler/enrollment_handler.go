package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	"github.com/malekaidoudi/creche-sub003/internal/service"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
	"github.com/malekaidoudi/creche-sub003/pkg/response"
	"github.com/malekaidoudi/creche-sub003/pkg/storage"
)

// EnrollmentHandler exposes the enrollment application workflow over HTTP.
type EnrollmentHandler struct {
	service *service.EnrollmentService
	metrics *service.MetricsService
	signer  *storage.SignedURLSigner
	files   *storage.LocalStorage
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService, metrics *service.MetricsService, signer *storage.SignedURLSigner, files *storage.LocalStorage) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, metrics: metrics, signer: signer, files: files}
}

// Create registers a public enrollment application.
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, enrollment)
}

// UploadDocuments accepts a multipart submission of supporting documents for
// a pending application. Invalid files are reported back as skipped.
func (h *EnrollmentHandler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}

	files := form.File["documents"]
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "no documents provided"))
		return
	}

	categories := form.Value["categories"]
	uploads := make([]service.DocumentUpload, 0, len(files))
	for i, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
			return
		}
		data, err := io.ReadAll(file)
		file.Close() //nolint:errcheck
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
			return
		}
		category := "other"
		if i < len(categories) && categories[i] != "" {
			category = categories[i]
		}
		uploads = append(uploads, service.DocumentUpload{
			FileName: fileHeader.Filename,
			Category: category,
			Data:     data,
		})
	}

	result, err := h.service.UploadDocuments(c.Request.Context(), c.Param("id"), uploads)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// List returns enrollments filtered by status and search term.
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		Status:    models.EnrollmentStatus(c.Query("status")),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get returns one enrollment with its documents.
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve runs the transactional approval of a pending application.
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Notes string `json:"notes"`
	}
	// Body is optional; a bare POST approves without notes.
	_ = c.ShouldBindJSON(&payload)

	result, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID, payload.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDecision("approved")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject marks a pending application as rejected.
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RejectEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}

	status, err := h.service.Reject(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDecision("rejected")
	}
	response.JSON(c, http.StatusOK, gin.H{"status": status}, nil)
}

// DocumentURL issues a short-lived signed download link for a document.
func (h *EnrollmentHandler) DocumentURL(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("docID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	token, expiresAt, err := h.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/api/v1/documents/download?token=" + token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}

// DownloadDocument streams a document referenced by a valid signed token.
// The token itself authenticates the request, so no session is required.
func (h *EnrollmentHandler) DownloadDocument(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	docID, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link"))
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), docID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if doc.FilePath != relPath {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download link does not match document"))
		return
	}

	file, err := h.files.Open(doc.FilePath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "stored file is missing"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat stored file"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), doc.MimeType, file, nil)
}

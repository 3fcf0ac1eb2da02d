package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	"github.com/malekaidoudi/creche-sub003/internal/repository"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, int, error)
	Approve(ctx context.Context, id, approverID string, notes *string, parentPasswordHash string) (*models.ApprovalResult, error)
	Reject(ctx context.Context, id, approverID string, status models.EnrollmentStatus, notes *string) error
	AddDocument(ctx context.Context, doc *models.EnrollmentDocument) error
	ListDocuments(ctx context.Context, enrollmentID string) ([]models.EnrollmentDocument, error)
	FindDocumentByID(ctx context.Context, id string) (*models.EnrollmentDocument, error)
}

type documentStore interface {
	Save(filename string, data []byte) (string, error)
}

type decisionNotifier interface {
	NotifyDecision(ctx context.Context, parentID string, enrollment *models.Enrollment, approved bool)
}

type auditRecorder interface {
	Record(ctx context.Context, userID *string, action, entity, entityID, detail string)
}

// CreateEnrollmentRequest is the public application payload. Only the
// applicant email and the child's first name are mandatory; families can
// complete the rest of the record before the decision.
type CreateEnrollmentRequest struct {
	ApplicantFirstName    string    `json:"applicant_first_name"`
	ApplicantLastName     string    `json:"applicant_last_name"`
	ApplicantEmail        string    `json:"applicant_email" validate:"required,email"`
	ApplicantPhone        string    `json:"applicant_phone"`
	ChildFirstName        string    `json:"child_first_name" validate:"required"`
	ChildLastName         string    `json:"child_last_name"`
	ChildBirthDate        time.Time `json:"child_birth_date"`
	ChildGender           string    `json:"child_gender" validate:"omitempty,oneof=M F"`
	MedicalInfo           string    `json:"medical_info"`
	EmergencyContactName  string    `json:"emergency_contact_name"`
	EmergencyContactPhone string    `json:"emergency_contact_phone"`
}

// RejectEnrollmentRequest carries the rejection decision.
type RejectEnrollmentRequest struct {
	Type   string `json:"type" validate:"required,oneof=incomplete delete"`
	Reason string `json:"reason"`
}

// DocumentUpload is one file extracted from a multipart submission.
type DocumentUpload struct {
	FileName string
	Category string
	Data     []byte
}

// SkippedDocument explains why an uploaded file was not accepted.
type SkippedDocument struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// UploadResult reports the accepted and skipped files of one submission.
type UploadResult struct {
	Accepted []models.EnrollmentDocument `json:"accepted"`
	Skipped  []SkippedDocument           `json:"skipped"`
}

// EnrollmentDetail combines an enrollment with its documents.
type EnrollmentDetail struct {
	models.Enrollment
	Documents []models.EnrollmentDocument `json:"documents"`
}

// EnrollmentService orchestrates the enrollment application workflow.
type EnrollmentService struct {
	repo         enrollmentRepository
	storage      documentStore
	notifier     decisionNotifier
	audit        auditRecorder
	validator    *validator.Validate
	logger       *zap.Logger
	maxFileSize  int64
	allowedMIMEs map[string]bool
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, storage documentStore, notifier decisionNotifier, audit auditRecorder, maxFileSize int64, allowedMIMEs []string, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	mimes := make(map[string]bool, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		mimes[strings.ToLower(strings.TrimSpace(m))] = true
	}
	if len(mimes) == 0 {
		mimes = map[string]bool{"image/jpeg": true, "image/png": true, "application/pdf": true}
	}
	return &EnrollmentService{
		repo:         repo,
		storage:      storage,
		notifier:     notifier,
		audit:        audit,
		validator:    validate,
		logger:       logger,
		maxFileSize:  maxFileSize,
		allowedMIMEs: mimes,
	}
}

// Create registers a new pending application.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment := &models.Enrollment{
		ApplicantFirstName:    req.ApplicantFirstName,
		ApplicantLastName:     req.ApplicantLastName,
		ApplicantEmail:        strings.ToLower(strings.TrimSpace(req.ApplicantEmail)),
		ApplicantPhone:        req.ApplicantPhone,
		ChildFirstName:        req.ChildFirstName,
		ChildLastName:         req.ChildLastName,
		ChildBirthDate:        req.ChildBirthDate,
		ChildGender:           req.ChildGender,
		MedicalInfo:           req.MedicalInfo,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		Status:                models.EnrollmentStatusPending,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("applicant_email", enrollment.ApplicantEmail))
	return enrollment, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns an enrollment with its attached documents.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	docs, err := s.repo.ListDocuments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment documents")
	}
	return &EnrollmentDetail{Enrollment: *enrollment, Documents: docs}, nil
}

// Approve runs the transactional approval and fans out notification and
// audit side effects after the commit succeeds.
func (s *EnrollmentService) Approve(ctx context.Context, id, approverID, notes string) (*models.ApprovalResult, error) {
	passwordHash, err := generatedPasswordHash()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prepare parent account")
	}
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	result, err := s.repo.Approve(ctx, id, approverID, notesPtr, passwordHash)
	if err != nil {
		switch {
		case err == sql.ErrNoRows:
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrNotPending):
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment has already been decided")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
		}
	}
	s.logger.Info("enrollment approved",
		zap.String("enrollment_id", id),
		zap.String("parent_id", result.ParentID),
		zap.String("child_id", result.ChildID),
		zap.Bool("parent_created", result.ParentCreated))
	s.afterDecision(ctx, id, approverID, result.ParentID, true)
	return result, nil
}

// Reject marks a pending application as rejected and returns the terminal
// status chosen. The type selects it: incomplete applications can be
// resubmitted by the family, deleted ones are final.
func (s *EnrollmentService) Reject(ctx context.Context, id, approverID string, req RejectEnrollmentRequest) (models.EnrollmentStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	status := models.EnrollmentStatusRejectedIncomplete
	if req.Type == "delete" {
		status = models.EnrollmentStatusRejectedDeleted
	}
	var notesPtr *string
	if req.Reason != "" {
		notesPtr = &req.Reason
	}
	if err := s.repo.Reject(ctx, id, approverID, status, notesPtr); err != nil {
		if err != sql.ErrNoRows {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject enrollment")
		}
		// Zero rows: either the enrollment is gone or it was already
		// decided. Distinguish to report the right status.
		if _, findErr := s.repo.FindByID(ctx, id); findErr == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return "", appErrors.Clone(appErrors.ErrConflict, "enrollment has already been decided")
	}
	s.logger.Info("enrollment rejected",
		zap.String("enrollment_id", id),
		zap.String("status", string(status)))
	s.afterDecision(ctx, id, approverID, "", false)
	return status, nil
}

// UploadDocuments attaches files to a pending enrollment. Files failing the
// size or MIME checks are skipped with a reason instead of failing the whole
// submission.
func (s *EnrollmentService) UploadDocuments(ctx context.Context, enrollmentID string, uploads []DocumentUpload) (*UploadResult, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "documents can only be added to pending enrollments")
	}

	result := &UploadResult{}
	for _, upload := range uploads {
		if int64(len(upload.Data)) > s.maxFileSize {
			result.Skipped = append(result.Skipped, SkippedDocument{FileName: upload.FileName, Reason: "file exceeds maximum size"})
			continue
		}
		mimeType := detectMIME(upload.Data)
		if !s.allowedMIMEs[mimeType] {
			result.Skipped = append(result.Skipped, SkippedDocument{FileName: upload.FileName, Reason: fmt.Sprintf("unsupported file type %s", mimeType)})
			continue
		}
		storedName := fmt.Sprintf("enrollments/%s/%s", enrollmentID, generateFilename(upload.FileName))
		if _, err := s.storage.Save(storedName, upload.Data); err != nil {
			s.logger.Warn("document store failed", zap.String("file", upload.FileName), zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedDocument{FileName: upload.FileName, Reason: "storage failure"})
			continue
		}
		doc := &models.EnrollmentDocument{
			EnrollmentID: enrollmentID,
			FilePath:     storedName,
			FileName:     upload.FileName,
			MimeType:     mimeType,
			Category:     upload.Category,
			SizeBytes:    int64(len(upload.Data)),
		}
		if err := s.repo.AddDocument(ctx, doc); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
		}
		result.Accepted = append(result.Accepted, *doc)
	}
	return result, nil
}

// GetDocument returns document metadata for download handling.
func (s *EnrollmentService) GetDocument(ctx context.Context, id string) (*models.EnrollmentDocument, error) {
	doc, err := s.repo.FindDocumentByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *EnrollmentService) afterDecision(ctx context.Context, enrollmentID, approverID, parentID string, approved bool) {
	action := "enrollment.reject"
	if approved {
		action = "enrollment.approve"
	}
	if s.audit != nil {
		s.audit.Record(ctx, &approverID, action, "enrollment", enrollmentID, "")
	}
	if s.notifier == nil {
		return
	}
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		s.logger.Warn("load enrollment for notification failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return
	}
	target := parentID
	if target == "" && enrollment.ParentID != nil {
		target = *enrollment.ParentID
	}
	if target == "" {
		// Rejected applicants may not have an account yet.
		return
	}
	s.notifier.NotifyDecision(ctx, target, enrollment, approved)
}

func generatedPasswordHash() (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash generated password: %w", err)
	}
	return string(hash), nil
}

func detectMIME(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mimeType := http.DetectContentType(head)
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(mimeType)
}

func generateFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = sanitizeFilename(base)
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s-%s%s", base, uuid.NewString()[:8], ext)
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-_")
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	"github.com/malekaidoudi/creche-sub003/internal/repository"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type enrollmentRepoStub struct {
	enrollments map[string]*models.Enrollment
	documents   map[string][]models.EnrollmentDocument
	approveErr  error
	rejectErr   error
}

func newEnrollmentRepoStub() *enrollmentRepoStub {
	return &enrollmentRepoStub{
		enrollments: make(map[string]*models.Enrollment),
		documents:   make(map[string][]models.EnrollmentDocument),
	}
}

func (m *enrollmentRepoStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = "enr-stub"
	}
	m.enrollments[enrollment.ID] = enrollment
	return nil
}

func (m *enrollmentRepoStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, int, error) {
	var result []models.EnrollmentSummary
	for _, e := range m.enrollments {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		result = append(result, models.EnrollmentSummary{Enrollment: *e, DocumentCount: len(m.documents[e.ID])})
	}
	return result, len(result), nil
}

func (m *enrollmentRepoStub) Approve(ctx context.Context, id, approverID string, notes *string, parentPasswordHash string) (*models.ApprovalResult, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if e.Status != models.EnrollmentStatusPending {
		return nil, repository.ErrNotPending
	}
	parentID := "parent-stub"
	childID := "child-stub"
	now := time.Now().UTC()
	e.Status = models.EnrollmentStatusApproved
	e.ParentID = &parentID
	e.ChildID = &childID
	e.ApprovedBy = &approverID
	e.DecidedAt = &now
	return &models.ApprovalResult{EnrollmentID: id, ParentID: parentID, ChildID: childID, ParentCreated: true}, nil
}

func (m *enrollmentRepoStub) Reject(ctx context.Context, id, approverID string, status models.EnrollmentStatus, notes *string) error {
	if m.rejectErr != nil {
		return m.rejectErr
	}
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusPending {
		return sql.ErrNoRows
	}
	e.Status = status
	e.ApprovedBy = &approverID
	e.DecisionNotes = notes
	return nil
}

func (m *enrollmentRepoStub) AddDocument(ctx context.Context, doc *models.EnrollmentDocument) error {
	if doc.ID == "" {
		doc.ID = "doc-stub"
	}
	m.documents[doc.EnrollmentID] = append(m.documents[doc.EnrollmentID], *doc)
	return nil
}

func (m *enrollmentRepoStub) ListDocuments(ctx context.Context, enrollmentID string) ([]models.EnrollmentDocument, error) {
	return m.documents[enrollmentID], nil
}

func (m *enrollmentRepoStub) FindDocumentByID(ctx context.Context, id string) (*models.EnrollmentDocument, error) {
	for _, docs := range m.documents {
		for _, doc := range docs {
			if doc.ID == id {
				return &doc, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

type storageStub struct {
	saved map[string][]byte
	err   error
}

func (s *storageStub) Save(filename string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[filename] = data
	return filename, nil
}

type notifierStub struct {
	calls []string
}

func (n *notifierStub) NotifyDecision(ctx context.Context, parentID string, enrollment *models.Enrollment, approved bool) {
	n.calls = append(n.calls, parentID)
}

type auditRecorderStub struct {
	actions []string
}

func (a *auditRecorderStub) Record(ctx context.Context, userID *string, action, entity, entityID, detail string) {
	a.actions = append(a.actions, action)
}

func pendingEnrollment(id string) *models.Enrollment {
	return &models.Enrollment{
		ID:                 id,
		ApplicantFirstName: "Amira",
		ApplicantLastName:  "Ben Salah",
		ApplicantEmail:     "amira@example.com",
		ChildFirstName:     "Yasmine",
		ChildLastName:      "Ben Salah",
		ChildBirthDate:     time.Now().AddDate(-2, 0, 0),
		Status:             models.EnrollmentStatusPending,
	}
}

func newTestEnrollmentService(repo *enrollmentRepoStub, store *storageStub, notifier *notifierStub, audit *auditRecorderStub) *EnrollmentService {
	var n decisionNotifier
	if notifier != nil {
		n = notifier
	}
	var a auditRecorder
	if audit != nil {
		a = audit
	}
	return NewEnrollmentService(repo, store, n, a, 10<<20, []string{"image/jpeg", "image/png", "application/pdf"}, nil, nil)
}

func TestEnrollmentServiceCreateValidatesPayload(t *testing.T) {
	svc := newTestEnrollmentService(newEnrollmentRepoStub(), &storageStub{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{
		ApplicantFirstName: "Amira",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Create(context.Background(), CreateEnrollmentRequest{
		ApplicantEmail: "not-an-email",
		ChildFirstName: "Sam",
	})
	appErr = appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollmentServiceCreateMinimalPayload(t *testing.T) {
	repo := newEnrollmentRepoStub()
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	enrollment, err := svc.Create(context.Background(), CreateEnrollmentRequest{
		ApplicantEmail: "a@x.com",
		ChildFirstName: "Sam",
	})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	require.Equal(t, "a@x.com", enrollment.ApplicantEmail)
	require.Equal(t, "Sam", enrollment.ChildFirstName)
	require.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceCreateNormalisesEmail(t *testing.T) {
	repo := newEnrollmentRepoStub()
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	enrollment, err := svc.Create(context.Background(), CreateEnrollmentRequest{
		ApplicantFirstName: "Amira",
		ApplicantLastName:  "Ben Salah",
		ApplicantEmail:     "  AMIRA@Example.com ",
		ChildFirstName:     "Yasmine",
		ChildLastName:      "Ben Salah",
		ChildBirthDate:     time.Now().AddDate(-2, 0, 0),
	})
	require.NoError(t, err)
	require.Equal(t, "amira@example.com", enrollment.ApplicantEmail)
	require.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
}

func TestEnrollmentServiceApproveSuccess(t *testing.T) {
	repo := newEnrollmentRepoStub()
	repo.enrollments["enr-1"] = pendingEnrollment("enr-1")
	notifier := &notifierStub{}
	audit := &auditRecorderStub{}
	svc := newTestEnrollmentService(repo, &storageStub{}, notifier, audit)

	result, err := svc.Approve(context.Background(), "enr-1", "admin-1", "welcome")
	require.NoError(t, err)
	require.Equal(t, "parent-stub", result.ParentID)
	require.Equal(t, "child-stub", result.ChildID)
	require.Equal(t, []string{"enrollment.approve"}, audit.actions)
	require.Equal(t, []string{"parent-stub"}, notifier.calls)
}

func TestEnrollmentServiceApproveNotFound(t *testing.T) {
	svc := newTestEnrollmentService(newEnrollmentRepoStub(), &storageStub{}, nil, nil)

	_, err := svc.Approve(context.Background(), "missing", "admin-1", "")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentServiceApproveAlreadyDecided(t *testing.T) {
	repo := newEnrollmentRepoStub()
	decided := pendingEnrollment("enr-1")
	decided.Status = models.EnrollmentStatusApproved
	repo.enrollments["enr-1"] = decided
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	_, err := svc.Approve(context.Background(), "enr-1", "admin-1", "")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceRejectTypeMapping(t *testing.T) {
	repo := newEnrollmentRepoStub()
	repo.enrollments["enr-1"] = pendingEnrollment("enr-1")
	repo.enrollments["enr-2"] = pendingEnrollment("enr-2")
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	status, err := svc.Reject(context.Background(), "enr-1", "admin-1", RejectEnrollmentRequest{Type: "incomplete", Reason: "missing documents"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusRejectedIncomplete, status)
	require.Equal(t, models.EnrollmentStatusRejectedIncomplete, repo.enrollments["enr-1"].Status)

	status, err = svc.Reject(context.Background(), "enr-2", "admin-1", RejectEnrollmentRequest{Type: "delete"})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusRejectedDeleted, status)
	require.Equal(t, models.EnrollmentStatusRejectedDeleted, repo.enrollments["enr-2"].Status)
}

func TestEnrollmentServiceRejectAlreadyDecided(t *testing.T) {
	repo := newEnrollmentRepoStub()
	decided := pendingEnrollment("enr-1")
	decided.Status = models.EnrollmentStatusRejectedDeleted
	repo.enrollments["enr-1"] = decided
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	_, err := svc.Reject(context.Background(), "enr-1", "admin-1", RejectEnrollmentRequest{Type: "incomplete"})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceRejectMissing(t *testing.T) {
	svc := newTestEnrollmentService(newEnrollmentRepoStub(), &storageStub{}, nil, nil)

	_, err := svc.Reject(context.Background(), "missing", "admin-1", RejectEnrollmentRequest{Type: "delete"})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentServiceRejectInvalidType(t *testing.T) {
	repo := newEnrollmentRepoStub()
	repo.enrollments["enr-1"] = pendingEnrollment("enr-1")
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	_, err := svc.Reject(context.Background(), "enr-1", "admin-1", RejectEnrollmentRequest{Type: "unknown"})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollmentServiceUploadSkipsInvalidFiles(t *testing.T) {
	repo := newEnrollmentRepoStub()
	repo.enrollments["enr-1"] = pendingEnrollment("enr-1")
	store := &storageStub{}
	svc := NewEnrollmentService(repo, store, nil, nil, 64, []string{"image/png", "application/pdf"}, nil, nil)

	pngData := []byte("\x89PNG\r\n\x1a\n rest of image")
	pdfData := []byte("%PDF-1.4 content")
	textData := []byte("just some text, not an accepted format")
	oversize := append([]byte("%PDF-1.4 "), make([]byte, 128)...)

	result, err := svc.UploadDocuments(context.Background(), "enr-1", []DocumentUpload{
		{FileName: "photo.png", Category: "photo", Data: pngData},
		{FileName: "birth.pdf", Category: "birth_certificate", Data: pdfData},
		{FileName: "notes.txt", Category: "other", Data: textData},
		{FileName: "big.pdf", Category: "other", Data: oversize},
	})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 2)
	require.Len(t, result.Skipped, 2)
	require.Equal(t, "notes.txt", result.Skipped[0].FileName)
	require.Equal(t, "big.pdf", result.Skipped[1].FileName)
	require.Len(t, store.saved, 2)
}

func TestEnrollmentServiceUploadRejectsDecidedEnrollment(t *testing.T) {
	repo := newEnrollmentRepoStub()
	decided := pendingEnrollment("enr-1")
	decided.Status = models.EnrollmentStatusApproved
	repo.enrollments["enr-1"] = decided
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	_, err := svc.UploadDocuments(context.Background(), "enr-1", []DocumentUpload{{FileName: "a.pdf", Data: []byte("%PDF-1.4")}})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceApproveInternalError(t *testing.T) {
	repo := newEnrollmentRepoStub()
	repo.enrollments["enr-1"] = pendingEnrollment("enr-1")
	repo.approveErr = errors.New("connection reset")
	svc := newTestEnrollmentService(repo, &storageStub{}, nil, nil)

	_, err := svc.Approve(context.Background(), "enr-1", "admin-1", "")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}

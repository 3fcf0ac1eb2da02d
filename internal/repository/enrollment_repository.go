package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/malekaidoudi/creche-sub003/internal/models"
)

// ErrNotPending signals that a decision targeted an enrollment whose status
// already moved past PENDING. Callers map it to a conflict.
var ErrNotPending = errors.New("enrollment is not pending")

const enrollmentColumns = `id, applicant_first_name, applicant_last_name, applicant_email, applicant_phone,
        child_first_name, child_last_name, child_birth_date, child_gender, medical_info,
        emergency_contact_name, emergency_contact_phone, status, approved_by, parent_id, child_id,
        decision_notes, decided_at, created_at`

// EnrollmentRepository handles persistence of enrollment applications.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create persists a new pending enrollment. The single insert runs in its own
// transaction to keep the write path uniform with the approval flow.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO enrollments (id, applicant_first_name, applicant_last_name, applicant_email, applicant_phone,
        child_first_name, child_last_name, child_birth_date, child_gender, medical_info,
        emergency_contact_name, emergency_contact_phone, status, created_at)
        VALUES (:id, :applicant_first_name, :applicant_last_name, :applicant_email, :applicant_phone,
        :child_first_name, :child_last_name, :child_birth_date, :child_gender, :medical_info,
        :emergency_contact_name, :emergency_contact_phone, :status, :created_at)`
	if _, err = tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by id: %w", err)
	}
	return &enrollment, nil
}

// List returns enrollments with document counts, filtered and paginated.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, int, error) {
	base := `FROM enrollments e
LEFT JOIN (SELECT enrollment_id, COUNT(*) AS document_count FROM enrollment_documents GROUP BY enrollment_id) d
ON d.enrollment_id = e.id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(e.applicant_email) LIKE $%d OR LOWER(e.child_first_name) LIKE $%d OR LOWER(e.child_last_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":       "e.created_at",
		"decided_at":       "e.decided_at",
		"child_first_name": "e.child_first_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.applicant_first_name, e.applicant_last_name, e.applicant_email, e.applicant_phone,
        e.child_first_name, e.child_last_name, e.child_birth_date, e.child_gender, e.medical_info,
        e.emergency_contact_name, e.emergency_contact_phone, e.status, e.approved_by, e.parent_id, e.child_id,
        e.decision_notes, e.decided_at, e.created_at, COALESCE(d.document_count, 0) AS document_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentSummary
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM enrollments e%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Approve runs the full approval workflow in one transaction: lock the
// enrollment row, find or create the parent account, create the child,
// copy the submitted documents across, then mark the enrollment APPROVED.
// Everything commits together or not at all.
func (r *EnrollmentRepository) Approve(ctx context.Context, id, approverID string, notes *string, parentPasswordHash string) (result *models.ApprovalResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err = tx.GetContext(ctx, &enrollment, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}
	// The status check must run after the lock: a concurrent decision may
	// have committed between the caller's read and this transaction.
	if enrollment.Status != models.EnrollmentStatusPending {
		err = ErrNotPending
		return nil, err
	}

	now := time.Now().UTC()
	result = &models.ApprovalResult{EnrollmentID: enrollment.ID}

	var parent models.User
	const findParentQuery = `SELECT id, email, password_hash, first_name, last_name, phone, role, active, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`
	err = tx.GetContext(ctx, &parent, findParentQuery, enrollment.ApplicantEmail)
	switch {
	case err == sql.ErrNoRows:
		parent = models.User{
			ID:           uuid.NewString(),
			Email:        enrollment.ApplicantEmail,
			PasswordHash: parentPasswordHash,
			FirstName:    enrollment.ApplicantFirstName,
			LastName:     enrollment.ApplicantLastName,
			Phone:        enrollment.ApplicantPhone,
			Role:         models.RoleParent,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		const insertParentQuery = `INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role, active, created_at, updated_at)
            VALUES (:id, :email, :password_hash, :first_name, :last_name, :phone, :role, :active, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, insertParentQuery, &parent); err != nil {
			return nil, fmt.Errorf("create parent account: %w", err)
		}
		result.ParentCreated = true
	case err != nil:
		return nil, fmt.Errorf("find parent by email: %w", err)
	}
	result.ParentID = parent.ID

	child := models.Child{
		ID:                    uuid.NewString(),
		ParentID:              parent.ID,
		EnrollmentID:          enrollment.ID,
		FirstName:             enrollment.ChildFirstName,
		LastName:              enrollment.ChildLastName,
		BirthDate:             enrollment.ChildBirthDate,
		Gender:                enrollment.ChildGender,
		MedicalInfo:           enrollment.MedicalInfo,
		EmergencyContactName:  enrollment.EmergencyContactName,
		EmergencyContactPhone: enrollment.EmergencyContactPhone,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	const insertChildQuery = `INSERT INTO children (id, parent_id, enrollment_id, first_name, last_name, birth_date, gender, medical_info, emergency_contact_name, emergency_contact_phone, created_at, updated_at)
        VALUES (:id, :parent_id, :enrollment_id, :first_name, :last_name, :birth_date, :gender, :medical_info, :emergency_contact_name, :emergency_contact_phone, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertChildQuery, &child); err != nil {
		return nil, fmt.Errorf("create child: %w", err)
	}
	result.ChildID = child.ID

	const copyDocsQuery = `INSERT INTO children_documents (id, child_id, file_path, file_name, mime_type, category, size_bytes, created_at)
        SELECT gen_random_uuid(), $1, file_path, file_name, mime_type, category, size_bytes, $2
        FROM enrollment_documents WHERE enrollment_id = $3`
	if _, err = tx.ExecContext(ctx, copyDocsQuery, child.ID, now, enrollment.ID); err != nil {
		return nil, fmt.Errorf("copy enrollment documents: %w", err)
	}

	const decideQuery = `UPDATE enrollments SET status = $2, approved_by = $3, parent_id = $4, child_id = $5, decision_notes = $6, decided_at = $7 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, decideQuery, enrollment.ID, models.EnrollmentStatusApproved, approverID, parent.ID, child.ID, notes, now); err != nil {
		return nil, fmt.Errorf("mark enrollment approved: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	return result, nil
}

// Reject marks a pending enrollment as rejected with the given terminal
// status. The WHERE clause doubles as the concurrency guard; zero affected
// rows means the enrollment was missing or already decided.
func (r *EnrollmentRepository) Reject(ctx context.Context, id, approverID string, status models.EnrollmentStatus, notes *string) error {
	const query = `UPDATE enrollments SET status = $2, approved_by = $3, decision_notes = $4, decided_at = $5
        WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, status, approverID, notes, time.Now().UTC(), models.EnrollmentStatusPending)
	if err != nil {
		return fmt.Errorf("reject enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject enrollment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddDocument attaches an accepted file to a pending enrollment.
func (r *EnrollmentRepository) AddDocument(ctx context.Context, doc *models.EnrollmentDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_documents (id, enrollment_id, file_path, file_name, mime_type, category, size_bytes, uploaded_at)
        VALUES (:id, :enrollment_id, :file_path, :file_name, :mime_type, :category, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("add enrollment document: %w", err)
	}
	return nil
}

// ListDocuments returns the documents attached to an enrollment.
func (r *EnrollmentRepository) ListDocuments(ctx context.Context, enrollmentID string) ([]models.EnrollmentDocument, error) {
	const query = `SELECT id, enrollment_id, file_path, file_name, mime_type, category, size_bytes, uploaded_at
        FROM enrollment_documents WHERE enrollment_id = $1 ORDER BY uploaded_at`
	var docs []models.EnrollmentDocument
	if err := r.db.SelectContext(ctx, &docs, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment documents: %w", err)
	}
	return docs, nil
}

// FindDocumentByID returns a single enrollment document.
func (r *EnrollmentRepository) FindDocumentByID(ctx context.Context, id string) (*models.EnrollmentDocument, error) {
	const query = `SELECT id, enrollment_id, file_path, file_name, mime_type, category, size_bytes, uploaded_at
        FROM enrollment_documents WHERE id = $1 LIMIT 1`
	var doc models.EnrollmentDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment document: %w", err)
	}
	return &doc, nil
}

// CountByStatus returns the number of enrollments per status.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context) (map[models.EnrollmentStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM enrollments GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EnrollmentStatus]int)
	for rows.Next() {
		var status models.EnrollmentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

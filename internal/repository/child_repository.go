package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/malekaidoudi/creche-sub003/internal/models"
)

const childColumns = `id, parent_id, enrollment_id, first_name, last_name, birth_date, gender, medical_info,
        emergency_contact_name, emergency_contact_phone, created_at, updated_at`

// ChildRepository provides database access for child records.
type ChildRepository struct {
	db *sqlx.DB
}

// NewChildRepository constructs the repository.
func NewChildRepository(db *sqlx.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// FindByID returns a child by identifier.
func (r *ChildRepository) FindByID(ctx context.Context, id string) (*models.Child, error) {
	query := fmt.Sprintf(`SELECT %s FROM children WHERE id = $1 LIMIT 1`, childColumns)
	var child models.Child
	if err := r.db.GetContext(ctx, &child, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find child by id: %w", err)
	}
	return &child, nil
}

// List returns children filtered and paginated with total count.
func (r *ChildRepository) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error) {
	baseQuery := `FROM children WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ParentID != "" {
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)+1))
		args = append(args, filter.ParentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY last_name, first_name LIMIT %d OFFSET %d", childColumns, baseQuery, pageSize, offset)

	var children []models.Child
	if err := r.db.SelectContext(ctx, &children, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list children: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count children: %w", err)
	}
	return children, total, nil
}

// ListDocuments returns the documents copied to a child on approval.
func (r *ChildRepository) ListDocuments(ctx context.Context, childID string) ([]models.ChildDocument, error) {
	const query = `SELECT id, child_id, file_path, file_name, mime_type, category, size_bytes, created_at
        FROM children_documents WHERE child_id = $1 ORDER BY created_at`
	var docs []models.ChildDocument
	if err := r.db.SelectContext(ctx, &docs, query, childID); err != nil {
		return nil, fmt.Errorf("list child documents: %w", err)
	}
	return docs, nil
}

// FindDocumentByID returns a single child document.
func (r *ChildRepository) FindDocumentByID(ctx context.Context, id string) (*models.ChildDocument, error) {
	const query = `SELECT id, child_id, file_path, file_name, mime_type, category, size_bytes, created_at
        FROM children_documents WHERE id = $1 LIMIT 1`
	var doc models.ChildDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find child document: %w", err)
	}
	return &doc, nil
}

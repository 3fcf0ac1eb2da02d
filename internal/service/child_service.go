package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type childRepository interface {
	FindByID(ctx context.Context, id string) (*models.Child, error)
	List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error)
	ListDocuments(ctx context.Context, childID string) ([]models.ChildDocument, error)
	FindDocumentByID(ctx context.Context, id string) (*models.ChildDocument, error)
}

// ChildService exposes child records. Parents only see their own children;
// staff and admins see everyone.
type ChildService struct {
	repo   childRepository
	logger *zap.Logger
}

// NewChildService constructs ChildService.
func NewChildService(repo childRepository, logger *zap.Logger) *ChildService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChildService{repo: repo, logger: logger}
}

// List returns children visible to the requesting user.
func (s *ChildService) List(ctx context.Context, requester *models.JWTClaims, filter models.ChildFilter) ([]models.Child, *models.Pagination, error) {
	if requester.Role == models.RoleParent {
		filter.ParentID = requester.UserID
	}
	children, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return children, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one child, enforcing parent ownership.
func (s *ChildService) Get(ctx context.Context, requester *models.JWTClaims, id string) (*models.Child, error) {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	if requester.Role == models.RoleParent && child.ParentID != requester.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this child")
	}
	return child, nil
}

// ListDocuments returns a child's documents, enforcing parent ownership.
func (s *ChildService) ListDocuments(ctx context.Context, requester *models.JWTClaims, childID string) ([]models.ChildDocument, error) {
	if _, err := s.Get(ctx, requester, childID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListDocuments(ctx, childID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list child documents")
	}
	return docs, nil
}

// GetDocument returns one child document, enforcing parent ownership.
func (s *ChildService) GetDocument(ctx context.Context, requester *models.JWTClaims, id string) (*models.ChildDocument, error) {
	doc, err := s.repo.FindDocumentByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if _, err := s.Get(ctx, requester, doc.ChildID); err != nil {
		return nil, err
	}
	return doc, nil
}

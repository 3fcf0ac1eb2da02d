package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type childRepoStub struct {
	children  map[string]*models.Child
	documents map[string][]models.ChildDocument
}

func newChildRepoStub() *childRepoStub {
	return &childRepoStub{
		children:  make(map[string]*models.Child),
		documents: make(map[string][]models.ChildDocument),
	}
}

func (m *childRepoStub) FindByID(ctx context.Context, id string) (*models.Child, error) {
	if c, ok := m.children[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *childRepoStub) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error) {
	var result []models.Child
	for _, c := range m.children {
		if filter.ParentID != "" && c.ParentID != filter.ParentID {
			continue
		}
		result = append(result, *c)
	}
	return result, len(result), nil
}

func (m *childRepoStub) ListDocuments(ctx context.Context, childID string) ([]models.ChildDocument, error) {
	return m.documents[childID], nil
}

func (m *childRepoStub) FindDocumentByID(ctx context.Context, id string) (*models.ChildDocument, error) {
	for _, docs := range m.documents {
		for _, doc := range docs {
			if doc.ID == id {
				return &doc, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func parentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleParent}
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff}
}

func TestChildServiceListScopesParents(t *testing.T) {
	repo := newChildRepoStub()
	repo.children["c1"] = &models.Child{ID: "c1", ParentID: "p1", FirstName: "Yasmine"}
	repo.children["c2"] = &models.Child{ID: "c2", ParentID: "p2", FirstName: "Adam"}
	svc := NewChildService(repo, nil)

	mine, _, err := svc.List(context.Background(), parentClaims("p1"), models.ChildFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "c1", mine[0].ID)

	all, _, err := svc.List(context.Background(), staffClaims(), models.ChildFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestChildServiceGetEnforcesOwnership(t *testing.T) {
	repo := newChildRepoStub()
	repo.children["c1"] = &models.Child{ID: "c1", ParentID: "p1"}
	svc := NewChildService(repo, nil)

	_, err := svc.Get(context.Background(), parentClaims("p2"), "c1")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	child, err := svc.Get(context.Background(), parentClaims("p1"), "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", child.ID)

	child, err = svc.Get(context.Background(), staffClaims(), "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", child.ID)
}

func TestChildServiceGetNotFound(t *testing.T) {
	svc := NewChildService(newChildRepoStub(), nil)

	_, err := svc.Get(context.Background(), staffClaims(), "missing")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestChildServiceGetDocumentEnforcesOwnership(t *testing.T) {
	repo := newChildRepoStub()
	repo.children["c1"] = &models.Child{ID: "c1", ParentID: "p1"}
	repo.documents["c1"] = []models.ChildDocument{{ID: "d1", ChildID: "c1", FileName: "birth.pdf"}}
	svc := NewChildService(repo, nil)

	_, err := svc.GetDocument(context.Background(), parentClaims("p2"), "d1")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	doc, err := svc.GetDocument(context.Background(), parentClaims("p1"), "d1")
	require.NoError(t, err)
	require.Equal(t, "birth.pdf", doc.FileName)
}

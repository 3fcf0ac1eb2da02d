package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	"github.com/malekaidoudi/creche-sub003/internal/service"
)

type authRepoMock struct {
	user          *models.User
	refreshTokens map[string]*models.RefreshToken
}

func (m *authRepoMock) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user != nil && m.user.Email == email {
		return m.user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *authRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user != nil && m.user.ID == id {
		return m.user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *authRepoMock) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error { return nil }

func (m *authRepoMock) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (m *authRepoMock) RevokeUserRefreshTokens(ctx context.Context, userID string) error { return nil }

func (m *authRepoMock) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *authRepoMock) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *authRepoMock) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

func (m *authRepoMock) CreateAuditLog(ctx context.Context, log *models.AuditLog) error { return nil }

func newAuthHandlerUnderTest(repo *authRepoMock) *AuthHandler {
	svc := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		AccessTokenSecret:  "handler-test-secret",
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "creche-api",
	})
	return NewAuthHandler(svc)
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, _ := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	handler := newAuthHandlerUnderTest(&authRepoMock{user: &models.User{
		ID:           "u1",
		Email:        "nadia@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(models.LoginRequest{Email: "nadia@example.com", Password: "s3cret-pass"})
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	require.Equal(t, "u1", envelope.Data.User.ID)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerUnderTest(&authRepoMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMeRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerUnderTest(&authRepoMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Request = req

	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type settingRepoStub struct {
	settings  map[string]*models.Setting
	listCalls int
}

func newSettingRepoStub() *settingRepoStub {
	return &settingRepoStub{settings: make(map[string]*models.Setting)}
}

func (m *settingRepoStub) Get(ctx context.Context, key string) (*models.Setting, error) {
	if s, ok := m.settings[key]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *settingRepoStub) List(ctx context.Context, publicOnly bool) ([]models.Setting, error) {
	m.listCalls++
	var result []models.Setting
	for _, s := range m.settings {
		if publicOnly && !s.Public {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

func (m *settingRepoStub) Upsert(ctx context.Context, setting *models.Setting) error {
	m.settings[setting.Key] = setting
	return nil
}

type cacheRepoStub struct {
	entries map[string][]byte
	deletes []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: make(map[string][]byte)}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deletes = append(c.deletes, pattern)
	c.entries = make(map[string][]byte)
	return nil
}

func newTestSettingService(repo *settingRepoStub, cache *cacheRepoStub) *SettingService {
	return NewSettingService(repo, NewCacheService(cache, nil, time.Minute, nil, true), time.Minute, nil, nil)
}

func TestSettingServiceListFillsCache(t *testing.T) {
	repo := newSettingRepoStub()
	repo.settings["opening_hours"] = &models.Setting{Key: "opening_hours", Value: "07:30-18:00", Type: models.SettingTypeString, Public: true}
	repo.settings["max_capacity"] = &models.Setting{Key: "max_capacity", Value: "45", Type: models.SettingTypeNumber}
	cache := newCacheRepoStub()
	svc := newTestSettingService(repo, cache)

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, repo.listCalls)

	second, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, 1, repo.listCalls, "second call should be served from cache")
}

func TestSettingServiceListPublicFiltersPrivate(t *testing.T) {
	repo := newSettingRepoStub()
	repo.settings["opening_hours"] = &models.Setting{Key: "opening_hours", Value: "07:30-18:00", Type: models.SettingTypeString, Public: true}
	repo.settings["smtp_password"] = &models.Setting{Key: "smtp_password", Value: "secret", Type: models.SettingTypeString}
	svc := newTestSettingService(repo, newCacheRepoStub())

	public, err := svc.ListPublic(context.Background())
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, "opening_hours", public[0].Key)
}

func TestSettingServiceUpdateInvalidatesCache(t *testing.T) {
	repo := newSettingRepoStub()
	cache := newCacheRepoStub()
	svc := newTestSettingService(repo, cache)

	_, err := svc.List(context.Background())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "admin-1", UpdateSettingRequest{
		Key:    "max_capacity",
		Value:  "50",
		Type:   "number",
		Public: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.SettingTypeNumber, updated.Type)
	require.Equal(t, []string{"settings:*"}, cache.deletes)

	_, err = svc.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCalls, "cache invalidation should force a reload")
}

func TestSettingServiceUpdateRejectsTypeMismatch(t *testing.T) {
	svc := newTestSettingService(newSettingRepoStub(), newCacheRepoStub())

	cases := []UpdateSettingRequest{
		{Key: "max_capacity", Value: "not-a-number", Type: "number"},
		{Key: "notifications_enabled", Value: "maybe", Type: "boolean"},
		{Key: "schedule", Value: "{broken", Type: "json"},
	}
	for _, req := range cases {
		_, err := svc.Update(context.Background(), "admin-1", req)
		appErr := appErrors.FromError(err)
		require.Equal(t, appErrors.ErrValidation.Code, appErr.Code, "key %s", req.Key)
	}
}

func TestSettingServiceGetNotFound(t *testing.T) {
	svc := newTestSettingService(newSettingRepoStub(), newCacheRepoStub())

	_, err := svc.Get(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

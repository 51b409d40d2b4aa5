package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/middleware"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

type curriculumServiceMock struct {
	items   []models.CurriculumStandard
	filter  models.CurriculumFilter
	created dto.CreateCurriculumRequest
	patch   models.CurriculumPatch
	id      string
	actor   models.Actor
	err     error
}

func (m *curriculumServiceMock) List(ctx context.Context, filter models.CurriculumFilter) ([]models.CurriculumStandard, error) {
	m.filter = filter
	return m.items, m.err
}

func (m *curriculumServiceMock) Get(ctx context.Context, viewer models.Actor, id string) (*dto.CurriculumDetail, error) {
	m.actor, m.id = viewer, id
	if m.err != nil {
		return nil, m.err
	}
	return &dto.CurriculumDetail{Item: models.CurriculumStandard{ID: id}, HasPendingReport: true}, nil
}

func (m *curriculumServiceMock) Create(ctx context.Context, actor models.Actor, req dto.CreateCurriculumRequest) (*models.CurriculumStandard, error) {
	m.actor, m.created = actor, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.CurriculumStandard{ID: "c-new", Subject: req.Subject, Code: "Math_1AS_GEN_Sets_1"}, nil
}

func (m *curriculumServiceMock) Update(ctx context.Context, actor models.Actor, id string, patch models.CurriculumPatch) (*models.CurriculumStandard, error) {
	m.actor, m.id, m.patch = actor, id, patch
	if m.err != nil {
		return nil, m.err
	}
	return &models.CurriculumStandard{ID: id}, nil
}

func (m *curriculumServiceMock) Delete(ctx context.Context, actor models.Actor, id string) error {
	m.actor, m.id = actor, id
	return m.err
}

type exportServiceMock struct {
	format service.ExportFormat
	filter models.CurriculumFilter
	err    error
}

func (m *exportServiceMock) Export(ctx context.Context, filter models.CurriculumFilter, format service.ExportFormat) (*service.ExportResult, error) {
	m.filter, m.format = filter, format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportResult{Filename: "curriculum.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("code\n")}, nil
}

func sampleItems(n int) []models.CurriculumStandard {
	items := make([]models.CurriculumStandard, n)
	for i := range items {
		items[i] = models.CurriculumStandard{ID: string(rune('a' + i))}
	}
	return items
}

func TestCurriculumHandlerListPassesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &curriculumServiceMock{items: sampleItems(3)}
	handler := NewCurriculumHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/curriculum?cycle=middle&subject=Physics&search=newton", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CycleMiddle, mockSvc.filter.Cycle)
	assert.Equal(t, "Physics", mockSvc.filter.Subject)
	assert.Equal(t, "newton", mockSvc.filter.Search)

	env := decodeEnvelope(t, w)
	var items []models.CurriculumStandard
	require.NoError(t, json.Unmarshal(env["data"], &items))
	assert.Len(t, items, 3)
	_, paged := env["pagination"]
	assert.False(t, paged)
}

func TestCurriculumHandlerListPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCurriculumHandler(&curriculumServiceMock{items: sampleItems(5)}, nil)

	tests := []struct {
		name  string
		query string
		ids   []string
		page  string
	}{
		{"first page", "?pageSize=2", []string{"a", "b"}, `{"page":1,"page_size":2,"total_count":5}`},
		{"last partial page", "?pageSize=2&page=3", []string{"e"}, `{"page":3,"page_size":2,"total_count":5}`},
		{"past the end", "?pageSize=2&page=9", []string{}, `{"page":9,"page_size":2,"total_count":5}`},
		{"bad page", "?pageSize=4&page=zero", []string{"a", "b", "c", "d"}, `{"page":1,"page_size":4,"total_count":5}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newGinContext(http.MethodGet, "/curriculum"+tc.query, nil)
			handler.List(c)

			require.Equal(t, http.StatusOK, w.Code)
			env := decodeEnvelope(t, w)
			var items []models.CurriculumStandard
			require.NoError(t, json.Unmarshal(env["data"], &items))
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tc.ids, ids)
			assert.JSONEq(t, tc.page, string(env["pagination"]))
		})
	}
}

func TestCurriculumHandlerListError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCurriculumHandler(&curriculumServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "cycle must be middle or secondary")}, nil)

	c, w := newGinContext(http.MethodGet, "/curriculum?cycle=primary", nil)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cycle must be middle or secondary")
}

func TestCurriculumHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &curriculumServiceMock{}
	handler := NewCurriculumHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/curriculum/c1", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set(middleware.ContextUserKey, teacherClaims)
	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", mockSvc.id)
	assert.Equal(t, teacherClaims.UserID, mockSvc.actor.ID)
	assert.Contains(t, w.Body.String(), `"hasPendingReport":true`)
}

func TestCurriculumHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &curriculumServiceMock{}
	handler := NewCurriculumHandler(mockSvc, nil)

	payload := []byte(`{"subject":"Math","level":"1AS","domain":"Algebra","unit":"Sets","lessonTitle":"Sets"}`)
	c, w := newGinContext(http.MethodPost, "/curriculum", payload)
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Math", mockSvc.created.Subject)
	assert.Equal(t, models.RoleAdmin, mockSvc.actor.Role)
	assert.Contains(t, w.Body.String(), "Math_1AS_GEN_Sets_1")
}

func TestCurriculumHandlerCreateRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &curriculumServiceMock{}
	handler := NewCurriculumHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodPost, "/curriculum", []byte(`{"subject":`))
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.created.Subject)
}

func TestCurriculumHandlerCreateRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCurriculumHandler(&curriculumServiceMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/curriculum", []byte(`{}`))
	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurriculumHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &curriculumServiceMock{}
	handler := NewCurriculumHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodPatch, "/curriculum/c1", []byte(`{"unit":"Functions","suggestedDuration":3}`))
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", mockSvc.id)
	require.NotNil(t, mockSvc.patch.Unit)
	assert.Equal(t, "Functions", *mockSvc.patch.Unit)
	require.NotNil(t, mockSvc.patch.SuggestedDuration)
	assert.Equal(t, 3, *mockSvc.patch.SuggestedDuration)
	assert.Nil(t, mockSvc.patch.Subject)
}

func TestCurriculumHandlerUpdateNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCurriculumHandler(&curriculumServiceMock{err: appErrors.Clone(appErrors.ErrCurriculumNotFound, "")}, nil)

	c, w := newGinContext(http.MethodPatch, "/curriculum/ghost", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Update(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CURRICULUM_NOT_FOUND")
}

func TestCurriculumHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &curriculumServiceMock{}
	handler := NewCurriculumHandler(mockSvc, nil)

	c, _ := newGinContext(http.MethodDelete, "/curriculum/c1", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set(middleware.ContextUserKey, adminClaims)
	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "c1", mockSvc.id)
}

func TestCurriculumHandlerDeleteDenied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCurriculumHandler(&curriculumServiceMock{err: appErrors.Clone(appErrors.ErrPermissionDenied, "")}, nil)

	c, w := newGinContext(http.MethodDelete, "/curriculum/c1", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Set(middleware.ContextUserKey, teacherClaims)
	handler.Delete(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "PERMISSION_DENIED")
}

func TestCurriculumHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &exportServiceMock{}
	handler := NewCurriculumHandler(&curriculumServiceMock{}, exporter)

	c, w := newGinContext(http.MethodGet, "/curriculum/export?subject=Math", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportCSV, exporter.format)
	assert.Equal(t, "Math", exporter.filter.Subject)
	assert.Equal(t, `attachment; filename="curriculum.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "code\n", w.Body.String())
}

func TestCurriculumHandlerExportFormatIsCaseInsensitive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &exportServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "unsupported export format")}
	handler := NewCurriculumHandler(&curriculumServiceMock{}, exporter)

	c, w := newGinContext(http.MethodGet, "/curriculum/export?format=PDF", nil)
	handler.Export(c)

	assert.Equal(t, service.ExportPDF, exporter.format)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

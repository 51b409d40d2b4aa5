package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/middleware"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/repository"
	"github.com/noah-isme/curriculum-api/internal/service"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/i18n"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type apiFixture struct {
	router *gin.Engine
	data   *repository.DataContext
	store  *repository.MemoryCollectionStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryCollectionStore()
	data := repository.NewDataContext(store, nil)
	require.NoError(t, data.Load(context.Background()))

	curriculumSvc := service.NewCurriculumService(data, nil, nil)
	r := gin.New()
	r.Use(response.Localize(i18n.New("en")))
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Auth:       NewAuthHandler(nil),
		Curriculum: NewCurriculumHandler(curriculumSvc, service.NewExportService(data, nil, nil, nil)),
		Import:     NewImportHandler(curriculumSvc),
		Reports:    NewReportHandler(service.NewReportService(data, nil, nil, nil, nil)),
		Audit:      NewAuditHandler(service.NewAuditService(data)),
	}, middleware.JWT(tokenTable{"admin": adminClaims, "teacher": teacherClaims}))

	return &apiFixture{router: r, data: data, store: store}
}

func (f *apiFixture) do(method, path, token string, body []byte, headers ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	f.router.ServeHTTP(w, req)
	return w
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["data"], dest))
}

const lessonJSON = `{"subject":"Math","level":"1AS","domain":"Algebra","unit":"Sets","lessonTitle":"Sets","suggestedDuration":2}`

func TestAPIGovernanceFlow(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/api/v1/curriculum", "", []byte(lessonJSON))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/v1/curriculum", "teacher", []byte(lessonJSON))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "only administrators can modify the curriculum")

	w = f.do(http.MethodPost, "/api/v1/curriculum", "admin", []byte(lessonJSON))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.CurriculumStandard
	dataOf(t, w, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Math_1AS_GEN_Sets_2", created.Code)

	plan := f.do(http.MethodPost, "/api/v1/curriculum/import/plan", "teacher", []byte(`[
		{"subject":"Math","level":"1AS","domain":"Algebra","unit":"Sets","lessonTitle":"Sets","suggestedDuration":3},
		{"subject":"Math","level":"1AS","domain":"Algebra","unit":"Logic","lessonTitle":"Propositions"}
	]`))
	require.Equal(t, http.StatusOK, plan.Code)
	var planBody struct {
		Added   int             `json:"added"`
		Updated int             `json:"updated"`
		Preview json.RawMessage `json:"preview"`
	}
	dataOf(t, plan, &planBody)
	assert.Equal(t, 1, planBody.Added)
	assert.Equal(t, 1, planBody.Updated)

	commitBody := []byte(`{"preview":` + string(planBody.Preview) + `}`)
	w = f.do(http.MethodPost, "/api/v1/curriculum/import/commit", "teacher", commitBody)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(http.MethodPost, "/api/v1/curriculum/import/commit", "admin", commitBody)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/curriculum?pageSize=1&page=2", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.JSONEq(t, `{"page":2,"page_size":1,"total_count":2}`, string(env["pagination"]))

	state := f.data.Snapshot()
	require.Len(t, state.Items, 2)
	assert.Equal(t, created.ID, state.Items[0].ID)
	assert.Equal(t, 3, state.Items[0].SuggestedDuration)

	w = f.do(http.MethodPost, "/api/v1/curriculum/reports", "teacher",
		[]byte(`{"curriculumId":"`+created.ID+`","type":"ERROR","description":"duration looks wrong"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, "/api/v1/curriculum/"+created.ID, "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		HasPendingReport bool `json:"hasPendingReport"`
	}
	dataOf(t, w, &detail)
	assert.True(t, detail.HasPendingReport)

	w = f.do(http.MethodGet, "/api/v1/audit-logs", "teacher", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(http.MethodGet, "/api/v1/audit-logs", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.AuditLogEntry
	dataOf(t, w, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionImport, entries[0].Action)
	assert.Equal(t, models.AuditActionCreate, entries[1].Action)

	raw, err := f.store.Load(context.Background(), repository.CollectionAuditLog)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"IMPORT"`)
}

func TestAPILocalizesGateErrors(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v1/curriculum/missing", "teacher", nil, "Accept-Language", "fr-FR,fr;q=0.9")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Élément du programme introuvable")

	w = f.do(http.MethodPatch, "/api/v1/curriculum/missing", "admin", []byte(`{"unit":"x"}`))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CURRICULUM_NOT_FOUND")
}

func TestAPIDeleteUnknownIDIsAudited(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodDelete, "/api/v1/curriculum/ghost", "admin", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	entries := f.data.Snapshot().AuditLog
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionDelete, entries[0].Action)
	assert.Equal(t, "ghost", entries[0].EntityID)
}

package counseling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setupRouter(t *testing.T) (*gin.Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	h := NewHandler(store)
	h.now = func() time.Time { return base }

	r := gin.New()
	h.RegisterRoutes(r.Group("/v1/risk"))
	h.RegisterAdminRoutes(r.Group("/v1/admin"))
	return r, store
}

func do(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHandler_CreateAndGet(t *testing.T) {
	r, _ := setupRouter(t)

	w, env := do(r, http.MethodPost, "/v1/admin/counseling-resources",
		`{"name":"Suicide Prevention Hotline","category":"hotline","phone":"109","isUrgent":true,"operatingHours":"24/7"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var created Resource
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, strings.HasPrefix(created.ID, "cr_"))
	assert.True(t, created.Available, "new resources default to available")
	assert.True(t, created.Urgent)
	assert.Equal(t, base, created.CreatedAt)

	w, env = do(r, http.MethodGet, "/v1/admin/counseling-resources/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got Resource
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Suicide Prevention Hotline", got.Name)
}

func TestHandler_CreateValidation(t *testing.T) {
	r, _ := setupRouter(t)

	w, env := do(r, http.MethodPost, "/v1/admin/counseling-resources", `{"name":"","category":"spa"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", env.Error)

	w, env = do(r, http.MethodPost, "/v1/admin/counseling-resources", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", env.Error)
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	r, store := setupRouter(t)
	require.NoError(t, store.Create(context.Background(), resource("cr_1", 0, false, "02-1234")))

	w, env := do(r, http.MethodPut, "/v1/admin/counseling-resources/cr_1",
		`{"name":"Mental Health Center","category":"professional","phone":"1577-0199","isUrgent":true,"isAvailable":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated Resource
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, CategoryProfessional, updated.Category)
	assert.False(t, updated.Available)

	phones, err := store.ListUrgentPhones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1577-0199"}, phones)

	w, _ = do(r, http.MethodDelete, "/v1/admin/counseling-resources/cr_1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(r, http.MethodGet, "/v1/admin/counseling-resources/cr_1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Error)

	w, _ = do(r, http.MethodDelete, "/v1/admin/counseling-resources/cr_1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UserListOnlyAvailable(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, resource("cr_1", 0, false, "")))
	off := resource("cr_2", time.Minute, false, "")
	off.Available = false
	require.NoError(t, store.Create(ctx, off))

	w, env := do(r, http.MethodGet, "/v1/risk/counseling-resources", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Resources []Resource `json:"resources"`
		HasMore   bool       `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Resources, 1)
	assert.Equal(t, "cr_1", page.Resources[0].ID)
	assert.False(t, page.HasMore)
}

func TestHandler_AdminListPaging(t *testing.T) {
	r, store := setupRouter(t)
	for i, id := range []string{"cr_a", "cr_b", "cr_c"} {
		require.NoError(t, store.Create(context.Background(), resource(id, time.Duration(i)*time.Minute, false, "")))
	}

	_, env := do(r, http.MethodGet, "/v1/admin/counseling-resources?limit=2", "")
	var page struct {
		Resources  []Resource `json:"resources"`
		NextCursor string     `json:"nextCursor"`
		HasMore    bool       `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Resources, 2)
	assert.True(t, page.HasMore)

	_, env = do(r, http.MethodGet, "/v1/admin/counseling-resources?limit=2&cursor="+page.NextCursor, "")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Resources, 1)
	assert.Equal(t, "cr_c", page.Resources[0].ID)
	assert.False(t, page.HasMore)

	w, env := do(r, http.MethodGet, "/v1/admin/counseling-resources?cursor=not-a-cursor!", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_cursor", env.Error)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
	"golang.org/x/crypto/bcrypt"
	"realtors/auth"
	"realtors/config"
	"realtors/models"
	"realtors/services"
	"realtors/storage"
)

type testEnv struct {
	router *gin.Engine
	props  *services.PropertyService
	tree   storage.TreeStore
}

type brokenTree struct {
	storage.TreeStore
}

func (brokenTree) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	return false, fmt.Errorf("%w: get %s: permission denied", storage.ErrUnavailable, path)
}

func newTestEnv(t *testing.T, tree storage.TreeStore) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlite, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	creds, err := auth.NewAdminCredentials("admin@example.com", string(hash))
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}

	props := services.NewPropertyService(tree, storage.NewMemoryBlobStore("https://cdn.test"), nil, time.Second)
	catalog := services.NewCatalog(props)
	props.OnChange(catalog.Invalidate)

	h := &Handler{
		Props:   props,
		Catalog: catalog,
		Auth:    auth.NewAuthenticator(creds, sqlite, []byte("test-secret")),
		Audit:   sqlite,
	}
	router := NewRouter(config.ServerConfig{AllowedOrigins: []string{"*"}}, h)
	return &testEnv{router: router, props: props, tree: tree}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w := e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login: no token in %s", w.Body.String())
	}
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func listing(title, zone string, price interface{}) map[string]interface{} {
	return map[string]interface{}{
		"title":        title,
		"propertyType": "apartment",
		"listingType":  "rent",
		"zone":         zone,
		"location":     "Indiranagar, Bangalore",
		"price":        price,
		"area":         "1,050 sqft",
		"beds":         2,
		"baths":        1,
	}
}

func TestSearchAndDetails(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryTree())
	token := env.login(t)

	for _, l := range []map[string]interface{}{
		listing("Cheap", "North", "₹50,000"),
		listing("Pricey", "South", 120000),
	} {
		if w := env.do(t, "POST", "/api/admin/properties", token, l); w.Code != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := env.do(t, "GET", "/api/properties?minPrice=60000&beds=abc", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", w.Code)
	}
	var resp struct {
		Count      int               `json:"count"`
		Properties []models.Property `json:"properties"`
	}
	decode(t, w, &resp)
	if resp.Count != 1 || resp.Properties[0].Title != "Pricey" {
		t.Fatalf("expected only Pricey, got %+v", resp)
	}

	w = env.do(t, "GET", "/api/properties?zones=North,South", "", nil)
	decode(t, w, &resp)
	if resp.Count != 2 {
		t.Fatalf("expected 2 results for both zones, got %d", resp.Count)
	}

	id := resp.Properties[0].ID
	w = env.do(t, "GET", "/api/properties/"+id, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("details: expected 200, got %d", w.Code)
	}
	if w = env.do(t, "GET", "/api/properties/missing", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("details: expected 404 for missing, got %d", w.Code)
	}
}

func TestSubmissionHiddenUntilApproved(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryTree())

	w := env.do(t, "POST", "/api/properties/submissions", "", listing("Owner listed", "East", 30000))
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	var resp struct {
		Count int `json:"count"`
	}
	decode(t, env.do(t, "GET", "/api/properties", "", nil), &resp)
	if resp.Count != 0 {
		t.Fatalf("expected pending submission hidden, got %d", resp.Count)
	}
	if w := env.do(t, "GET", "/api/properties/"+created.ID, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for pending details, got %d", w.Code)
	}

	token := env.login(t)
	if w := env.do(t, "GET", "/api/properties/"+created.ID, token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected admin to see pending details, got %d", w.Code)
	}
	if w := env.do(t, "PUT", "/api/admin/properties/"+created.ID+"/approve", token, nil); w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", w.Code)
	}

	decode(t, env.do(t, "GET", "/api/properties", "", nil), &resp)
	if resp.Count != 1 {
		t.Fatalf("expected approved listing to be public, got %d", resp.Count)
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryTree())

	if w := env.do(t, "GET", "/api/admin/properties", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := env.do(t, "GET", "/api/admin/properties", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}

	w := env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}

	token := env.login(t)
	if w := env.do(t, "GET", "/api/auth/session", token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected session, got %d", w.Code)
	}
	if w := env.do(t, "POST", "/api/auth/logout", token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", w.Code)
	}
	if w := env.do(t, "GET", "/api/admin/properties", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestValidationAndNotFound(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryTree())
	token := env.login(t)

	bad := listing("Bad price", "North", "on request")
	w := env.do(t, "POST", "/api/admin/properties", token, bad)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var verr struct {
		Field string `json:"field"`
	}
	decode(t, w, &verr)
	if verr.Field != "price" {
		t.Fatalf("expected price field error, got %q", verr.Field)
	}

	if w := env.do(t, "PATCH", "/api/admin/properties/missing", token, map[string]interface{}{"title": "x"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on update of missing, got %d", w.Code)
	}
	if w := env.do(t, "DELETE", "/api/admin/properties/missing", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on delete of missing, got %d", w.Code)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryTree())
	token := env.login(t)

	w := env.do(t, "POST", "/api/admin/properties", token, listing("Flat", "Central", 25000))
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	w = env.do(t, "PATCH", "/api/admin/properties/"+created.ID, token, map[string]interface{}{"status": "rented"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	p, err := env.props.GetByID(context.Background(), created.ID)
	if err != nil || p == nil || p.Status != models.StatusRented || p.Title != "Flat" {
		t.Fatalf("expected merged update, got %+v (%v)", p, err)
	}

	if w := env.do(t, "DELETE", "/api/admin/properties/"+created.ID, token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if p, _ := env.props.GetByID(context.Background(), created.ID); p != nil {
		t.Fatalf("expected record gone after delete")
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryTree())
	token := env.login(t)
	env.do(t, "POST", "/api/admin/properties", token, listing("Flat", "Central", 25000))

	w := env.do(t, "GET", "/api/admin/properties/export", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("expected xlsx attachment, got %q", w.Header().Get("Content-Disposition"))
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/vnd.openxmlformats") {
		t.Fatalf("expected spreadsheet content type, got %q", ct)
	}
	file, err := xlsx.OpenBinary(w.Body.Bytes())
	if err != nil {
		t.Fatalf("expected a readable spreadsheet: %v", err)
	}
	if rows := len(file.Sheets[0].Rows); rows != 2 {
		t.Fatalf("expected header and 1 row, got %d rows", rows)
	}
}

func TestExport_FailureIsPlainJSON(t *testing.T) {
	env := newTestEnv(t, brokenTree{storage.NewMemoryTree()})
	token := env.login(t)

	w := env.do(t, "GET", "/api/admin/properties/export", token, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "" {
		t.Fatalf("expected no attachment on failure, got %q", cd)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected json error, got %q", ct)
	}
}

func TestStoreOutageIs503(t *testing.T) {
	env := newTestEnv(t, brokenTree{storage.NewMemoryTree()})

	w := env.do(t, "GET", "/api/properties", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp struct {
		Retryable bool `json:"retryable"`
	}
	decode(t, w, &resp)
	if !resp.Retryable {
		t.Fatalf("expected retryable flag")
	}
}

func TestParseCriteria(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/properties?zones=North,%20East&zones=West&minPrice=1e3&maxPrice=cheap&beds=2&baths=-1&zone=South", nil)

	got := parseCriteria(c)
	if len(got.Zones) != 3 || got.Zones[1] != "East" {
		t.Fatalf("unexpected zones %v", got.Zones)
	}
	if got.MinPrice != 1000 || got.MaxPrice != 0 {
		t.Fatalf("expected minPrice 1000 and maxPrice ignored, got %v/%v", got.MinPrice, got.MaxPrice)
	}
	if got.Beds != 2 || got.Baths != 0 || got.Zone != "South" {
		t.Fatalf("unexpected criteria %+v", got)
	}
}

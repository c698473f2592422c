package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suteetoe/schemadb/internal/auth"
	"github.com/suteetoe/schemadb/internal/store/memory"
	"github.com/suteetoe/schemadb/pkg/jwtutil"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

type testServer struct {
	e      *echo.Echo
	tokens *jwtutil.JWTUtil
	token  string
}

func newTestServer(t *testing.T, staticDir string) *testServer {
	t.Helper()
	creds, err := auth.NewStaticCredentials("admin", "password")
	require.NoError(t, err)
	tokens := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-secret", ExpirationHours: 24})

	e := New(Options{
		ServiceName: "schemadb",
		BasePath:    "/api",
		StaticDir:   staticDir,
		Backend:     memory.New(),
		Gate:        auth.NewGate(creds, tokens),
		Metrics:     metrics.New("schemadb", "test", prometheus.NewRegistry()),
	})
	s := &testServer{e: e, tokens: tokens}

	rec := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"password"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	s.token = body["token"]
	require.NotEmpty(t, s.token)
	return s
}

func (s *testServer) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) authed(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, target, body, s.token)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["error"].(string)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorOf(t, rec))

	rec = s.do(t, http.MethodPost, "/api/auth/login", `{"username":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	claims, err := s.tokens.ValidateToken(s.token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestVerifyToken(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.authed(t, http.MethodGet, "/api/auth/verify-token", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "admin", body["username"])

	rec = s.do(t, http.MethodGet, "/api/auth/verify-token", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Invalid token", body["error"])

	rec = s.do(t, http.MethodGet, "/api/auth/verify-token", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, "")
	expired, err := s.tokens.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }).GenerateToken("admin")
	require.NoError(t, err)
	otherKey, err := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "other", ExpirationHours: 1}).GenerateToken("admin")
	require.NoError(t, err)

	requests := []struct {
		method, target, body string
	}{
		{http.MethodGet, "/api/db/schema", ""},
		{http.MethodPost, "/api/db/schema", `[{"schemaName":"ticket","name":"title","type":"string"}]`},
		{http.MethodDelete, "/api/db/schema/ticket/1", ""},
		{http.MethodPost, "/api/db", `{"schemaName":"ticket","customFields":{"title":"x"}}`},
		{http.MethodGet, "/api/db/ticket", ""},
		{http.MethodPatch, "/api/db/ticket/1", `{"customFields":{"title":"y"}}`},
		{http.MethodDelete, "/api/db/ticket/1", ""},
	}
	for _, token := range []string{"", "garbled.token.value", expired, otherKey} {
		for _, r := range requests {
			rec := s.do(t, r.method, r.target, r.body, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.target)
			assert.NotEmpty(t, errorOf(t, rec))
		}
	}

	// nothing was written
	rec := s.authed(t, http.MethodGet, "/api/db/schema", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, rec))
	rec = s.authed(t, http.MethodGet, "/api/db/ticket", "")
	assert.Empty(t, decode[[]map[string]any](t, rec))
}

func TestSchemaDefinitionAndDocuments(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.authed(t, http.MethodPost, "/api/db/schema",
		`[{"schemaName":"ticket","name":"title","type":"string","required":true},{"schemaName":"ticket","name":"prio","type":"number"}]`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fields := decode[[]map[string]any](t, rec)
	require.Len(t, fields, 2)
	assert.Equal(t, float64(0), fields[0]["order"])
	assert.Equal(t, float64(1), fields[1]["order"])
	assert.Equal(t, "title", fields[0]["name"])

	rec = s.authed(t, http.MethodGet, "/api/db/schema?schemaName=ticket", "")
	assert.Len(t, decode[[]map[string]any](t, rec), 2)
	rec = s.authed(t, http.MethodGet, "/api/db/schema?schemaName=user", "")
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = s.authed(t, http.MethodPost, "/api/db", `{"schemaName":"ticket","customFields":{"title":"Bug","prio":2}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]string](t, rec)["_id"]
	require.NotEmpty(t, id)

	rec = s.authed(t, http.MethodGet, "/api/db/ticket", "")
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]map[string]any](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0]["_id"])
	assert.Equal(t, "Bug", docs[0]["title"])
	assert.Equal(t, float64(2), docs[0]["prio"])
	assert.NotEmpty(t, docs[0]["createdAt"])

	rec = s.authed(t, http.MethodPatch, "/api/db/ticket/"+id, `{"customFields":{"prio":5}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Document updated successfully", decode[map[string]string](t, rec)["message"])

	rec = s.authed(t, http.MethodPatch, "/api/db/ticket/"+id+"?strict=true", `{"customFields":{"owner":"me"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.authed(t, http.MethodGet, "/api/db/schema/ticket/jsonschema", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"title"}, decode[map[string]any](t, rec)["required"])

	rec = s.authed(t, http.MethodDelete, "/api/db/ticket/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Document deleted successfully", decode[map[string]string](t, rec)["message"])
	rec = s.authed(t, http.MethodDelete, "/api/db/ticket/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Document not found", errorOf(t, rec))
}

func TestCreateDocumentScenarios(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.authed(t, http.MethodPost, "/api/db/schema", `[{"schemaName":"ticket","name":"title","type":"string","required":true}]`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.authed(t, http.MethodPost, "/api/db", `{"schemaName":"ticket","customFields":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please fill in at least one field", errorOf(t, rec))

	rec = s.authed(t, http.MethodPost, "/api/db", `{"schemaName":"ticket","customFields":{"title":""}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "title is required", errorOf(t, rec))

	rec = s.authed(t, http.MethodPost, "/api/db", `{"schemaName":"ticket","customFields":"oops"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.authed(t, http.MethodGet, "/api/db/ticket", "")
	assert.Empty(t, decode[[]map[string]any](t, rec))
}

func TestPatchUnknownDocument(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.authed(t, http.MethodPatch, "/api/db/ticket/6565f2c1a1b2c3d4e5f60718", `{"customFields":{"title":"x"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Document not found", errorOf(t, rec))
}

func TestDeleteField(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.authed(t, http.MethodPost, "/api/db/schema",
		`[{"schemaName":"ticket","name":"title","type":"string"},{"schemaName":"ticket","name":"prio","type":"number"}]`)
	require.Equal(t, http.StatusCreated, rec.Code)
	fields := decode[[]map[string]any](t, rec)

	rec = s.authed(t, http.MethodDelete, "/api/db/schema/ticket/"+fields[0]["_id"].(string), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Field removed", decode[map[string]string](t, rec)["message"])
	rec = s.authed(t, http.MethodDelete, "/api/db/schema/ticket/"+fields[0]["_id"].(string), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.authed(t, http.MethodDelete, "/api/db/schema/ticket/"+fields[1]["_id"].(string)+"?mode=deactivate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.authed(t, http.MethodGet, "/api/db/schema", "")
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = s.authed(t, http.MethodDelete, "/api/db/schema/ticket/x?mode=archive", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDefineFieldsValidation(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.authed(t, http.MethodPost, "/api/db/schema", `[{"schemaName":"ticket","name":"title","type":"blob"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "type must be one of")

	rec = s.authed(t, http.MethodPost, "/api/db/schema", `{"schemaName":"ticket"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request data", errorOf(t, rec))
}

func TestStoreOwnedFieldNamesAreRejected(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.authed(t, http.MethodPost, "/api/db/schema",
		`[{"schemaName":"ticket","name":"_id","type":"string","required":true},{"schemaName":"ticket","name":"createdAt","type":"date"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), `name "_id" is not allowed`)

	rec = s.authed(t, http.MethodPost, "/api/db/schema", `[{"schemaName":"ticket","name":"createdAt","type":"date"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.authed(t, http.MethodGet, "/api/db/schema?schemaName=ticket", "")
	assert.Empty(t, decode[[]map[string]any](t, rec))

	// with no field to hold them, store owned keys never reach a document
	rec = s.authed(t, http.MethodPost, "/api/db", `{"schemaName":"ticket","customFields":{"_id":"mine","createdAt":"yesterday"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please fill in at least one field", errorOf(t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_auth_attempts_total")
}

func TestDocumentMetricsIgnoreSchemaNames(t *testing.T) {
	s := newTestServer(t, "")
	for _, schemaName := range []string{"nope", "never_defined", "another"} {
		rec := s.authed(t, http.MethodGet, "/api/db/"+schemaName, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `test_document_operations_total{operation="list"} 3`)
	assert.NotContains(t, body, "never_defined")
}

func TestPatchMissingDocumentWithInvalidBody(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.authed(t, http.MethodPost, "/api/db/schema", `[{"schemaName":"ticket","name":"title","type":"string"}]`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.authed(t, http.MethodPost, "/api/db", `{"schemaName":"ticket","customFields":{"title":"Bug"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]string](t, rec)["_id"]

	missing := "/api/db/ticket/6565f2c1-a1b2-4c3d-8e5f-60718aabbccd"
	for _, body := range []string{`{}`, `{"customFields":{}}`, `{"customFields":{"a":{"b":1}}}`, `{"customFields":{"_id":"x"}}`} {
		rec := s.authed(t, http.MethodPatch, missing, body)
		assert.Equal(t, http.StatusNotFound, rec.Code, body)
		assert.Equal(t, "Document not found", errorOf(t, rec), body)

		rec = s.authed(t, http.MethodPatch, missing+"?strict=true", body)
		assert.Equal(t, http.StatusNotFound, rec.Code, body)
	}

	// an existing document still gets the validation message
	rec = s.authed(t, http.MethodPatch, "/api/db/ticket/"+id, `{"customFields":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please provide at least one field to update", errorOf(t, rec))
	rec = s.authed(t, http.MethodPatch, "/api/db/ticket/"+id, `{"customFields":{"a":{"b":1}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "a must be a scalar value", errorOf(t, rec))
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>admin</h1>"), 0o644))
	s := newTestServer(t, dir)

	rec := s.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin")

	// the API still wins over the static handler
	rec = s.do(t, http.MethodGet, "/api/db/schema", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

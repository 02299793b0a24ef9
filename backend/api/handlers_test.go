package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/connectome-service/backend/metrics"
	"github.com/gilchrisn/connectome-service/backend/models"
	"github.com/gilchrisn/connectome-service/backend/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, maxSessions int) http.Handler {
	t.Helper()
	reg := metrics.NewRegistry()
	router := mux.NewRouter()
	SetupRoutes(router, NewHandlers(service.NewSessionService(maxSessions, 100, reg)), reg)
	router.Use(LoggingMiddleware(reg))
	router.Use(RecoveryMiddleware)
	return CORSMiddleware([]string{"*"})(router)
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

// twoTriangles: nodes 0-2 and 3-5 strongly linked inside, weakly across.
func twoTriangles() string {
	rows := make([][]interface{}, 6)
	intra := map[[2]int]float64{{0, 1}: 0.9, {0, 2}: 0.8, {1, 2}: 0.7, {3, 4}: 0.9, {3, 5}: 0.8, {4, 5}: 0.7}
	for i := range rows {
		rows[i] = make([]interface{}, 6)
		for j := range rows[i] {
			a, b := min(i, j), max(i, j)
			switch {
			case i == j:
				rows[i][j] = nil
			case intra[[2]int{a, b}] > 0:
				rows[i][j] = intra[[2]int{a, b}]
			default:
				rows[i][j] = 0.1
			}
		}
	}
	nodes := make([]map[string]interface{}, 6)
	for i := range nodes {
		nodes[i] = map[string]interface{}{"label": string(rune('a' + i)), "coord": []float64{float64(i), 0, 0}}
	}
	body, _ := json.Marshal(map[string]interface{}{
		"name":    "triangles",
		"dataset": map[string]interface{}{"matrix": rows, "nodes": nodes},
	})
	return string(body)
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	code, env := do(t, h, "POST", "/api/v1/sessions", twoTriangles())
	require.Equal(t, http.StatusCreated, code, env.Error)
	var sess models.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, 6, sess.Nodes)
	assert.Zero(t, sess.Edges)
	return sess.ID
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestServer(t, 4)
	id := createSession(t, h)
	base := "/api/v1/sessions/" + id

	code, env := do(t, h, "POST", base+"/threshold", `{"totalEdges": 6}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	var tres models.ThresholdResponse
	require.NoError(t, json.Unmarshal(env.Data, &tres))
	assert.Equal(t, 6, tres.Edges)
	require.NotNil(t, tres.Threshold)
	assert.InDelta(t, 0.1, *tres.Threshold, 1e-12)

	code, env = do(t, h, "POST", base+"/modules", `{"seed": 1}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	var mres models.ModulesResponse
	require.NoError(t, json.Unmarshal(env.Data, &mres))
	assert.Greater(t, mres.Modularity, 0.0)
	assert.Len(t, mres.Modules, 6)
	assert.Equal(t, mres.Modules[0], mres.Modules[1])
	assert.NotEqual(t, mres.Modules[0], mres.Modules[3])

	code, env = do(t, h, "POST", base+"/hubs", `{}`)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = do(t, h, "GET", base+"/graph", "")
	require.Equal(t, http.StatusOK, code, env.Error)
	var view models.GraphView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Nodes, 6)
	assert.Len(t, view.Edges, 6)
	assert.Equal(t, "a", view.Nodes[0].Label)
	assert.NotNil(t, view.Nodes[0].Module)
	assert.NotNil(t, view.Nodes[0].HubScore)

	code, env = do(t, h, "POST", base+"/degenerate", `{"toxicNodes": [0], "seed": 1}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Contains(t, string(env.Data), `"state":"DONE"`)

	code, env = do(t, h, "GET", base, "")
	require.Equal(t, http.StatusOK, code)
	var sess models.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.NotNil(t, sess.Modularity)

	code, _ = do(t, h, "DELETE", base, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, "GET", base, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCloneIsIndependent(t *testing.T) {
	h := newTestServer(t, 4)
	id := createSession(t, h)

	code, env := do(t, h, "POST", "/api/v1/sessions/"+id+"/clone", "")
	require.Equal(t, http.StatusCreated, code, env.Error)
	var clone models.Session
	require.NoError(t, json.Unmarshal(env.Data, &clone))
	assert.Equal(t, "triangles (copy)", clone.Name)

	code, _ = do(t, h, "POST", "/api/v1/sessions/"+clone.ID+"/threshold", `{"totalEdges": 3}`)
	require.Equal(t, http.StatusOK, code)

	_, env = do(t, h, "GET", "/api/v1/sessions/"+id, "")
	var orig models.Session
	require.NoError(t, json.Unmarshal(env.Data, &orig))
	assert.Zero(t, orig.Edges)

	code, env = do(t, h, "GET", "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, code)
	var all []models.Session
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2)
}

func TestErrorStatuses(t *testing.T) {
	h := newTestServer(t, 1)
	id := createSession(t, h)
	base := "/api/v1/sessions/" + id

	code, _ := do(t, h, "POST", "/api/v1/sessions", twoTriangles())
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = do(t, h, "GET", "/api/v1/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, env := do(t, h, "POST", base+"/threshold", `{"edgePercent": 2}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "edgePercent")

	code, _ = do(t, h, "POST", base+"/threshold", `{"bogus": true}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, "POST", base+"/threshold", `{"mode": "local", "rethreshold": true, "totalEdges": 2}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, "POST", base+"/threshold", `{"totalEdges": 6}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, "POST", base+"/degenerate", `{"toxicNodes": [0], "weightLossLimit": 100}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = do(t, h, "POST", base+"/degenerate", `{"weightLoss": 0}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateSessionValidation(t *testing.T) {
	h := newTestServer(t, 4)

	code, _ := do(t, h, "POST", "/api/v1/sessions", `{`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := do(t, h, "POST", "/api/v1/sessions", `{"dataset": {"matrix": []}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "validation_errors")

	code, _ = do(t, h, "POST", "/api/v1/sessions", `{"dataset": {"matrix": [[null, 1, 2], [1, null, 2]]}}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, 4)
	createSession(t, h)

	code, env := do(t, h, "GET", "/api/v1/health", "")
	require.Equal(t, http.StatusOK, code)
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, 1, health.Sessions)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connectome_sessions_active 1")
	assert.Contains(t, rec.Body.String(), "connectome_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, 4)
	req := httptest.NewRequest("OPTIONS", "/api/v1/sessions", bytes.NewReader(nil))
	req.Header.Set("Origin", "http://viewer.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Less(t, rec.Code, 300)
}

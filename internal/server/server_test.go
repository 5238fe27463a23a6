package server

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
	"go.uber.org/goleak"

	"nutrilog/internal/gateway"
	"nutrilog/internal/logstore"
	"nutrilog/internal/models"
	"nutrilog/internal/storage"
)

const upstreamEgg = `{"items":[{"name":"egg","calories":140,"protein_g":12,"carbohydrates_total_g":1,"fat_total_g":10,"serving_size_g":100}]}`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("query") {
		case "2 eggs":
			_, _ = w.Write([]byte(upstreamEgg))
		case "zzz123":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"no match"}`))
		case "broken":
			_, _ = w.Write([]byte(`not json`))
		default:
			_, _ = w.Write([]byte(`{"items":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) (*NutritionServer, *storage.SQLiteStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := newUpstream(t)
	gw := gateway.NewClient(upstream.URL, "test-key")

	st, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	store, err := logstore.Open(context.Background(), storage.SlotPersister{Storage: st, Name: "nutrition_history"}, gw)
	require.NoError(t, err)

	return NewNutritionServer(&Config{Addr: "127.0.0.1:0"}, store, gw, nil), st
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNutritionRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	t.Run("success", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/nutrition?query=2+eggs", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body models.LookupResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, "egg", body.Items[0].Name)
	})

	t.Run("missing query", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/nutrition", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Query is required"}`, rec.Body.String())
	})

	t.Run("upstream status passthrough", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/nutrition?query=zzz123", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "CalorieNinjas API error", body.Error)
		assert.Equal(t, `{"message":"no match"}`, body.Details)
	})

	t.Run("malformed upstream body", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/nutrition?query=broken", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	})
}

func TestLogLifecycle(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodPut, "/log/query", queryRequest{Query: "2 eggs"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/log/search", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var searched struct {
		Result logstore.SearchResult `json:"result"`
		Totals models.Totals         `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &searched))
	assert.Equal(t, logstore.OutcomeAdded, searched.Result.Outcome)
	assert.Equal(t, models.Totals{Calories: 140, Protein: 12, Carbs: 1, Fat: 10}, searched.Totals)

	rec = do(t, h, http.MethodPost, "/log/search", queryRequest{Query: "zzz123"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &searched))
	assert.Equal(t, logstore.OutcomeFailed, searched.Result.Outcome)

	rec = do(t, h, http.MethodGet, "/log", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view logView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Items, 1)
	assert.Empty(t, view.Query)
	assert.False(t, view.Searching)

	rec = do(t, h, http.MethodGet, "/log/suggest?q=EG", nil)
	assert.JSONEq(t, `{"suggestions":["egg"]}`, rec.Body.String())

	persisted, ok, err := st.Get(context.Background(), "nutrition_history")
	require.NoError(t, err)
	require.True(t, ok)
	var items []models.NutritionItem
	require.NoError(t, json.Unmarshal([]byte(persisted), &items))
	assert.Equal(t, view.Items, items)

	rec = do(t, h, http.MethodDelete, "/log/items/nope", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":false`)

	rec = do(t, h, http.MethodDelete, "/log", nil)
	assert.Contains(t, rec.Body.String(), `"cleared":false`)

	rec = do(t, h, http.MethodDelete, "/log/items/"+view.Items[0].ID, nil)
	assert.Contains(t, rec.Body.String(), `"removed":true`)

	do(t, h, http.MethodPost, "/log/search", queryRequest{Query: "2 eggs"})
	rec = do(t, h, http.MethodDelete, "/log?confirm=true", nil)
	assert.Contains(t, rec.Body.String(), `"cleared":true`)

	rec = do(t, h, http.MethodGet, "/log", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Empty(t, view.Items)
	assert.Equal(t, models.Totals{}, view.Totals)
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func callTool(t *testing.T, h http.Handler, name string, args map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/mcp", map[string]interface{}{"name": name, "arguments": args})
	if rec.Code != http.StatusOK {
		return rec.Code, nil
	}
	var res toolResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Content, 1)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	return rec.Code, out
}

func TestMCPTools(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	code, out := callTool(t, h, "log_food", map[string]interface{}{"description": "2 eggs"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"cal": 140.0, "pro": 12.0, "carb": 1.0, "fat": 10.0}, out["totals"])

	_, out = callTool(t, h, "suggest_foods", map[string]interface{}{"partial": "g"})
	assert.Equal(t, []interface{}{"egg"}, out["suggestions"])

	_, out = callTool(t, h, "get_log", nil)
	items := out["items"].([]interface{})
	require.Len(t, items, 1)
	id := items[0].(map[string]interface{})["id"].(string)

	_, out = callTool(t, h, "clear_log", map[string]interface{}{"confirm": false})
	assert.Equal(t, false, out["cleared"])

	_, out = callTool(t, h, "remove_food", map[string]interface{}{"id": id})
	assert.Equal(t, true, out["removed"])

	code, _ = callTool(t, h, "log_food", map[string]interface{}{})
	assert.Equal(t, http.StatusInternalServerError, code)

	code, _ = callTool(t, h, "make_coffee", nil)
	assert.Equal(t, http.StatusNotFound, code)

	rec := do(t, h, http.MethodGet, "/mcp", nil)
	assert.Contains(t, rec.Body.String(), `"log_food"`)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/log", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartStop(t *testing.T) {
	srv, _ := newTestServer(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	require.NoError(t, srv.Stop())
	assert.NoError(t, <-errCh)
}

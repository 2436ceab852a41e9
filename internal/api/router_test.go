package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/playok/adminsync/internal/model"
	"github.com/playok/adminsync/internal/settings"
	"github.com/playok/adminsync/internal/store"
)

type testServer struct {
	*httptest.Server
	store   *store.Memory
	hub     *Hub
	handler *settings.Handler
}

func newTestServer(t *testing.T, basePath string) *testServer {
	t.Helper()
	st := store.NewMemory()
	metrics := NewMetrics()
	h := settings.NewHandler(st, settings.Options{
		Fields: []string{"my_value"},
		Prefix: "angularjs_admin_data_",
	}, settings.WithObserver(metrics))
	hub := NewHub(zap.NewNop())
	h.Subscribe(hub.BroadcastSaved)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(NewRouter(Deps{
		Handler:  h,
		Store:    st,
		Hub:      hub,
		Metrics:  metrics,
		Logger:   zap.NewNop(),
		APIName:  "angular_admin_api",
		BasePath: basePath,
	}))
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return &testServer{Server: srv, store: st, hub: hub, handler: h}
}

func (s *testServer) post(t *testing.T, path, body string) (*http.Response, model.Response) {
	t.Helper()
	resp, err := http.Post(s.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out model.Response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

const ajax = AjaxPath + "?action=angular_admin_api"

func TestAjax_SaveThenLoad(t *testing.T) {
	s := newTestServer(t, "/")

	resp, out := s.post(t, ajax, `{"command":"save","adminData":{"my_value":"hello"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, model.Bag{"my_value": "hello"}, out.AdminData)
	require.Len(t, out.Messages, 1)
	assert.True(t, strings.HasPrefix(out.Messages[0].Content, "Data Saved @ "))
	assert.Empty(t, out.Errors)
	assert.NotZero(t, out.Time)

	_, out = s.post(t, ajax, `{"command":"load","adminData":{"my_value":"x"}}`)
	assert.Equal(t, model.Bag{"my_value": "hello"}, out.AdminData)
}

func TestAjax_SoftErrorsKeepStatusOK(t *testing.T) {
	s := newTestServer(t, "/")

	resp, out := s.post(t, ajax, ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "API did not receive any input", out.Errors[0].Content)

	resp, out = s.post(t, ajax, `{"command":"drop"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, `API is not configured for command : "drop"`, out.Errors[0].Content)
}

func TestAjax_BodyTooLargeIsNoInput(t *testing.T) {
	s := newTestServer(t, "/")
	big := `{"command":"save","adminData":{"my_value":"` + strings.Repeat("x", maxBody) + `"}}`

	resp, out := s.post(t, ajax, big)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "API did not receive any input", out.Errors[0].Content)
}

func TestAjax_UnknownAction(t *testing.T) {
	s := newTestServer(t, "/")

	for _, path := range []string{AjaxPath, AjaxPath + "?action=other"} {
		resp, _ := s.post(t, path, `{"command":"load","adminData":{"my_value":"x"}}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestAdminAlias(t *testing.T) {
	s := newTestServer(t, "/")
	_, out := s.post(t, "/api/v1/admin", `{"command":"load","adminData":{"my_value":"seed","bogus":"1"}}`)
	assert.Equal(t, model.Bag{"my_value": "seed"}, out.AdminData)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Field bogus is not in the list of expected fields", out.Errors[0].Content)
}

func TestListSettings(t *testing.T) {
	s := newTestServer(t, "/")
	s.post(t, ajax, `{"command":"save","adminData":{"my_value":"v"}}`)

	resp, err := http.Get(s.URL + "/api/v1/settings")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Fields  []string        `json:"fields"`
		Options []model.Setting `json:"options"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"my_value"}, body.Fields)
	require.Len(t, body.Options, 1)
	assert.Equal(t, "angularjs_admin_data_myvalue", body.Options[0].Name)
	assert.Equal(t, "v", body.Options[0].Value)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "/")
	s.post(t, ajax, `{"command":"load","adminData":{"my_value":"v"}}`)

	resp, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	scrape := func() string {
		resp, err := http.Get(s.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(data)
	}

	assert.Contains(t, scrape(), `adminsync_commands_total{command="load"} 1`)
	// The access counter is bumped after the response is written.
	assert.Eventually(t, func() bool {
		return strings.Contains(scrape(), `adminsync_http_requests_total{code="200",route="POST /wp-admin/admin-ajax.php"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "/")
	req, err := http.NewRequest(http.MethodOptions, s.URL+ajax, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestIndexInjection(t *testing.T) {
	s := newTestServer(t, "/admin")

	resp, err := http.Get(s.URL + "/admin/")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	page := string(data)
	assert.Contains(t, page, `window.apiName="angular_admin_api"`)
	assert.Contains(t, page, `window.ajaxurl="/admin/wp-admin/admin-ajax.php"`)
	assert.Contains(t, page, `src="/admin/js/admin.js"`)

	// Commands work under the base path too.
	_, out := s.post(t, "/admin"+ajax, `{"command":"load","adminData":{"my_value":"v"}}`)
	assert.Equal(t, model.Bag{"my_value": "v"}, out.AdminData)
}

func TestWebSocketReceivesSaves(t *testing.T) {
	s := newTestServer(t, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.post(t, ajax, `{"command":"save","adminData":{"my_value":"pushed"}}`)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev savedEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "saved", ev.Type)
	assert.Equal(t, model.Bag{"my_value": "pushed"}, ev.AdminData)
}

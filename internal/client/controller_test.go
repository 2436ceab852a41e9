package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/playok/adminsync/internal/api"
	"github.com/playok/adminsync/internal/model"
	"github.com/playok/adminsync/internal/settings"
	"github.com/playok/adminsync/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var defaults = model.Bag{"my_value": "default value"}

// newSite starts a full server on a memory store and returns its URL and a
// client that is torn down with the test.
func newSite(t *testing.T) (string, *http.Client, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	metrics := api.NewMetrics()
	h := settings.NewHandler(st, settings.Options{
		Fields: []string{"my_value"},
		Prefix: "angularjs_admin_data_",
	}, settings.WithObserver(metrics))

	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Handler:  h,
		Store:    st,
		Hub:      api.NewHub(zap.NewNop()),
		Metrics:  metrics,
		Logger:   zap.NewNop(),
		APIName:  "angular_admin_api",
		BasePath: "/",
	}))
	hc := testHTTPClient(t, srv)
	return srv.URL, hc, st
}

func testHTTPClient(t *testing.T, srv *httptest.Server) *http.Client {
	tr := &http.Transport{}
	t.Cleanup(func() {
		tr.CloseIdleConnections()
		srv.Close()
	})
	return &http.Client{Transport: tr, Timeout: 5 * time.Second}
}

func TestController_LoadSeedsThenSaveRoundTrip(t *testing.T) {
	siteURL, hc, st := newSite(t)
	ctx := context.Background()

	c := NewForSite(siteURL, "angular_admin_api", defaults, WithHTTPClient(hc))
	assert.Equal(t, StateIdle, c.View().State)
	assert.Empty(t, c.View().Errors)

	v, err := c.LoadData(ctx, RequestOptions{})
	require.NoError(t, err)
	assert.True(t, v.Loaded)
	assert.Equal(t, StateLoaded, v.State)
	assert.Equal(t, model.Bag{"my_value": "default value"}, v.Data)

	stored, ok, err := st.Get(ctx, "angularjs_admin_data_myvalue")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "default value", stored)

	c.Set("my_value", "hello")
	v, err = c.SaveData(ctx, RequestOptions{Priority: Foreground})
	require.NoError(t, err)
	require.Len(t, v.Notifications, 1)
	assert.Contains(t, v.Notifications[0].Content, "Data Saved @ ")
	assert.Empty(t, v.Errors)
	assert.True(t, v.Loaded)

	// A fresh controller with different defaults sees the saved value.
	other := NewForSite(siteURL, "angular_admin_api", model.Bag{"my_value": "x"}, WithHTTPClient(hc))
	v, err = other.LoadData(ctx, RequestOptions{Priority: Background})
	require.NoError(t, err)
	assert.Equal(t, model.Bag{"my_value": "hello"}, v.Data)
}

func TestController_ServerErrorsReplaceLists(t *testing.T) {
	siteURL, hc, _ := newSite(t)
	ctx := context.Background()

	c := NewForSite(siteURL, "angular_admin_api", model.Bag{"my_value": "a", "rogue": "b"}, WithHTTPClient(hc))
	v, err := c.LoadData(ctx, RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, msgs("Field rogue is not in the list of expected fields"), v.Errors)
	assert.Equal(t, model.Bag{"my_value": "a"}, v.Data)

	// The next response has no errors and fully replaces the list.
	v, err = c.SaveData(ctx, RequestOptions{})
	require.NoError(t, err)
	assert.Empty(t, v.Errors)
}

func TestController_BootstrapErrors(t *testing.T) {
	c := NewForSite("", "", defaults)
	assert.Equal(t, msgs(
		"Could not find ajax api name.",
		"Could not find ajax url. Check your WP has ajax enabled",
	), c.View().Errors)

	v, err := c.LoadData(context.Background(), RequestOptions{})
	require.Error(t, err)
	assert.Equal(t, StateFailed, v.State)
	assert.False(t, v.Loaded)
}

func TestController_TransportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>login</html>"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			hc := testHTTPClient(t, srv)

			c := New(srv.URL, defaults, WithHTTPClient(hc))
			v, err := c.LoadData(context.Background(), RequestOptions{})
			require.Error(t, err)
			assert.Equal(t, StateFailed, v.State)
			assert.Equal(t, defaults, v.Data)
			require.Len(t, v.Errors, 1)
			assert.Contains(t, v.Errors[0].Content, "Request failed: ")
		})
	}
}

func TestController_RejectsOverlappingRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"adminData":{"my_value":"v"},"messages":[],"errors":[],"time":1}`))
	}))
	hc := testHTTPClient(t, srv)

	c := New(srv.URL, defaults, WithHTTPClient(hc))

	done := make(chan error, 1)
	go func() {
		_, err := c.SaveData(context.Background(), RequestOptions{})
		done <- err
	}()
	<-entered

	v, err := c.SaveData(context.Background(), RequestOptions{})
	assert.True(t, errors.Is(err, ErrRequestPending))
	assert.Equal(t, StateSaving, v.State)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateLoaded, c.View().State)
}

func TestController_SendsLoadType(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Load-Type")
		w.Write([]byte(`{"adminData":{},"messages":[],"errors":[],"time":1}`))
	}))
	hc := testHTTPClient(t, srv)

	c := New(srv.URL, defaults, WithHTTPClient(hc))
	_, err := c.LoadData(context.Background(), RequestOptions{Priority: Invisible})
	require.NoError(t, err)
	assert.Equal(t, "invisible", <-got)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "http://example.test/wp-admin/admin-ajax.php?action=angular_admin_api",
		Endpoint("http://example.test/", "angular_admin_api"))
	assert.Equal(t, "http://example.test/sub/wp-admin/admin-ajax.php?action=a+b",
		Endpoint("http://example.test/sub", "a b"))
}

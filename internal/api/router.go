package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/playok/adminsync/internal/settings"
	"github.com/playok/adminsync/internal/store"
	"github.com/playok/adminsync/web"
)

// AjaxPath is where the admin page posts its commands.
const AjaxPath = "/wp-admin/admin-ajax.php"

// Deps are the collaborators the router needs.
type Deps struct {
	Handler  *settings.Handler
	Store    store.Store
	Hub      *Hub
	Metrics  *Metrics
	Logger   *zap.Logger
	APIName  string
	BasePath string
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	sa := &settingsAPI{
		handler: d.Handler,
		store:   d.Store,
		apiName: d.APIName,
		logger:  d.Logger.Named("settings"),
	}

	// Settings commands
	mux.HandleFunc("POST "+AjaxPath, sa.ajax)
	mux.HandleFunc("POST /api/v1/admin", sa.command)

	// Diagnostics
	mux.HandleFunc("GET /api/v1/settings", sa.list)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", d.Metrics.Handler())

	// WebSocket
	mux.HandleFunc("GET /api/v1/ws", d.Hub.HandleWS)

	// Static files (embedded) with the endpoint injected into index.html
	mux.Handle("/", web.StaticHandler(web.Bootstrap{
		BasePath: d.BasePath,
		APIName:  d.APIName,
		AjaxURL:  joinBase(d.BasePath, AjaxPath),
	}))

	var handler http.Handler = mux

	// If base_path is set, strip the prefix so internal routing works unchanged
	if d.BasePath != "/" && d.BasePath != "" {
		inner := handler
		basePath := d.BasePath
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, basePath) {
				r.URL.Path = strings.TrimPrefix(r.URL.Path, basePath)
				if r.URL.Path == "" {
					r.URL.Path = "/"
				}
				r.URL.RawPath = strings.TrimPrefix(r.URL.RawPath, basePath)
			}
			inner.ServeHTTP(w, r)
		})
	}

	return withMiddleware(handler, d.Logger.Named("http"), d.Metrics)
}

func joinBase(basePath, p string) string {
	if basePath == "/" || basePath == "" {
		return p
	}
	return basePath + p
}

// statusRecorder captures the response code. It passes Hijack through so
// websocket upgrades keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func withMiddleware(next http.Handler, logger *zap.Logger, metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// Recovery
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic", zap.Any("error", err), zap.String("request_id", reqID))
				http.Error(rec, "internal server error", http.StatusInternalServerError)
			}
		}()

		// CORS for local development
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Load-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.observe(route, rec.status, elapsed)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
			zap.String("load_type", r.Header.Get("X-Load-Type")),
			zap.String("request_id", reqID))
	})
}

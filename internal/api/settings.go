package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/playok/adminsync/internal/model"
	"github.com/playok/adminsync/internal/settings"
	"github.com/playok/adminsync/internal/store"
)

// maxBody caps a settings request. Larger bodies are treated as no input.
const maxBody = 1 << 20

type settingsAPI struct {
	handler *settings.Handler
	store   store.Store
	apiName string
	logger  *zap.Logger
}

// ajax serves the admin-ajax style entry point, which dispatches on ?action=.
func (a *settingsAPI) ajax(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != a.apiName {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action"})
		return
	}
	a.command(w, r)
}

// command runs one load/save command. Problems are reported inside the
// response body, so the status is always 200.
func (a *settingsAPI) command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.logger.Warn("settings body too large", zap.Int64("limit", tooLarge.Limit))
		}
		body = nil
	}
	resp := a.handler.Handle(r.Context(), body)
	writeJSON(w, http.StatusOK, resp)
}

func (a *settingsAPI) list(w http.ResponseWriter, r *http.Request) {
	records, err := a.store.List(r.Context())
	if errors.Is(err, store.ErrListUnsupported) {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []model.Setting{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fields":  a.handler.Options().Fields,
		"options": records,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

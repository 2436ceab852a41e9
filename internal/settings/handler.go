// Package settings implements the load/save command endpoint: it checks
// form keys against the configured whitelist and moves their values in and
// out of the option store.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/playok/adminsync/internal/model"
	"github.com/playok/adminsync/internal/store"
)

// Messages returned to the admin page.
const (
	msgNoInput     = "API did not receive any input"
	msgNoCommand   = "API did not receive a command"
	msgNoAdminData = "Admin Data not sent from the form"
)

// Options are the parts of the handler that may change at runtime.
type Options struct {
	// Fields is the whitelist of form keys.
	Fields []string
	// Prefix namespaces every storage name.
	Prefix string
	// GMTOffset shifts the "Data Saved @" clock, in hours.
	GMTOffset float64
	// EchoInput returns the parsed request in Response.Input.
	EchoInput bool
}

// Observer receives per-request events, e.g. for metrics.
type Observer interface {
	Command(name string)
	Rejected(reason string)
}

// Handler serves settings commands. It is safe for concurrent use.
type Handler struct {
	store    store.Store
	opts     atomic.Pointer[Options]
	now      func() time.Time
	logger   *zap.Logger
	observer Observer

	mu   sync.RWMutex
	subs []func(model.Bag)
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// WithObserver reports commands and rejections to o.
func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) { h.observer = o }
}

// NewHandler returns a handler backed by st.
func NewHandler(st store.Store, opts Options, hopts ...HandlerOption) *Handler {
	h := &Handler{
		store:  st,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, o := range hopts {
		o(h)
	}
	h.Reconfigure(opts)
	return h
}

// Reconfigure swaps the runtime options. Requests already running keep the
// options they started with.
func (h *Handler) Reconfigure(opts Options) {
	opts.Fields = slices.Clone(opts.Fields)
	h.opts.Store(&opts)
}

// Options returns the options currently in effect.
func (h *Handler) Options() Options {
	return *h.opts.Load()
}

// Subscribe registers fn to be called with the saved values after every save
// that stored at least one field.
func (h *Handler) Subscribe(fn func(model.Bag)) {
	h.mu.Lock()
	h.subs = append(h.subs, fn)
	h.mu.Unlock()
}

// Handle runs one command. It never fails: every problem is reported in
// Response.Errors and processing continues where it can.
func (h *Handler) Handle(ctx context.Context, body []byte) *model.Response {
	opts := h.Options()
	now := h.now()
	resp := model.NewResponse(now.Unix())

	input, ok := decodeInput(body)
	if !ok {
		resp.AddError(msgNoInput)
		h.rejected("no_input")
		return resp
	}
	if opts.EchoInput {
		resp.Input = json.RawMessage(bytes.TrimSpace(body))
	}

	obj, _ := input.(map[string]any)
	command, ok := stringValue(obj["command"])
	if !ok || empty(obj["command"]) {
		resp.AddError(msgNoCommand)
		h.rejected("no_command")
		return resp
	}

	switch command {
	case model.CommandLoad:
		h.observe(command)
		h.load(ctx, opts, obj["adminData"], resp)
	case model.CommandSave:
		h.observe(command)
		saved := h.save(ctx, opts, obj["adminData"], resp)
		resp.AddMessage("Data Saved @ " + siteClock(now, opts.GMTOffset))
		if len(saved) > 0 {
			h.publish(saved)
		}
	default:
		h.observe("unknown")
		resp.AddError(fmt.Sprintf("API is not configured for command : %q", command))
	}
	return resp
}

func (h *Handler) load(ctx context.Context, opts Options, data any, resp *model.Response) {
	fields, ok := h.fields(opts, data, resp)
	if !ok {
		return
	}
	for _, f := range fields {
		name := SettingName(opts.Prefix, f.key)
		value, found, err := h.store.Get(ctx, name)
		if err != nil {
			h.storeError(resp, "read", f.key, name, err)
			continue
		}
		if !found {
			if err := h.store.Create(ctx, name, f.value); err != nil {
				h.storeError(resp, "save", f.key, name, err)
				continue
			}
			h.logger.Debug("seeded option", zap.String("option", name))
			value = f.value
		}
		resp.AdminData[f.key] = value
	}
}

func (h *Handler) save(ctx context.Context, opts Options, data any, resp *model.Response) model.Bag {
	fields, ok := h.fields(opts, data, resp)
	if !ok {
		return nil
	}
	saved := model.Bag{}
	for _, f := range fields {
		name := SettingName(opts.Prefix, f.key)
		if err := h.store.Update(ctx, name, f.value); err != nil {
			h.storeError(resp, "save", f.key, name, err)
			continue
		}
		resp.AdminData[f.key] = f.value
		saved[f.key] = f.value
	}
	h.logger.Info("settings saved", zap.Int("fields", len(saved)))
	return saved
}

type field struct {
	key   string
	value string
}

// fields returns the whitelisted entries of data in key order and records an
// error for each rejected key.
func (h *Handler) fields(opts Options, data any, resp *model.Response) ([]field, bool) {
	entries := entriesOf(data)
	if len(entries) == 0 {
		resp.AddError(msgNoAdminData)
		h.rejected("no_admin_data")
		return nil, false
	}
	out := make([]field, 0, len(entries))
	for _, e := range entries {
		if !slices.Contains(opts.Fields, e.key) {
			resp.AddError("Field " + e.key + " is not in the list of expected fields")
			h.rejected("unexpected_field")
			continue
		}
		out = append(out, e)
	}
	return out, true
}

func (h *Handler) storeError(resp *model.Response, op, key, name string, err error) {
	h.logger.Error("option "+op+" failed",
		zap.String("field", key),
		zap.String("option", name),
		zap.Error(err))
	resp.AddError("Could not " + op + " field " + key)
	h.rejected("store")
}

func (h *Handler) publish(saved model.Bag) {
	h.mu.RLock()
	subs := slices.Clone(h.subs)
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(saved.Clone())
	}
}

func (h *Handler) observe(command string) {
	if h.observer != nil {
		h.observer.Command(command)
	}
}

func (h *Handler) rejected(reason string) {
	if h.observer != nil {
		h.observer.Rejected(reason)
	}
}

// siteClock formats now shifted by offset hours as HH:MM:SS.
func siteClock(now time.Time, offset float64) string {
	shift := time.Duration(math.Round(offset * float64(time.Hour)))
	return now.UTC().Add(shift).Format("15:04:05")
}

// decodeInput parses body and reports false for anything that counts as no
// input: an empty body, invalid JSON, or an empty JSON value (null, false, 0,
// "", "0", []).
func decodeInput(body []byte) (any, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	if empty(v) {
		return nil, false
	}
	return v, true
}

// empty treats null, false, zero, "", "0" and [] as missing. An empty
// object is not empty.
func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == "" || t == "0"
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// stringValue renders a scalar command value. Objects and arrays are not
// commands.
func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// entriesOf flattens adminData into key/value pairs sorted by key. Arrays are
// keyed by index. Non-string values are kept as their JSON text.
func entriesOf(data any) []field {
	var out []field
	switch t := data.(type) {
	case map[string]any:
		for k, v := range t {
			out = append(out, field{key: k, value: valueText(v)})
		}
	case []any:
		for i, v := range t {
			out = append(out, field{key: strconv.Itoa(i), value: valueText(v)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

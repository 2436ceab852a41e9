// Package client drives the settings endpoint the way the admin form does:
// it keeps a local settings bag, sends load and save commands, and exposes
// the resulting view.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/playok/adminsync/internal/model"
)

// AjaxPath is appended to the site URL to reach the endpoint.
const AjaxPath = "/wp-admin/admin-ajax.php"

// ErrRequestPending is returned when a command is issued while another one
// from the same controller is still in flight.
var ErrRequestPending = errors.New("client: a request is already in flight")

const maxResponse = 1 << 20

// Controller is the client side of the settings form. It allows one request
// in flight at a time.
type Controller struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger

	busy atomic.Bool

	mu   sync.Mutex
	view View
}

// Option configures a Controller.
type Option func(*Controller)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Controller) { c.http = hc }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New returns a controller posting to endpoint, starting from defaults.
func New(endpoint string, defaults model.Bag, opts ...Option) *Controller {
	c := &Controller{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
		view: View{
			Data:          defaults.Clone(),
			State:         StateIdle,
			Notifications: []model.Message{},
			Errors:        []model.Message{},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewForSite builds the endpoint from a site URL and the ajax action name.
// Missing pieces are reported in the initial view's errors, and commands
// then fail with a transport error.
func NewForSite(siteURL, apiName string, defaults model.Bag, opts ...Option) *Controller {
	var bootErrs []model.Message
	if apiName == "" {
		bootErrs = append(bootErrs, model.Message{Content: "Could not find ajax api name."})
	}
	if siteURL == "" {
		bootErrs = append(bootErrs, model.Message{Content: "Could not find ajax url. Check your WP has ajax enabled"})
	}
	endpoint := ""
	if len(bootErrs) == 0 {
		endpoint = Endpoint(siteURL, apiName)
	}
	c := New(endpoint, defaults, opts...)
	c.view.Errors = append(c.view.Errors, bootErrs...)
	return c
}

// Endpoint returns the command URL for siteURL and the ajax action apiName.
func Endpoint(siteURL, apiName string) string {
	return strings.TrimRight(siteURL, "/") + AjaxPath + "?action=" + url.QueryEscape(apiName)
}

// View returns the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

// Set changes one form value locally. It is sent with the next save.
func (c *Controller) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.view.clone()
	next.Data[key] = value
	c.view = next
}

// LoadData asks the server for the stored values, sending the current bag as
// defaults for anything not stored yet. The local bag is replaced by the
// server's answer.
func (c *Controller) LoadData(ctx context.Context, opts RequestOptions) (View, error) {
	return c.run(ctx, model.CommandLoad, opts)
}

// SaveData sends the current bag to be stored.
func (c *Controller) SaveData(ctx context.Context, opts RequestOptions) (View, error) {
	return c.run(ctx, model.CommandSave, opts)
}

func (c *Controller) run(ctx context.Context, command string, opts RequestOptions) (View, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return c.View(), ErrRequestPending
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	c.view = Begin(c.view, command, opts.Priority)
	data := c.view.Data.Clone()
	c.mu.Unlock()

	resp, err := c.send(ctx, command, data, opts.Priority)
	if err != nil {
		c.logger.Warn("settings request failed", zap.String("command", command), zap.Error(err))
	} else {
		c.logger.Debug("settings response",
			zap.String("command", command),
			zap.Int("errors", len(resp.Errors)),
			zap.Int("messages", len(resp.Messages)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = Apply(c.view, Outcome{Command: command, Priority: opts.Priority, Response: resp, Err: err})
	return c.view.clone(), err
}

func (c *Controller) send(ctx context.Context, command string, data model.Bag, p LoadPriority) (*model.Response, error) {
	if c.endpoint == "" {
		return nil, errors.New("no endpoint configured")
	}
	body, err := json.Marshal(model.Request{Command: command, AdminData: data})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Load-Type", p.String())

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	var out model.Response
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponse)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.AdminData == nil {
		out.AdminData = model.Bag{}
	}
	return &out, nil
}

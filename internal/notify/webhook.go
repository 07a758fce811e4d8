// Package notify tells a remote endpoint about installs and uninstalls.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/ZebulonRouseFrantzich/parts/internal/logging"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

// Event is the lifecycle transition being reported.
type Event string

const (
	EventInstalled   Event = "installed"
	EventUninstalled Event = "uninstalled"
)

const defaultTimeout = 10 * time.Second

// Webhook posts lifecycle events as an HTML form. Delivery is best effort:
// failures are logged and never returned.
type Webhook struct {
	url      string
	client   *http.Client
	hostname func(ctx context.Context) string
	logger   logging.Logger
}

// Option configures a Webhook.
type Option func(*Webhook)

// WithHostname overrides how the container identifier is found.
func WithHostname(fn func(ctx context.Context) string) Option {
	return func(w *Webhook) { w.hostname = fn }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Webhook) { w.logger = logging.OrNop(l) }
}

// NewWebhook creates a notifier posting to endpoint.
func NewWebhook(endpoint string, opts ...Option) *Webhook {
	w := &Webhook{
		url:      endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
		hostname: Hostname,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify reports event for def.
func (w *Webhook) Notify(ctx context.Context, event Event, def parts.Definition) {
	if err := w.post(ctx, event, def); err != nil {
		w.logger.Warn("webhook notification failed", "event", string(event), "package", def.String(), "error", err)
		return
	}
	w.logger.Debug("webhook notified", "event", string(event), "package", def.String())
}

func (w *Webhook) post(ctx context.Context, event Event, def parts.Definition) error {
	form := url.Values{
		"type":                 {string(event)},
		"name":                 {def.Name},
		"version":              {def.Version},
		"container-identifier": {w.hostname(ctx)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Hostname identifies the container the engine runs in: the host name as
// gopsutil reports it, falling back to the kernel's.
func Hostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	name, _ := os.Hostname()
	return name
}

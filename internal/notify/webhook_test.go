package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

type warnLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *warnLogger) Debug(string, ...interface{}) {}
func (l *warnLogger) Info(string, ...interface{})  {}
func (l *warnLogger) Error(string, ...interface{}) {}
func (l *warnLogger) Warn(string, ...interface{}) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func TestNotifyPostsForm(t *testing.T) {
	var got url.Values
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		got = r.PostForm
	}))
	defer server.Close()

	logger := &warnLogger{}
	w := NewWebhook(server.URL,
		WithHostname(func(context.Context) string { return "box-42" }),
		WithLogger(logger),
	)
	w.Notify(context.Background(), EventInstalled, parts.Definition{Name: "foo", Version: "1.0"})

	want := url.Values{
		"type":                 {"installed"},
		"name":                 {"foo"},
		"version":              {"1.0"},
		"container-identifier": {"box-42"},
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("form = %v, want %v", got, want)
	}
	if contentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if logger.warns != 0 {
		t.Errorf("warnings = %d on success", logger.warns)
	}
}

func TestNotifyFailuresAreLogged(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	for _, endpoint := range []string{failing.URL, closedURL, "://bad"} {
		logger := &warnLogger{}
		NewWebhook(endpoint, WithLogger(logger)).
			Notify(context.Background(), EventUninstalled, parts.Definition{Name: "foo", Version: "1.0"})
		if logger.warns != 1 {
			t.Errorf("%s: warnings = %d, want 1", endpoint, logger.warns)
		}
	}
}

func TestHostname(t *testing.T) {
	want, err := os.Hostname()
	if err != nil {
		t.Skip("no hostname available")
	}
	if got := Hostname(context.Background()); got == "" {
		t.Errorf("Hostname() empty, os.Hostname() = %q", want)
	}
}

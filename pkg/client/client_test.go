package client

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/studyhub/studyfeed/pkg/config"
)

func TestNewSendsUserAgent(t *testing.T) {
	var gotAgent, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	c.SetAuthToken("abc")

	if _, err := c.R().Get("/ping"); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if gotAgent != UserAgent {
		t.Errorf("User-Agent = %q, want %q", gotAgent, UserAgent)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestFromConfig(t *testing.T) {
	if err := config.Init(filepath.Join(t.TempDir(), "config.toml")); err != nil {
		t.Fatalf("config.Init: %v", err)
	}
	config.Set("api.base_url", "http://studyfeed.test:9000")
	config.Set("api.timeout", 7)

	c := FromConfig()
	if c.BaseURL != "http://studyfeed.test:9000" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if c.GetClient().Timeout != 7*time.Second {
		t.Errorf("Timeout = %v", c.GetClient().Timeout)
	}
}

package hostlib_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	hostlib "github.com/kick-dev/kick-host-sdk"
	"github.com/kick-dev/kick-host-sdk/kick"
)

func TestNewFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("GetWithDefaultUserAgent", func(t *testing.T) {
		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
		}))
		defer srv.Close()

		fetch := hostlib.NewFetch()
		resp, err := fetch(ctx, kick.FetchRequest{URL: srv.URL})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if string(resp.Body) != `{"ok":true}` {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if gotUA != "kick-host-sdk" {
			t.Errorf("expected default user agent, got %q", gotUA)
		}
	})

	t.Run("CallerUserAgentWins", func(t *testing.T) {
		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
		}))
		defer srv.Close()

		fetch := hostlib.NewFetch()
		_, err := fetch(ctx, kick.FetchRequest{
			URL:     srv.URL,
			Headers: map[string]string{"User-Agent": "my-kick/1.0"},
		})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if gotUA != "my-kick/1.0" {
			t.Errorf("caller-set user agent should win, got %q", gotUA)
		}
	})

	t.Run("PostWithBody", func(t *testing.T) {
		var gotMethod, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			buf := make([]byte, r.ContentLength)
			r.Body.Read(buf) //nolint:errcheck
			gotBody = string(buf)
		}))
		defer srv.Close()

		fetch := hostlib.NewFetch()
		_, err := fetch(ctx, kick.FetchRequest{
			URL:    srv.URL,
			Method: "post",
			Body:   []byte(`{"q":"docs"}`),
		})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if gotMethod != http.MethodPost {
			t.Errorf("expected POST, got %s", gotMethod)
		}
		if gotBody != `{"q":"docs"}` {
			t.Errorf("unexpected body %q", gotBody)
		}
	})

	t.Run("OversizedBodyIsTruncated", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(strings.Repeat("x", 100))) //nolint:errcheck
		}))
		defer srv.Close()

		fetch := hostlib.NewFetch(hostlib.WithFetchMaxBodySize(10))
		resp, err := fetch(ctx, kick.FetchRequest{URL: srv.URL})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if !resp.Truncated {
			t.Error("expected Truncated for an oversized body")
		}
		if len(resp.Body) != 10 {
			t.Errorf("expected 10 capped bytes, got %d", len(resp.Body))
		}
	})

	t.Run("EmptyURLRejected", func(t *testing.T) {
		fetch := hostlib.NewFetch()
		if _, err := fetch(ctx, kick.FetchRequest{}); err == nil {
			t.Error("expected error for empty url")
		}
	})
}

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"financify/internal/core"
	ports "financify/internal/oracle"
)

type capturedRequest struct {
	Path string
	Key  string
	Body map[string]any
}

func newTestServer(t *testing.T, status int, reply string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.Path = r.URL.Path
			captured.Key = r.Header.Get("x-goog-api-key")
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &captured.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, key string) *Client {
	return New(ports.StaticCredentials(key),
		WithEndpoint(srv.URL+"/"),
		WithTransport(srv.Client().Transport),
	)
}

func TestGenerateText(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"Save "},{"text":"more."}]}}]}`, &got)
	c := newTestClient(srv, "k-123")

	text, err := c.GenerateText(context.Background(), "How do I save?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Save more." {
		t.Fatalf("expected joined parts, got %q", text)
	}
	if got.Path != "/v1beta/models/"+DefaultModel+":generateContent" {
		t.Errorf("unexpected path %q", got.Path)
	}
	if got.Key != "k-123" {
		t.Errorf("expected API key header, got %q", got.Key)
	}
	raw, _ := json.Marshal(got.Body)
	if !strings.Contains(string(raw), "How do I save?") {
		t.Errorf("prompt not sent: %s", raw)
	}
}

func TestGenerateFromImageSendsInlineData(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`, &got)
	c := New(ports.StaticCredentials("k"), WithEndpoint(srv.URL+"/"), WithTransport(srv.Client().Transport), WithModel("models/gemini-pro-vision"))

	if _, err := c.GenerateFromImage(context.Background(), "extract", []byte{0x89, 0x50}, "image/png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Path != "/v1beta/models/gemini-pro-vision:generateContent" {
		t.Errorf("unexpected path %q", got.Path)
	}
	raw, _ := json.Marshal(got.Body)
	for _, want := range []string{`"inlineData"`, `"mimeType":"image/png"`, `"data":"iVA="`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("request body missing %s: %s", want, raw)
		}
	}
}

func TestGenerateFromImageRejectsEmptyImage(t *testing.T) {
	c := New(ports.StaticCredentials("k"))
	_, err := c.GenerateFromImage(context.Background(), "extract", nil, "image/png")
	if !errors.Is(err, core.ErrOracle) {
		t.Fatalf("expected oracle error, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   core.OracleErrorKind
	}{
		{"unauthorized", http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`, core.OracleAuth},
		{"bad key", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid."}}`, core.OracleAuth},
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`, core.OracleQuota},
		{"server", http.StatusInternalServerError, `{"error":{"code":500,"message":"boom"}}`, core.OracleNetwork},
		{"empty", http.StatusOK, `{"candidates":[]}`, core.OracleEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			_, err := newTestClient(srv, "k").GenerateText(context.Background(), "hi")
			var oerr *core.OracleError
			if !errors.As(err, &oerr) {
				t.Fatalf("expected *core.OracleError, got %v", err)
			}
			if oerr.Kind != tt.want {
				t.Fatalf("expected kind %s, got %s (%v)", tt.want, oerr.Kind, err)
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	c := New(ports.ChainCredentials{ports.ContextCredentials{}})
	_, err := c.GenerateText(context.Background(), "hi")
	var oerr *core.OracleError
	if !errors.As(err, &oerr) || oerr.Kind != core.OracleCredentials {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
	if !errors.Is(err, ports.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials in chain, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv, "k").GenerateText(ctx, "hi")
	var oerr *core.OracleError
	if !errors.As(err, &oerr) || oerr.Kind != core.OracleTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestKeyResolvedPerCall(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("x-goog-api-key"))
		mu.Unlock()
		if r.Header.Get("x-goog-api-key") == "rejected" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"denied"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	c := New(ports.ChainCredentials{ports.ContextCredentials{}, ports.StaticCredentials("default")},
		WithEndpoint(srv.URL+"/"), WithTransport(srv.Client().Transport))

	ctx := context.Background()
	keys := []string{"", "a", "rejected", "b", ""}
	for _, k := range keys {
		_, err := c.GenerateText(ports.WithAPIKey(ctx, k), "hi")
		if k == "rejected" {
			var oerr *core.OracleError
			if !errors.As(err, &oerr) || oerr.Kind != core.OracleAuth {
				t.Fatalf("expected auth error for rejected key, got %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("key %q: unexpected error: %v", k, err)
		}
	}

	want := []string{"default", "a", "rejected", "b", "default"}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Fatalf("expected keys %v, got %v", want, seen)
	}
}

package llamacpp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQuery(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"faceCount\":2}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "qwen2-vl", srv.Client())
	out, err := c.Query(context.Background(), "count faces", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if out != `{"faceCount":2}` {
		t.Errorf("Unexpected reply %q", out)
	}
	if !strings.Contains(body, "data:image/jpeg;base64,") || !strings.Contains(body, `"model":"qwen2-vl"`) {
		t.Errorf("Unexpected request body %s", body)
	}
}

func TestQueryContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"hello"}]}}]}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "m", srv.Client()).Query(context.Background(), "p", nil)
	if err != nil || out != "hello" {
		t.Errorf("Expected hello, got %q (%v)", out, err)
	}
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"status", http.StatusBadGateway, `oops`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":""}}]}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := NewClient(srv.URL, "m", srv.Client()).Query(context.Background(), "p", nil); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "", nil)
	if c.baseURL != defaultServerURL || c.httpClient == nil {
		t.Errorf("Unexpected defaults %+v", c)
	}
}

func TestQueryTypedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Fail") != "" {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", srv.Client())
	if _, err := c.Query(context.Background(), "p", nil); !errors.Is(err, ErrNoChoices) {
		t.Errorf("Expected ErrNoChoices, got %v", err)
	}

	failing := &http.Client{Transport: headerTransport{"X-Fail", "1"}}
	_, err := NewClient(srv.URL, "m", failing).Query(context.Background(), "p", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable || se.Body != "model not loaded" {
		t.Errorf("Expected StatusError 503, got %v", err)
	}
}

type headerTransport struct{ key, value string }

func (h headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set(h.key, h.value)
	return http.DefaultTransport.RoundTrip(r)
}

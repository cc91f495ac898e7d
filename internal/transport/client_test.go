// internal/transport/client_test.go
package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// testProxyURL points the transport at the test server as if it were a
// forward proxy: the server then sees the absolute-form request line.
func testProxyURL(t *testing.T, server *httptest.Server) *url.URL {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}
	return u
}

func TestPerformReturnsResponse(t *testing.T) {
	var gotUA, gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotURL = r.RequestURI
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	tr := NewHTTPTransport(Config{Timeout: 5 * time.Second})
	resp, err := tr.Perform(context.Background(), &proxy.Request{
		Method: http.MethodGet,
		URL:    "http://upstream.test/page",
	}, testProxyURL(t, server))
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "hello" {
		t.Errorf("body = %q, want %q", resp.Body, "hello")
	}
	if gotUA == "" {
		t.Error("expected a rotated User-Agent header")
	}
	if gotURL != "http://upstream.test/page" {
		t.Errorf("proxy saw %q, want absolute-form URL", gotURL)
	}
}

func TestPerformErrorStatusIsStillAResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tr := NewHTTPTransport(Config{})
	resp, err := tr.Perform(context.Background(), &proxy.Request{
		Method: http.MethodGet,
		URL:    "http://upstream.test/",
	}, testProxyURL(t, server))
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestPerformConnectFailure(t *testing.T) {
	// A closed server guarantees a refused connection.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	proxyURL := testProxyURL(t, server)
	server.Close()

	tr := NewHTTPTransport(Config{Timeout: 2 * time.Second})
	_, err := tr.Perform(context.Background(), &proxy.Request{
		Method: http.MethodGet,
		URL:    "http://upstream.test/",
	}, proxyURL)
	if err == nil {
		t.Fatal("expected an error for a dead proxy")
	}

	te, ok := err.(*TransportError)
	if !ok {
		t.Fatalf("error type = %T, want *TransportError", err)
	}
	if te.Kind != KindConnectFailed {
		t.Errorf("kind = %s, want %s", te.Kind, KindConnectFailed)
	}
}

func TestPerformTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	tr := NewHTTPTransport(Config{})
	_, err := tr.Perform(context.Background(), &proxy.Request{
		Method:  http.MethodGet,
		URL:     "http://upstream.test/",
		Timeout: 50 * time.Millisecond,
	}, testProxyURL(t, server))
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout = false for %v", err)
	}
}

func TestPerformBodySizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	tr := NewHTTPTransport(Config{MaxBodySize: 128})
	resp, err := tr.Perform(context.Background(), &proxy.Request{
		Method: http.MethodGet,
		URL:    "http://upstream.test/",
	}, testProxyURL(t, server))
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if len(resp.Body) != 128 {
		t.Errorf("body length = %d, want capped at 128", len(resp.Body))
	}
}

func TestUserAgentRotation(t *testing.T) {
	rot := newUserAgentRotator([]string{"a", "b", "c"})
	got := []string{rot.next(), rot.next(), rot.next(), rot.next()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("next()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClientReuse(t *testing.T) {
	tr := NewHTTPTransport(Config{})
	u, _ := url.Parse("http://127.0.0.1:3128")

	first := tr.clientFor(u)
	second := tr.clientFor(u)
	if first != second {
		t.Error("expected the same client for the same proxy URL")
	}
}

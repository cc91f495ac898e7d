// internal/proxy/health_test.go
package proxy

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestHealthCheckerCheck(t *testing.T) {
	tests := []struct {
		name        string
		perform     func(ctx context.Context, req *Request, proxyURL *url.URL) (*Response, error)
		wantHealthy bool
		wantHealth  HealthStatus
	}{
		{
			name: "2xx is healthy",
			perform: func(ctx context.Context, req *Request, proxyURL *url.URL) (*Response, error) {
				return &Response{StatusCode: 204, Status: "204 No Content"}, nil
			},
			wantHealthy: true,
			wantHealth:  HealthHealthy,
		},
		{
			name: "5xx is unhealthy",
			perform: func(ctx context.Context, req *Request, proxyURL *url.URL) (*Response, error) {
				return &Response{StatusCode: 502, Status: "502 Bad Gateway"}, nil
			},
			wantHealthy: false,
			wantHealth:  HealthDegraded,
		},
		{
			name: "transport error is unhealthy",
			perform: func(ctx context.Context, req *Request, proxyURL *url.URL) (*Response, error) {
				return nil, errors.New("connection refused")
			},
			wantHealthy: false,
			wantHealth:  HealthDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProxy("http://proxy.example.com:8080")
			if err != nil {
				t.Fatalf("NewProxy() returned error: %v", err)
			}

			hc := NewHealthChecker(&stubTransport{perform: tt.perform}, "", 0)
			result := hc.Check(context.Background(), p)

			if result.Healthy != tt.wantHealthy {
				t.Errorf("Healthy = %v, want %v", result.Healthy, tt.wantHealthy)
			}
			if result.ProxyID != p.ID {
				t.Errorf("ProxyID = %q, want %q", result.ProxyID, p.ID)
			}
			if p.HealthStatus() != tt.wantHealth {
				t.Errorf("proxy health = %s, want %s", p.HealthStatus(), tt.wantHealth)
			}
			if p.TotalRequests() != 1 {
				t.Errorf("TotalRequests() = %d, want 1", p.TotalRequests())
			}
			if p.RequestsActive() != 0 {
				t.Errorf("RequestsActive() = %d, want 0", p.RequestsActive())
			}
		})
	}
}

func TestHealthCheckerDefaults(t *testing.T) {
	hc := NewHealthChecker(okTransport(), "", 0)
	if hc.checkURL != DefaultHealthCheckURL {
		t.Errorf("checkURL = %q, want the default", hc.checkURL)
	}
	if hc.timeout != defaultHealthCheckTimeout {
		t.Errorf("timeout = %v, want %v", hc.timeout, defaultHealthCheckTimeout)
	}
}

func TestHealthCheckerCheckAllOrder(t *testing.T) {
	// Even-numbered proxies fail, odd ones pass.
	st := &stubTransport{
		perform: func(ctx context.Context, req *Request, proxyURL *url.URL) (*Response, error) {
			if strings.HasPrefix(proxyURL.Host, "bad") {
				return nil, errors.New("refused")
			}
			return &Response{StatusCode: 200, Status: "200 OK"}, nil
		},
	}

	var proxies []*Proxy
	for _, host := range []string{"good1", "bad1", "good2", "bad2"} {
		p, err := NewProxy("http://" + host + ".example.com:8080")
		if err != nil {
			t.Fatalf("NewProxy() returned error: %v", err)
		}
		proxies = append(proxies, p)
	}

	hc := NewHealthChecker(st, "http://check.example.com/ping", time.Second)
	results := hc.CheckAll(context.Background(), proxies)

	if len(results) != 4 {
		t.Fatalf("CheckAll() returned %d results, want 4", len(results))
	}
	for i, res := range results {
		if res.ProxyID != proxies[i].ID {
			t.Errorf("results[%d] is for %q, want input order preserved", i, res.ProxyID)
		}
		wantHealthy := i%2 == 0
		if res.Healthy != wantHealthy {
			t.Errorf("results[%d].Healthy = %v, want %v", i, res.Healthy, wantHealthy)
		}
	}
}

func TestRotatorHealthCheck(t *testing.T) {
	r := newTestRotator(t, okTransport(), nil,
		"http://proxy1.example.com:8080", "http://proxy2.example.com:8080")

	results := r.HealthCheck(context.Background(), "http://check.example.com/ping", time.Second)
	if len(results) != 2 {
		t.Fatalf("HealthCheck() returned %d results, want 2", len(results))
	}
	for _, res := range results {
		if !res.Healthy {
			t.Errorf("proxy %s reported unhealthy", res.URL)
		}
	}

	stats := r.GetPoolStats()
	if stats.HealthyProxies != 2 {
		t.Errorf("HealthyProxies = %d, want 2", stats.HealthyProxies)
	}
}

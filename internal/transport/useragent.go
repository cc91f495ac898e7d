// internal/transport/useragent.go
package transport

import "sync"

// defaultUserAgents cover the major browsers so rotated requests blend
// in with ordinary traffic.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// userAgentRotator hands out user agents in a round robin.
type userAgentRotator struct {
	mu      sync.Mutex
	agents  []string
	current int
}

func newUserAgentRotator(agents []string) *userAgentRotator {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &userAgentRotator{agents: agents}
}

func (r *userAgentRotator) next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ua := r.agents[r.current]
	r.current = (r.current + 1) % len(r.agents)
	return ua
}

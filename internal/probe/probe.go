package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Unreachable is the latency recorded for a mirror that could not be reached
// or was never probed.
const Unreachable int64 = -1

const (
	defaultTimeout = 5 * time.Second
	defaultWorkers = 10
)

// DialFunc opens a network connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober runs TCP connect probes with a per-connection timeout and a bound
// on how many run at once.
type Prober struct {
	timeout time.Duration
	workers int
	dial    DialFunc
}

// New creates a Prober. Non-positive values fall back to 5s and 10 workers.
func New(timeout time.Duration, workers int) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	d := &net.Dialer{}
	return &Prober{timeout: timeout, workers: workers, dial: d.DialContext}
}

// WithDialer returns a copy of p that connects through dial.
func (p *Prober) WithDialer(dial DialFunc) *Prober {
	cp := *p
	cp.dial = dial
	return &cp
}

// Probe connects to the host behind rawURL and returns the elapsed
// milliseconds, or Unreachable.
func (p *Prober) Probe(ctx context.Context, rawURL string) int64 {
	addr, err := Address(rawURL)
	if err != nil {
		slog.Debug("probe skipped", "url", rawURL, "error", err)
		return Unreachable
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(dialCtx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		slog.Debug("probe failed", "addr", addr, "error", err)
		return Unreachable
	}
	conn.Close()

	slog.Debug("probe ok", "addr", addr, "ms", elapsed.Milliseconds())
	return elapsed.Milliseconds()
}

// ProbeAll probes every URL concurrently. The result is index-aligned with urls.
func (p *Prober) ProbeAll(ctx context.Context, urls []string) []int64 {
	results := make([]int64, len(urls))
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = p.Probe(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Address turns a mirror URL into a host:port dial target. Cargo style
// protocol prefixes such as "sparse+" are dropped and a missing port is
// filled from the scheme: 443 for https, 80 otherwise.
func Address(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", fmt.Errorf("empty url")
	}
	if i := strings.Index(s, "://"); i >= 0 {
		if plus := strings.LastIndex(s[:i], "+"); plus >= 0 {
			s = s[plus+1:]
		}
	} else {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// Rank returns the indices of latencies ordered fastest first. Unreachable
// entries go last and ties keep their original order.
func Rank(latencies []int64) []int {
	idx := make([]int, len(latencies))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		la, lb := latencies[idx[a]], latencies[idx[b]]
		if la == Unreachable && lb != Unreachable {
			return false
		}
		if la != Unreachable && lb == Unreachable {
			return true
		}
		return la < lb
	})
	return idx
}

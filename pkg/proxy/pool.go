// Package proxy rotates outgoing page fetches across a list of HTTP proxies
// and benches the ones that keep failing.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var ErrUnknownProxy = errors.New("proxy not in pool")

const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 5 * time.Minute
)

type entry struct {
	url        *url.URL
	failures   int
	benchUntil time.Time
}

// Pool hands out proxies round-robin. A nil *Pool is valid and never
// returns a proxy.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config tunes benching. Zero values take the package defaults.
type Config struct {
	// MaxFailures consecutive failures bench a proxy for Cooldown.
	MaxFailures int
	Cooldown    time.Duration
}

func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Pool{maxFailures: cfg.MaxFailures, cooldown: cfg.Cooldown, now: time.Now}
}

// Add parses proxy addresses. A missing scheme means http.
func (p *Pool) Add(addrs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range addrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("parse proxy %q: invalid address", raw)
		}
		p.entries = append(p.entries, &entry{url: u})
	}
	return nil
}

// LoadFile adds one proxy per line, skipping blanks and # comments.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()

	var addrs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			addrs = append(addrs, line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read proxy list: %w", err)
	}
	return p.Add(addrs...)
}

// Len reports how many proxies are configured, benched or not.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy that is not benched, or nil when none is
// available.
func (p *Pool) Next() *url.URL {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)
		if !e.benchUntil.IsZero() && now.Before(e.benchUntil) {
			continue
		}
		if !e.benchUntil.IsZero() {
			e.benchUntil = time.Time{}
			e.failures = 0
		}
		return e.url
	}
	return nil
}

// Report records the outcome of a request sent through u.
func (p *Pool) Report(u *url.URL, ok bool) error {
	if p == nil || u == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var e *entry
	for _, cand := range p.entries {
		if cand.url.String() == u.String() {
			e = cand
			break
		}
	}
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProxy, u.Redacted())
	}

	if ok {
		e.failures = 0
		return nil
	}
	e.failures++
	if e.failures >= p.maxFailures {
		e.benchUntil = p.now().Add(p.cooldown)
	}
	return nil
}

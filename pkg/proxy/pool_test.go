package proxy

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool(Config{})
	if err := p.Add("10.0.0.1:8080", "http://10.0.0.2:8080", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 proxies, got %d", p.Len())
	}

	want := []string{"http://10.0.0.1:8080", "http://10.0.0.2:8080", "http://10.0.0.1:8080"}
	for i, w := range want {
		if got := p.Next().String(); got != w {
			t.Errorf("call %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestPool_BenchAndRecover(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPool(Config{MaxFailures: 2, Cooldown: time.Minute})
	p.now = func() time.Time { return now }
	p.Add("a:1", "b:1")

	a := p.Next()
	p.Report(a, false)
	p.Report(a, false)

	for i := 0; i < 3; i++ {
		if got := p.Next(); got.String() == a.String() {
			t.Fatalf("expected benched proxy to be skipped")
		}
	}

	now = now.Add(2 * time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[p.Next().String()] = true
	}
	if !seen[a.String()] {
		t.Errorf("expected proxy to return after cooldown")
	}
}

func TestPool_SuccessResetsFailures(t *testing.T) {
	p := NewPool(Config{MaxFailures: 2})
	p.Add("a:1")
	a := p.Next()

	p.Report(a, false)
	p.Report(a, true)
	p.Report(a, false)
	if p.Next() == nil {
		t.Errorf("expected proxy to stay available after a success reset")
	}
}

func TestPool_AllBenched(t *testing.T) {
	p := NewPool(Config{MaxFailures: 1})
	p.Add("a:1")
	p.Report(p.Next(), false)
	if got := p.Next(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestPool_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "# egress\nhttp://p1:3128\n\n  p2:3128  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p := NewPool(Config{})
	if err := p.LoadFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 proxies, got %d", p.Len())
	}
	if err := p.LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestPool_ReportUnknown(t *testing.T) {
	p := NewPool(Config{})
	u, _ := url.Parse("http://nowhere:1")
	if err := p.Report(u, false); !errors.Is(err, ErrUnknownProxy) {
		t.Errorf("expected ErrUnknownProxy, got %v", err)
	}
}

func TestPool_Nil(t *testing.T) {
	var p *Pool
	if p.Next() != nil || p.Len() != 0 || p.Report(nil, true) != nil {
		t.Errorf("expected nil pool to be inert")
	}
}

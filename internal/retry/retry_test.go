package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func failing(k int, err error) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= k {
			return "", err
		}
		return "ok", nil
	}, &calls
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	boom := errors.New("boom")
	for k := 0; k <= 3; k++ {
		rec := &recorder{}
		op, calls := failing(k, boom)
		got, err := Do(context.Background(), Policy{Attempts: k + 1, BaseDelay: time.Second, Sleep: rec.sleep}, op)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if got != "ok" {
			t.Errorf("k=%d: expected ok, got %q", k, got)
		}
		if *calls != k+1 {
			t.Errorf("k=%d: expected %d calls, got %d", k, k+1, *calls)
		}
		if len(rec.delays) != k {
			t.Fatalf("k=%d: expected %d delays, got %d", k, k, len(rec.delays))
		}
		for i, d := range rec.delays {
			if want := time.Duration(i+1) * time.Second; d != want {
				t.Errorf("k=%d: delay %d expected %v, got %v", k, i, want, d)
			}
		}
	}
}

func TestDo_ReturnsFinalError(t *testing.T) {
	var errs []error
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		err := errors.New("attempt failed")
		errs = append(errs, err)
		return 0, err
	}

	rec := &recorder{}
	_, err := Do(context.Background(), Policy{Attempts: 3, BaseDelay: 2 * time.Second, Sleep: rec.sleep}, op)
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if err != errs[len(errs)-1] {
		t.Errorf("expected the last attempt's error unmodified, got %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("expected %d delays, got %d", len(want), len(rec.delays))
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay %d expected %v, got %v", i, want[i], rec.delays[i])
		}
	}
}

func TestDo_AttemptsAtMostK(t *testing.T) {
	boom := errors.New("boom")
	op, calls := failing(2, boom)
	_, err := Do(context.Background(), Policy{Attempts: 2, Sleep: (&recorder{}).sleep}, op)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if *calls != 2 {
		t.Errorf("expected 2 calls, got %d", *calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	op, calls := failing(0, nil)
	if _, err := Do(context.Background(), Policy{}, op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected 1 call, got %d", *calls)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("transient")
	}

	_, err := Do(ctx, Policy{Attempts: 3, BaseDelay: time.Hour}, op)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RealWait(t *testing.T) {
	op, _ := failing(1, errors.New("once"))
	start := time.Now()
	if _, err := Do(context.Background(), Policy{Attempts: 2, BaseDelay: 20 * time.Millisecond}, op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected to wait at least 20ms, waited %v", elapsed)
	}
}

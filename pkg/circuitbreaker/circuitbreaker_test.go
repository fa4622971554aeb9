package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func testConfig(cooldown time.Duration) Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    1,
		Cooldown:            cooldown,
		HalfOpenMaxRequests: 1,
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig(time.Minute))

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: got %v, want errBoom", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state=%v, want open", cb.GetState())
	}

	// Subsequent calls fail fast without invoking the capability.
	invoked := false
	err := cb.Execute(func() error { invoked = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("got %v, want ErrOpen", err)
	}
	if invoked {
		t.Error("capability was invoked while breaker open")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(testConfig(time.Minute))

	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })

	if cb.GetState() != StateClosed {
		t.Errorf("state=%v, want closed (failures were not consecutive)", cb.GetState())
	}
}

func TestHalfOpenSingleTrial(t *testing.T) {
	cb := New(testConfig(10 * time.Millisecond))

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errBoom })
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state=%v, want open", cb.GetState())
	}

	time.Sleep(15 * time.Millisecond)

	// First call after cooldown is the single trial; hold it open by
	// counting invocations across two concurrent-looking attempts.
	trials := 0
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			trials++
			time.Sleep(30 * time.Millisecond)
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	// Second attempt while the trial is in flight must fail fast.
	if err := cb.Execute(func() error { trials++; return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("second half-open call: got %v, want ErrOpen", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if trials != 1 {
		t.Errorf("trials=%d, want exactly 1", trials)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state=%v, want closed after trial success", cb.GetState())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig(10 * time.Millisecond))

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errBoom })
	}
	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("trial call: got %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Errorf("state=%v, want open after failed trial", cb.GetState())
	}
}

package barrier

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrierPhasesInLockstep(t *testing.T) {
	const parties = 8
	const phases = 50

	b := New(parties)
	var arrived [phases]atomic.Int32
	var wg sync.WaitGroup

	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for phase := 0; phase < phases; phase++ {
				arrived[phase].Add(1)
				if err := b.Wait(); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				// Nobody passes the barrier before everyone arrived
				if got := arrived[phase].Load(); got != parties {
					t.Errorf("phase %d: passed barrier with %d/%d arrivals", phase, got, parties)
				}
			}
		}()
	}
	wg.Wait()
}

func TestBarrierSingleParty(t *testing.T) {
	b := New(0)
	if b.Parties() != 1 {
		t.Fatalf("expected 1 party, got %d", b.Parties())
	}
	for i := 0; i < 3; i++ {
		if err := b.Wait(); err != nil {
			t.Fatalf("single-party Wait returned %v", err)
		}
	}
}

func TestBarrierAbortReleasesWaiters(t *testing.T) {
	b := New(3)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- b.Wait() }()
	}

	// Give the waiters time to block
	time.Sleep(20 * time.Millisecond)
	b.Abort(errors.New("worker 2 failed"))

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrBroken) {
				t.Errorf("expected ErrBroken, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter was not released by Abort")
		}
	}

	if err := b.Wait(); !errors.Is(err, ErrBroken) {
		t.Errorf("Wait after Abort should fail fast, got %v", err)
	}
	if b.Err() == nil {
		t.Error("Err should report the abort")
	}
}

func TestBarrierAbortKeepsFirstCause(t *testing.T) {
	b := New(2)
	b.Abort(errors.New("first"))
	b.Abort(errors.New("second"))
	if got := b.Err().Error(); got != "first: barrier broken" {
		t.Errorf("unexpected abort error %q", got)
	}
}

func BenchmarkBarrierWait(b *testing.B) {
	const parties = 4
	bar := New(parties)
	var wg sync.WaitGroup
	b.ResetTimer()
	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < b.N; i++ {
				_ = bar.Wait()
			}
		}()
	}
	wg.Wait()
}

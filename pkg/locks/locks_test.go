package locks

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	arena := NewArena(10 * time.Millisecond)

	release, err := arena.Acquire("report.pdf")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()

	// Reacquiring after release must succeed immediately.
	release2, err := arena.Acquire("report.pdf")
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	release2()
}

func TestSecondAcquireFailsBusy(t *testing.T) {
	arena := NewArena(20 * time.Millisecond)

	release, err := arena.Acquire("report.pdf")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	_, err = arena.Acquire("report.pdf")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for contended name, got %v", err)
	}
}

func TestDifferentNamesAreIndependent(t *testing.T) {
	arena := NewArena(20 * time.Millisecond)

	releaseA, err := arena.Acquire("a.pdf")
	if err != nil {
		t.Fatalf("Acquire(a.pdf) error = %v", err)
	}
	defer releaseA()

	releaseB, err := arena.Acquire("b.pdf")
	if err != nil {
		t.Fatalf("Acquire(b.pdf) should not be blocked by a.pdf, got %v", err)
	}
	releaseB()
}

func TestReleaseIsIdempotent(t *testing.T) {
	arena := NewArena(10 * time.Millisecond)

	release, err := arena.Acquire("report.pdf")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()
	release() // must not panic or unlock someone else's hold

	release2, err := arena.Acquire("report.pdf")
	if err != nil {
		t.Fatalf("Acquire() after double release error = %v", err)
	}
	release2()
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	arena := NewArena(5 * time.Millisecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	busy := 0

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := arena.Acquire("report.pdf")
			if err != nil {
				mu.Lock()
				busy++
				mu.Unlock()
				return
			}
			mu.Lock()
			winners++
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			release()
		}()
	}
	wg.Wait()

	if winners != 1 || busy != 1 {
		t.Errorf("expected exactly one winner and one busy, got winners=%d busy=%d", winners, busy)
	}
}

func TestArenaDoesNotLeakEntries(t *testing.T) {
	arena := NewArena(10 * time.Millisecond)

	release, err := arena.Acquire("report.pdf")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()

	arena.mu.Lock()
	n := len(arena.locks)
	arena.mu.Unlock()
	if n != 0 {
		t.Errorf("expected empty arena after release, got %d entries", n)
	}
}

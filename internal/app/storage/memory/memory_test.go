package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/domain/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage"
)

func TestCreateLockAssignsDenseIDs(t *testing.T) {
	store := New()
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		rec, err := store.CreateLock(ctx, bridge.LockRecord{Asset: "NEO", Owner: "NAlice", Amount: want})
		if err != nil {
			t.Fatalf("CreateLock: %v", err)
		}
		if rec.ID != want {
			t.Fatalf("id = %d, want %d", rec.ID, want)
		}
	}

	next, err := store.NextID(ctx)
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if next != 6 {
		t.Fatalf("NextID = %d, want 6", next)
	}
}

func TestCreateLockIgnoresCallerID(t *testing.T) {
	store := New()

	rec, err := store.CreateLock(context.Background(), bridge.LockRecord{ID: 99, Asset: "NEO", Owner: "NAlice", Amount: 1, Released: true})
	if err != nil {
		t.Fatalf("CreateLock: %v", err)
	}
	if rec.ID != 1 {
		t.Fatalf("id = %d, want 1", rec.ID)
	}
	if rec.Released {
		t.Fatalf("released flag carried over from input")
	}
}

func TestGetLockNotFound(t *testing.T) {
	store := New()

	if _, err := store.GetLock(context.Background(), 0); !errors.Is(err, storage.ErrLockNotFound) {
		t.Fatalf("GetLock(0) error = %v, want ErrLockNotFound", err)
	}
	if _, err := store.GetLock(context.Background(), 1); !errors.Is(err, storage.ErrLockNotFound) {
		t.Fatalf("GetLock(1) error = %v, want ErrLockNotFound", err)
	}
}

func TestMarkReleasedOnce(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, _ := store.CreateLock(ctx, bridge.LockRecord{Asset: "NEO", Owner: "NAlice", Amount: 10})

	released, err := store.MarkReleased(ctx, rec.ID)
	if err != nil {
		t.Fatalf("MarkReleased: %v", err)
	}
	if !released.Released || released.ReleasedAt == nil {
		t.Fatalf("record not released: %+v", released)
	}

	if _, err := store.MarkReleased(ctx, rec.ID); !errors.Is(err, storage.ErrLockReleased) {
		t.Fatalf("second MarkReleased error = %v, want ErrLockReleased", err)
	}
	if _, err := store.MarkReleased(ctx, 42); !errors.Is(err, storage.ErrLockNotFound) {
		t.Fatalf("MarkReleased(42) error = %v, want ErrLockNotFound", err)
	}
}

func TestMarkReleasedConcurrent(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec, _ := store.CreateLock(ctx, bridge.LockRecord{Asset: "NEO", Owner: "NAlice", Amount: 10})

	const workers = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.MarkReleased(ctx, rec.ID); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("release succeeded %d times, want exactly 1", count)
	}
}

func TestListEventsTailOldestFirst(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.AppendEvent(ctx, bridge.Event{Type: bridge.EventAssetLocked, Amount: uint64(i + 1)}); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	evs, err := store.ListEvents(ctx, 3)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("event count = %d, want 3", len(evs))
	}
	for i, want := range []uint64{3, 4, 5} {
		if evs[i].Amount != want {
			t.Fatalf("event[%d].Amount = %d, want %d", i, evs[i].Amount, want)
		}
	}
}

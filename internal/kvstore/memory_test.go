package kvstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_IncrWithExpire(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrWithExpire(ctx, "counter", time.Minute)
		if err != nil {
			t.Fatalf("IncrWithExpire error = %v", err)
		}
		if got != want {
			t.Errorf("IncrWithExpire = %d, want %d", got, want)
		}
	}
}

func TestMemoryStore_IncrWithExpire_BucketExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if _, err := s.IncrWithExpire(ctx, "bucket", 70*time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := s.IncrWithExpire(ctx, "bucket", 70*time.Second); err != nil {
		t.Fatal(err)
	}

	// The bucket's lifetime is fixed by the first increment.
	now = now.Add(71 * time.Second)
	got, err := s.IncrWithExpire(ctx, "bucket", 70*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("counter after expiry = %d, want 1", got)
	}
}

func TestMemoryStore_SetNX(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "lock", "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = s.SetNX(ctx, "lock", "owner-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX = (%v, %v), want (false, nil)", ok, err)
	}

	val, err := s.Get(ctx, "lock")
	if err != nil {
		t.Fatal(err)
	}
	if val != "owner-a" {
		t.Errorf("Get = %q, want %q", val, "owner-a")
	}
}

func TestMemoryStore_SetNX_ExpiredLockIsFree(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if ok, _ := s.SetNX(ctx, "lock", "crashed-holder", 2*time.Minute); !ok {
		t.Fatal("initial SetNX should succeed")
	}

	now = now.Add(2*time.Minute + time.Second)
	ok, err := s.SetNX(ctx, "lock", "new-holder", 2*time.Minute)
	if err != nil || !ok {
		t.Fatalf("SetNX after TTL = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestMemoryStore_GetDel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := s.SetNX(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Del error = %v, want ErrNotFound", err)
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Errorf("Del(missing) error = %v, want nil", err)
	}
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.IncrWithExpire(ctx, "c", time.Minute); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := s.IncrWithExpire(ctx, "c", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got != goroutines+1 {
		t.Errorf("final counter = %d, want %d", got, goroutines+1)
	}
}

func TestMemoryStore_DelIfEquals(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.SetNX(ctx, "lock", "owner-a", time.Minute); err != nil {
		t.Fatal(err)
	}

	ok, err := s.DelIfEquals(ctx, "lock", "owner-b")
	if err != nil || ok {
		t.Fatalf("DelIfEquals(wrong value) = (%v, %v), want (false, nil)", ok, err)
	}
	if _, err := s.Get(ctx, "lock"); err != nil {
		t.Errorf("key deleted despite value mismatch: %v", err)
	}

	ok, err = s.DelIfEquals(ctx, "lock", "owner-a")
	if err != nil || !ok {
		t.Fatalf("DelIfEquals(matching value) = (%v, %v), want (true, nil)", ok, err)
	}
	if _, err := s.Get(ctx, "lock"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after DelIfEquals error = %v, want ErrNotFound", err)
	}

	ok, err = s.DelIfEquals(ctx, "lock", "owner-a")
	if err != nil || ok {
		t.Errorf("DelIfEquals(missing key) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestMemoryStore_DelIfEquals_ExpiredKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if _, err := s.SetNX(ctx, "lock", "owner-a", time.Minute); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)

	ok, err := s.DelIfEquals(ctx, "lock", "owner-a")
	if err != nil || ok {
		t.Errorf("DelIfEquals(expired key) = (%v, %v), want (false, nil)", ok, err)
	}
}

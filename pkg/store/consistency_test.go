package store

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// Each goroutine owns a disjoint key range and hammers it; every key
// must afterwards hold the last value its owner wrote. Run with -race.
func TestConcurrentDisjointWriters(t *testing.T) {
	const writers = 8
	const opsPerWriter = 10000
	const keysPerWriter = 100

	s, err := New(Config{
		ShardCount:      8,
		InitialCapacity: 64,
		SweepInterval:   10 * time.Millisecond,
		HashSeed:        42,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < opsPerWriter; i++ {
				k := fmt.Appendf(nil, "w%d_k%d", w, i%keysPerWriter)
				v := fmt.Appendf(nil, "w%d_v%d", w, i)
				if err := s.Set(k, v, 0); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		for i := 0; i < keysPerWriter; i++ {
			k := fmt.Appendf(nil, "w%d_k%d", w, i)
			want := fmt.Appendf(nil, "w%d_v%d", w, opsPerWriter-keysPerWriter+i)
			got, ok, err := s.Get(k)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !ok {
				t.Fatalf("key %s lost", k)
			}
			if string(got) != string(want) {
				t.Fatalf("key %s: got %s, want %s", k, got, want)
			}
		}
	}

	if s.Len() != writers*keysPerWriter {
		t.Fatalf("expected %d entries, got %d", writers*keysPerWriter, s.Len())
	}
}

// Mixed readers, writers and deleters on a shared keyspace. The race
// detector is the real assertion here.
func TestConcurrentMixedOps(t *testing.T) {
	const goroutines = 12
	const ops = 5000
	const keySpace = 200

	s, err := New(Config{
		ShardCount:      8,
		InitialCapacity: 16,
		SweepInterval:   5 * time.Millisecond,
		HashSeed:        42,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				k := fmt.Appendf(nil, "shared_%d", (g*ops+i)%keySpace)
				switch i % 5 {
				case 0, 1:
					if _, _, err := s.Get(k); err != nil {
						t.Errorf("Get failed: %v", err)
						return
					}
				case 2:
					if err := s.Set(k, k, time.Millisecond); err != nil {
						t.Errorf("Set failed: %v", err)
						return
					}
				case 3:
					if err := s.Set(k, k, 0); err != nil {
						t.Errorf("Set failed: %v", err)
						return
					}
				case 4:
					if _, err := s.Delete(k); err != nil {
						t.Errorf("Delete failed: %v", err)
						return
					}
				}
			}
		}(g)
	}
	wg.Wait()
}

// Concurrent increments on one key must lose no updates.
func TestConcurrentIncrements(t *testing.T) {
	const goroutines = 8
	const increments = 2000

	s, err := New(Config{
		ShardCount:      4,
		InitialCapacity: 16,
		SweepInterval:   time.Hour,
		HashSeed:        42,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				if _, err := s.IncrBy([]byte("counter"), 1); err != nil {
					t.Errorf("IncrBy failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, ok, err := s.Get([]byte("counter"))
	if err != nil || !ok {
		t.Fatalf("counter missing: ok=%v err=%v", ok, err)
	}
	want := fmt.Sprintf("%d", goroutines*increments)
	if string(got) != want {
		t.Fatalf("lost updates: got %s, want %s", got, want)
	}
}

// Clear concurrent with in-flight Sets must neither deadlock nor leave
// the store unusable.
func TestClearUnderConcurrentWrites(t *testing.T) {
	s, err := New(Config{
		ShardCount:      8,
		InitialCapacity: 16,
		SweepInterval:   10 * time.Millisecond,
		HashSeed:        42,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				k := fmt.Appendf(nil, "c%d_%d", g, i%50)
				if err := s.Set(k, k, 0); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
			}
		}(g)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.Clear()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Clear deadlocked against concurrent writers")
	}

	close(stop)
	wg.Wait()

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after final Clear, got %d", s.Len())
	}
}

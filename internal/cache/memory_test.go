package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemory_BasicOperations(t *testing.T) {
	cache := NewMemory(1024)

	key := "test-key"
	value := []byte("test-value")

	if err := cache.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if string(got) != string(value) {
		t.Errorf("Get() = %s, want %s", got, value)
	}

	if cache.Size() != int64(len(value)) {
		t.Errorf("Size() = %d, want %d", cache.Size(), len(value))
	}

	if err := cache.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := cache.Get(key); ok {
		t.Error("key still present after Delete")
	}
	if cache.Size() != 0 {
		t.Errorf("Size() after delete = %d", cache.Size())
	}
}

func TestMemory_LRUEviction(t *testing.T) {
	cache := NewMemory(100)

	for i := 0; i < 5; i++ {
		if err := cache.Put(fmt.Sprintf("key-%d", i), make([]byte, 20)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// Touch key-0 and key-1 so key-2 and key-3 are the oldest.
	cache.Get("key-0")
	cache.Get("key-1")

	if err := cache.Put("key-new", make([]byte, 30)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"key-0", true},
		{"key-1", true},
		{"key-2", false},
		{"key-3", false},
		{"key-4", true},
		{"key-new", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if _, ok := cache.Get(tt.key); ok != tt.want {
				t.Errorf("present = %v, want %v", ok, tt.want)
			}
		})
	}

	if cache.Stats().Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", cache.Stats().Evictions)
	}
}

func TestMemory_ItemTooLarge(t *testing.T) {
	cache := NewMemory(10)
	if err := cache.Put("big", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put() error = %v, want ErrItemTooLarge", err)
	}
}

func TestMemory_ReplaceUpdatesSize(t *testing.T) {
	cache := NewMemory(100)
	_ = cache.Put("k", make([]byte, 40))
	_ = cache.Put("k", make([]byte, 10))

	if cache.Size() != 10 {
		t.Errorf("Size() = %d, want 10", cache.Size())
	}
	if cache.Stats().ItemCount != 1 {
		t.Errorf("ItemCount = %d, want 1", cache.Stats().ItemCount)
	}
}

func TestMemory_Stats(t *testing.T) {
	cache := NewMemory(100)
	_ = cache.Put("a", []byte("x"))
	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", stats.Hits, stats.Misses)
	}
	if rate := stats.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("HitRate() = %v", rate)
	}
}

func TestMemory_Prune(t *testing.T) {
	cache := NewMemory(100)
	_ = cache.Put("old", []byte("x"))

	if n := cache.Prune(time.Hour); n != 0 {
		t.Errorf("Prune(1h) removed %d fresh entries", n)
	}
	time.Sleep(5 * time.Millisecond)
	if n := cache.Prune(time.Millisecond); n != 1 {
		t.Errorf("Prune(1ms) removed %d, want 1", n)
	}
}

func TestMemory_Clear(t *testing.T) {
	cache := NewMemory(100)
	_ = cache.Put("a", []byte("x"))
	_ = cache.Put("b", []byte("y"))
	_ = cache.Clear()

	if cache.Size() != 0 || cache.Stats().ItemCount != 0 {
		t.Error("Clear did not empty the cache")
	}
}

func TestMemory_Concurrent(t *testing.T) {
	cache := NewMemory(10 * 1024)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j%10)
				_ = cache.Put(key, make([]byte, 10))
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Size() > 10*1024 {
		t.Errorf("Size() = %d exceeds capacity", cache.Size())
	}
}

func TestKey(t *testing.T) {
	a := Key("voice", "hello")
	if a != Key("voice", "hello") {
		t.Error("Key is not deterministic")
	}
	if a == Key("voice2", "hello") || a == Key("voice", "hello!") {
		t.Error("Key should depend on voice and text")
	}
	// The separator keeps boundary shifts distinct.
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("Key collides across the voice/text boundary")
	}
	if len(a) != 32 {
		t.Errorf("len(Key) = %d, want 32", len(a))
	}
}

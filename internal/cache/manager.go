package cache

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager fronts a disk cache with a memory LRU. Disk hits are promoted to
// memory; writes reach memory immediately and disk in the background.
type Manager struct {
	memory *Memory
	disk   *Disk // nil when the disk level is disabled

	config Config
	logger *log.Logger

	cleanupStop chan struct{}
	cleanupDone sync.WaitGroup
	writes      sync.WaitGroup
	closeOnce   sync.Once

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates both levels.
type ManagerStats struct {
	Memory Stats
	Disk   Stats

	Hits        int64
	Misses      int64
	Promotions  int64
	CleanupRuns int64
	LastCleanup time.Time
}

// HitRate returns hits / (hits + misses) across both levels.
func (s ManagerStats) HitRate() float64 {
	return Stats{Hits: s.Hits, Misses: s.Misses}.HitRate()
}

// NewManager creates a cache manager. A nil logger discards log output.
func NewManager(config Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	m := &Manager{
		memory:      NewMemory(config.MemoryCapacity),
		config:      config,
		logger:      logger.WithPrefix("cache"),
		cleanupStop: make(chan struct{}),
	}

	if config.DiskCapacity > 0 && config.Dir != "" {
		disk, err := NewDisk(config.Dir, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.disk = disk
	}

	if config.CleanupInterval > 0 {
		m.cleanupDone.Add(1)
		go m.cleanupLoop()
	}

	return m, nil
}

// Get checks memory, then disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.count(func(s *ManagerStats) { s.Hits++ })
		return data, true
	}

	if m.disk != nil {
		if data, ok := m.disk.Get(key); ok {
			_ = m.memory.Put(key, data)
			m.count(func(s *ManagerStats) { s.Hits++; s.Promotions++ })
			return data, true
		}
	}

	m.count(func(s *ManagerStats) { s.Misses++ })
	return nil, false
}

// Put stores value in memory and schedules the disk write.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}

	if m.disk != nil {
		m.writes.Add(1)
		go func() {
			defer m.writes.Done()
			if err := m.disk.Put(key, value); err != nil {
				m.logger.Warn("disk write failed", "key", key, "err", err)
			}
		}()
	}

	return nil
}

// Delete removes key from both levels.
func (m *Manager) Delete(key string) error {
	errs := []error{m.memory.Delete(key)}
	if m.disk != nil {
		errs = append(errs, m.disk.Delete(key))
	}
	return errors.Join(errs...)
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	errs := []error{m.memory.Clear()}
	if m.disk != nil {
		errs = append(errs, m.disk.Clear())
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of both levels.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	stats.Memory = m.memory.Stats()
	if m.disk != nil {
		stats.Disk = m.disk.Stats()
	}
	return stats
}

// Flush waits for pending disk writes.
func (m *Manager) Flush() {
	m.writes.Wait()
}

// Close stops cleanup, waits for disk writes, and saves the disk index.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.cleanupStop)
		m.cleanupDone.Wait()
		m.writes.Wait()
		if m.disk != nil {
			err = m.disk.Close()
		}
	})
	return err
}

// Cleanup removes entries older than the configured TTL.
func (m *Manager) Cleanup() {
	m.count(func(s *ManagerStats) {
		s.CleanupRuns++
		s.LastCleanup = time.Now()
	})

	if m.config.TTL <= 0 {
		return
	}

	pruned := m.memory.Prune(m.config.TTL)
	removed := 0
	if m.disk != nil {
		removed = m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	}
	if pruned+removed > 0 {
		m.logger.Debug("expired entries removed", "memory", pruned, "disk", removed)
	}
}

func (m *Manager) cleanupLoop() {
	defer m.cleanupDone.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.cleanupStop:
			return
		}
	}
}

func (m *Manager) count(f func(*ManagerStats)) {
	m.mu.Lock()
	f(&m.stats)
	m.mu.Unlock()
}

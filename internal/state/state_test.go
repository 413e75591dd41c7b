package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTracker_InitialSnapshot(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := newTrackerWithClock(clock.Now)

	clock.Advance(90 * time.Second)
	s := tr.Snapshot()

	assert.Equal(t, int64(0), s.Requests)
	assert.True(t, s.LastRequest.IsZero())
	assert.Equal(t, 90*time.Second, s.Uptime)
}

func TestTracker_Record(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := newTrackerWithClock(clock.Now)

	clock.Advance(time.Minute)
	tr.Record()
	clock.Advance(time.Minute)
	tr.Record()

	s := tr.Snapshot()
	assert.Equal(t, int64(2), s.Requests)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 2, 0, 0, time.UTC), s.LastRequest)
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				tr.Record()
			}
		}()
	}
	wg.Wait()

	s := tr.Snapshot()
	require.Equal(t, int64(1000), s.Requests)
	assert.False(t, s.LastRequest.IsZero())
}

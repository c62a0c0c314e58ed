package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_Advances(t *testing.T) {
	clock := NewStepClock(Epoch, time.Second)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, Epoch.Add(2*time.Second), clock.Peek())
	assert.Equal(t, Epoch.Add(2*time.Second), clock.Now())
}

func TestStepClock_SetRewinds(t *testing.T) {
	clock := NewStepClock(Epoch, time.Second)
	clock.Now()
	clock.Set(Epoch.Add(-time.Hour))
	assert.Equal(t, Epoch.Add(-time.Hour), clock.Now())
}

func TestStepClock_ConcurrentAccess(t *testing.T) {
	clock := NewStepClock(Epoch, time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, Epoch.Add(100*time.Millisecond), clock.Peek())
}

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("")
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", ids.Next().String())
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", ids.Next().String())

	other := NewSequentialIDs("a0000000")
	assert.Equal(t, "a0000000-0000-4000-8000-000000000001", other.Next().String())
}

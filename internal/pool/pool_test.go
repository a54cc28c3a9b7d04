package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryTask(t *testing.T) {
	p := New(4)
	defer p.Close()

	var counter atomic.Int64
	for i := 0; i < 1000; i++ {
		require.NoError(t, p.Post(func() { counter.Add(1) }))
	}
	require.NoError(t, p.Complete())
	assert.Equal(t, int64(1000), counter.Load())
	assert.Equal(t, 0, p.InFlight())
}

func TestPoolIsReusableAcrossBatches(t *testing.T) {
	p := New(3)
	defer p.Close()

	results := make([]int, 50)
	for batch := 1; batch <= 3; batch++ {
		for i := range results {
			i := i
			require.NoError(t, p.Post(func() { results[i] += i * batch }))
		}
		require.NoError(t, p.Complete())
	}
	for i, got := range results {
		assert.Equal(t, i*6, got)
	}
}

func TestCompleteWithNothingPostedReturnsImmediately(t *testing.T) {
	p := New(2)
	defer p.Close()

	done := make(chan struct{})
	go func() {
		_ = p.Complete()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("complete blocked on an idle pool")
	}
}

func TestCompleteWaitsForRunningTasks(t *testing.T) {
	p := New(2)
	defer p.Close()

	release := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, p.Post(func() {
		<-release
		finished.Store(true)
	}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, p.Complete())
	assert.True(t, finished.Load())
}

func TestTaskPanicSurfacesFromComplete(t *testing.T) {
	p := New(2)
	defer p.Close()

	var counter atomic.Int64
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, p.Post(func() {
			if i == 3 {
				panic("boom")
			}
			counter.Add(1)
		}))
	}
	err := p.Complete()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(9), counter.Load())

	require.NoError(t, p.Post(func() {}))
	assert.NoError(t, p.Complete(), "failure is reported once")
}

func TestPostAfterCloseFails(t *testing.T) {
	p := New(1)
	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Post(func() {}), ErrClosed)
	assert.NoError(t, p.Complete())
}

func TestPostRejectsNilTask(t *testing.T) {
	p := New(1)
	defer p.Close()
	assert.Error(t, p.Post(nil))
}

func TestCloseDropsQueuedTasks(t *testing.T) {
	p := New(1)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.Post(func() {
		close(started)
		<-release
	}))
	<-started
	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Post(func() { ran.Add(1) }))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Close()
	}()
	// let Close drop the queue before the running task returns
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(0), ran.Load())
	assert.Equal(t, 0, p.InFlight())
}

func TestNonPositiveSizeStartsOneWorker(t *testing.T) {
	p := New(0)
	defer p.Close()
	assert.Equal(t, 1, p.Size())
}

package sync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Spec(t *testing.T) {
	assert.Equal(t, "@every 5m0s", NewScheduler(5*time.Minute, func() {}).Spec())
	assert.Equal(t, "@every 30s", NewScheduler(30*time.Second, func() {}).Spec())
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	assert.Error(t, NewScheduler(0, func() {}).Start())
	assert.Error(t, NewScheduler(-time.Second, func() {}).Start())
}

func TestScheduler_Fires(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(time.Second, func() { runs.Add(1) })

	assert.True(t, s.Next().IsZero())
	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	s.Stop()
	n := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, runs.Load())
}

package orchestrator

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedLockIsPerKey(t *testing.T) {
	l := NewKeyedLock()

	unlockA, ok := l.TryLock("a")
	require.True(t, ok)

	_, ok = l.TryLock("a")
	require.False(t, ok)

	unlockB, ok := l.TryLock("b")
	require.True(t, ok)
	unlockB()

	unlockA()
	unlockA()
	require.False(t, l.Held("a"))

	_, ok = l.TryLock("a")
	require.True(t, ok)
}

func TestKeyedLockSingleWinner(t *testing.T) {
	l := NewKeyedLock()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.TryLock("user"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

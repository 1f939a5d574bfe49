package utils

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	var tb tomb.Tomb
	pool := NewWorkerPool(4)

	var sum atomic.Int64
	pool.Setup(&tb, func(_ *tomb.Tomb, task any) error {
		sum.Add(int64(task.(int)))
		return nil
	})

	for i := 1; i <= 10; i++ {
		require.True(t, pool.AddTask(&tb, i))
	}
	require.Eventually(t, func() bool { return sum.Load() == 55 }, time.Second, time.Millisecond)

	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
}

func TestWorkerPool_ErrorKillsTomb(t *testing.T) {
	var tb tomb.Tomb
	pool := NewWorkerPool(2)
	boom := errors.New("boom")

	pool.Setup(&tb, func(_ *tomb.Tomb, task any) error {
		return boom
	})
	require.True(t, pool.AddTask(&tb, "task"))

	assert.ErrorIs(t, tb.Wait(), boom)
}

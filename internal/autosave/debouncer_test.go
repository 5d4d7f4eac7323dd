package autosave

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRestartsOnEdit(t *testing.T) {
	d := New(100*time.Millisecond, nil)
	defer d.Stop()

	var calls, last atomic.Int32
	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Schedule("note.md", func() {
			calls.Add(1)
			last.Store(n)
		})
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, d.Pending("note.md"))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "only the last schedule runs")
	assert.Equal(t, int32(5), last.Load())
	assert.False(t, d.Pending("note.md"))
}

func TestKeysAreIndependent(t *testing.T) {
	d := New(20*time.Millisecond, nil)
	defer d.Stop()

	var a, b atomic.Int32
	d.Schedule("a.md", func() { a.Add(1) })
	d.Schedule("b.md", func() { b.Add(1) })

	require.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCancel(t *testing.T) {
	d := New(20*time.Millisecond, nil)
	defer d.Stop()

	var calls atomic.Int32
	d.Schedule("x", func() { calls.Add(1) })
	assert.True(t, d.Cancel("x"))
	assert.False(t, d.Cancel("x"))

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestFlushRunsPending(t *testing.T) {
	d := New(time.Hour, nil)
	var calls atomic.Int32
	d.Schedule("x", func() { calls.Add(1) })
	d.Schedule("y", func() { calls.Add(1) })

	d.Flush()
	assert.Equal(t, int32(2), calls.Load())

	d.Schedule("z", func() { calls.Add(1) })
	assert.False(t, d.Pending("z"), "schedules after flush are ignored")
}

func TestStopDropsPending(t *testing.T) {
	d := New(10*time.Millisecond, nil)
	var calls atomic.Int32
	d.Schedule("x", func() { calls.Add(1) })
	d.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

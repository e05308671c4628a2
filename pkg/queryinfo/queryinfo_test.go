package queryinfo

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer(t *testing.T) {
	b := NewCircularBuffer[int](3)
	assert.True(t, b.Empty())
	assert.Equal(t, 3, b.Cap())

	for i := 1; i <= 3; i++ {
		assert.True(t, b.Add(i))
	}
	assert.True(t, b.Full())
	assert.False(t, b.Add(4), "add fails when full")
	assert.Equal(t, []int{1, 2, 3}, b.Items())

	v, ok := b.Remove()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, b.Add(4))
	assert.Equal(t, []int{2, 3, 4}, b.Items(), "wraps around")

	for range 3 {
		_, ok = b.Remove()
		assert.True(t, ok)
	}
	_, ok = b.Remove()
	assert.False(t, ok)
	assert.Zero(t, b.Len())
}

func TestCircularBuffer_MinimumCapacity(t *testing.T) {
	b := NewCircularBuffer[string](0)
	assert.Equal(t, 1, b.Cap())
}

func TestInfo_StageDurations(t *testing.T) {
	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }
	info := newInfoWithClock(uuid.New(), "scan", now)

	clock = clock.Add(2 * time.Millisecond)
	info.StartExecution()
	clock = clock.Add(10 * time.Millisecond)
	info.StartReporting()
	clock = clock.Add(3 * time.Millisecond)
	info.Finish()

	assert.Equal(t, StageFinished, info.Stage())
	assert.Equal(t, 2*time.Millisecond, info.WaitDuration)
	assert.Equal(t, 10*time.Millisecond, info.ExecutionDuration)
	assert.Equal(t, 3*time.Millisecond, info.ReportingDuration)
	assert.Equal(t, 15*time.Millisecond, info.Total())

	// Going backwards is ignored
	info.StartExecution()
	assert.Equal(t, StageFinished, info.Stage())
}

func TestInfo_SkippedStage(t *testing.T) {
	clock := time.Unix(0, 0)
	info := newInfoWithClock(uuid.New(), "q", func() time.Time { return clock })
	clock = clock.Add(time.Second)
	info.StartExecution()
	clock = clock.Add(time.Second)
	info.Finish()
	assert.Equal(t, time.Second, info.ExecutionDuration)
	assert.Zero(t, info.ReportingDuration)
}

func TestTracker_EvictsOldest(t *testing.T) {
	tr := NewTracker(2)
	for i := 0; i < 3; i++ {
		tr.Record(NewInfo(uuid.New(), fmt.Sprintf("q%d", i)))
	}
	recent := tr.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "q1", recent[0].Query)
	assert.Equal(t, "q2", recent[1].Query)
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(8)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(NewInfo(uuid.New(), "q"))
		}()
	}
	wg.Wait()
	assert.Len(t, tr.Recent(), 8)
}

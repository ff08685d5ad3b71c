package job

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLenientDefault(t *testing.T) {
	r := NewRegistry()

	snap, found := r.Get("no-such-job")
	assert.False(t, found)
	assert.Equal(t, StatePending, snap.State)
	assert.Zero(t, snap.Progress)
	assert.Zero(t, snap.ChunkProgress)
	assert.Zero(t, snap.TranscribeProgress)
	assert.Zero(t, snap.TranslateProgress)
	assert.Zero(t, snap.PostProgress)
	assert.True(t, snap.StartTime.IsZero())
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	j := r.Register("job-1")

	snap, found := r.Get("job-1")
	require.True(t, found)
	assert.Equal(t, "job-1", snap.ID)
	assert.Equal(t, StatePending, snap.State)
	assert.False(t, snap.StartTime.IsZero())
	assert.Equal(t, j.Snapshot(), snap)
	assert.Equal(t, 1, r.Len())
}

func TestJobLifecycle(t *testing.T) {
	r := NewRegistry()
	j := r.Register("job-1")

	j.Start()
	assert.Equal(t, StateStarted, j.Snapshot().State)

	j.EnterStage(StageChunking)
	snap := j.Snapshot()
	assert.Equal(t, StateInProgress, snap.State)
	assert.Equal(t, StageChunking, snap.Stage)

	j.SetStageProgress(StageChunking, 100)
	j.SetOverall(25)

	j.EnterStage(StageTranscribing)
	j.SetStageProgress(StageTranscribing, 100)
	j.SetOverall(50)

	j.EnterStage(StagePostprocessing)
	j.SetStageProgress(StagePostprocessing, 100)

	j.Succeed("text", "/outputs/file.srt")

	snap = j.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "text", snap.Output)
	assert.Equal(t, "/outputs/file.srt", snap.OutputFile)
	assert.Empty(t, snap.Error)
}

func TestStageNeverRegresses(t *testing.T) {
	r := NewRegistry()
	j := r.Register("job-1")
	j.Start()

	j.EnterStage(StageTranscribing)
	j.SetStageProgress(StageTranscribing, 40)

	// Going back to an earlier stage is ignored.
	j.EnterStage(StageChunking)
	snap := j.Snapshot()
	assert.Equal(t, StageTranscribing, snap.Stage)
	assert.Equal(t, 40, snap.TranscribeProgress)

	// So is lowering a counter.
	j.SetStageProgress(StageTranscribing, 10)
	assert.Equal(t, 40, j.Snapshot().TranscribeProgress)
}

func TestOverallProgressMonotonicAndCapped(t *testing.T) {
	r := NewRegistry()
	j := r.Register("job-1")
	j.Start()

	j.SetOverall(50)
	j.SetOverall(25)
	assert.Equal(t, 50, j.Snapshot().Progress)

	// 100 is reserved for the terminal transition.
	j.SetOverall(100)
	assert.Equal(t, 99, j.Snapshot().Progress)

	j.Succeed("out", "file")
	assert.Equal(t, 100, j.Snapshot().Progress)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	r := NewRegistry()

	succeeded := r.Register("done")
	succeeded.Start()
	succeeded.Succeed("out", "file")
	succeeded.Fail("late failure")
	succeeded.SetOverall(10)
	succeeded.EnterStage(StagePostprocessing)

	snap := succeeded.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "out", snap.Output)

	failed := r.Register("broken")
	failed.Start()
	failed.EnterStage(StageTranscribing)
	failed.SetStageProgress(StageTranscribing, 60)
	failed.Fail("recognizer exploded")
	failed.Succeed("out", "file")

	snap = failed.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "recognizer exploded", snap.Error)
	assert.Empty(t, snap.Output)
	// Partial progress is preserved for the caller to inspect.
	assert.Equal(t, 60, snap.TranscribeProgress)
}

// Many pollers may read while the owning goroutine writes; run with -race.
func TestConcurrentReadersSingleWriter(t *testing.T) {
	r := NewRegistry()
	j := r.Register("job-1")
	j.Start()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					snap, _ := r.Get("job-1")
					assert.LessOrEqual(t, snap.Progress, 100)
				}
			}
		}()
	}

	for pct := 0; pct <= 99; pct++ {
		j.SetOverall(pct)
		j.SetStageProgress(StageTranscribing, pct)
	}
	j.Succeed("out", "file")
	close(stop)
	wg.Wait()

	snap, _ := r.Get("job-1")
	assert.Equal(t, 100, snap.Progress)
}

// There is no admission control: the registry accepts arbitrarily many
// concurrent registrations, bounded only by host resources.
func TestUnboundedRegistration(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("job-%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
}

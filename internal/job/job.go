package job

import (
	"sync"
	"time"
)

// State is a job lifecycle state.
type State string

const (
	StatePending    State = "Pending"
	StateStarted    State = "Started"
	StateInProgress State = "InProgress"
	StateSucceeded  State = "Succeeded"
	StateFailed     State = "Failed"
)

// Terminal reports whether the state is final and immutable.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Stage is the pipeline phase currently executing.
type Stage string

const (
	StageChunking       Stage = "chunking"
	StageTranscribing   Stage = "transcribing"
	StageTranslating    Stage = "translating"
	StagePostprocessing Stage = "postprocessing"
)

func stageRank(s Stage) int {
	switch s {
	case StageChunking:
		return 1
	case StageTranscribing:
		return 2
	case StageTranslating:
		return 3
	case StagePostprocessing:
		return 4
	default:
		return 0
	}
}

// Snapshot is the immutable view of a job returned to polling clients.
type Snapshot struct {
	ID                 string    `json:"job_id,omitempty"`
	State              State     `json:"state"`
	Stage              Stage     `json:"stage,omitempty"`
	Progress           int       `json:"progress"`
	ChunkProgress      int       `json:"chunk_progress"`
	TranscribeProgress int       `json:"transcribe_progress"`
	TranslateProgress  int       `json:"translate_progress"`
	PostProgress       int       `json:"post_progress"`
	StartTime          time.Time `json:"start_time,omitzero"`
	Output             string    `json:"output,omitempty"`
	OutputFile         string    `json:"output_file,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// Job is a single registered pipeline run. All mutation goes through the
// typed methods below, which enforce the state machine: transitions are
// strictly forward, progress never regresses, and terminal states are
// immutable. One goroutine writes, any number snapshot concurrently.
type Job struct {
	mu   sync.Mutex
	snap Snapshot
}

func newJob(id string) *Job {
	return &Job{snap: Snapshot{
		ID:        id,
		State:     StatePending,
		StartTime: time.Now().UTC(),
	}}
}

// Snapshot returns a copy of the current job fields.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap
}

// ID returns the job identifier.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap.ID
}

// Start moves a Pending job to Started.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State == StatePending {
		j.snap.State = StateStarted
	}
}

// EnterStage advances to the named stage, resetting that stage's progress
// counter. Attempts to re-enter an earlier stage are ignored.
func (j *Job) EnterStage(stage Stage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State.Terminal() {
		return
	}
	if stageRank(stage) <= stageRank(j.snap.Stage) {
		return
	}

	j.snap.State = StateInProgress
	j.snap.Stage = stage
	switch stage {
	case StageChunking:
		j.snap.ChunkProgress = 0
	case StageTranscribing:
		j.snap.TranscribeProgress = 0
	case StageTranslating:
		j.snap.TranslateProgress = 0
	case StagePostprocessing:
		j.snap.PostProgress = 0
	}
}

// SetStageProgress raises the named stage's counter; values below the
// current counter or outside 0-100 are clamped.
func (j *Job) SetStageProgress(stage Stage, pct int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State.Terminal() {
		return
	}

	pct = clampPct(pct)
	switch stage {
	case StageChunking:
		j.snap.ChunkProgress = maxInt(j.snap.ChunkProgress, pct)
	case StageTranscribing:
		j.snap.TranscribeProgress = maxInt(j.snap.TranscribeProgress, pct)
	case StageTranslating:
		j.snap.TranslateProgress = maxInt(j.snap.TranslateProgress, pct)
	case StagePostprocessing:
		j.snap.PostProgress = maxInt(j.snap.PostProgress, pct)
	}
}

// SetOverall raises the overall progress percentage. 100 is reserved for
// the terminal transitions and is capped here.
func (j *Job) SetOverall(pct int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State.Terminal() {
		return
	}
	if pct > 99 {
		pct = 99
	}
	j.snap.Progress = maxInt(j.snap.Progress, clampPct(pct))
}

// Succeed moves the job to its successful terminal state with the final
// text and artifact location.
func (j *Job) Succeed(output, outputFile string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State.Terminal() {
		return
	}

	j.snap.State = StateSucceeded
	j.snap.Progress = 100
	j.snap.Output = output
	j.snap.OutputFile = outputFile
}

// Fail moves the job to its failed terminal state. Stage counters are left
// as they were so callers can see how far the job got.
func (j *Job) Fail(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap.State.Terminal() {
		return
	}

	j.snap.State = StateFailed
	j.snap.Progress = 100
	j.snap.Error = message
}

func clampPct(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

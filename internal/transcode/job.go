package transcode

import (
	"sync"
	"time"
)

// State is a job's lifecycle position.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Request describes a finished capture handed over by a recording session.
type Request struct {
	SessionID       string
	SourcePath      string
	DurationSeconds float64
	// RetryOf names the failed job this one re-runs, if any.
	RetryOf string
}

// Snapshot is a consistent copy of a job's observable fields.
type Snapshot struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id,omitempty"`
	SourcePath      string    `json:"source_path"`
	DestPath        string    `json:"dest_path"`
	DurationSeconds float64   `json:"duration_seconds"`
	TotalFrames     int64     `json:"total_frames"`
	CurrentFrame    int64     `json:"current_frame"`
	FPS             float64   `json:"fps"`
	Progress        int       `json:"progress"`
	State           State     `json:"state"`
	CancelRequested bool      `json:"cancel_requested"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
}

// Job is one post-processing run. Fields are guarded by mu because the
// worker writes them while the presentation layer reads snapshots.
type Job struct {
	id   string
	req  Request
	dest string

	mu           sync.Mutex
	totalFrames  int64
	currentFrame int64
	fps          float64
	progress     int
	state        State
	cancelled    bool
	err          error
	startedAt    time.Time
	finishedAt   time.Time

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

func newJob(id string, req Request, dest string) *Job {
	return &Job{
		id:        id,
		req:       req,
		dest:      dest,
		state:     StateRunning,
		startedAt: time.Now(),
		cancelCh:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the terminal error, nil for a successful or running job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Snapshot returns the job's current observable state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := Snapshot{
		ID:              j.id,
		SessionID:       j.req.SessionID,
		SourcePath:      j.req.SourcePath,
		DestPath:        j.dest,
		DurationSeconds: j.req.DurationSeconds,
		TotalFrames:     j.totalFrames,
		CurrentFrame:    j.currentFrame,
		FPS:             j.fps,
		Progress:        j.progress,
		State:           j.state,
		CancelRequested: j.cancelled,
		StartedAt:       j.startedAt,
		FinishedAt:      j.finishedAt,
	}
	if j.err != nil {
		snap.Error = j.err.Error()
	}
	return snap
}

// Running reports whether the job has not reached a terminal state.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == StateRunning
}

// Cancel asks the worker to stop polling. It is safe to call repeatedly.
func (j *Job) Cancel() {
	j.cancelOnce.Do(func() {
		j.mu.Lock()
		j.cancelled = true
		j.mu.Unlock()
		close(j.cancelCh)
	})
}

func (j *Job) setProbe(totalFrames int64, fps float64) {
	j.mu.Lock()
	j.totalFrames = totalFrames
	j.fps = fps
	j.mu.Unlock()
}

// observeFrame records a progress reading and returns the resulting percent.
// Percent never decreases and stays below 100 while running.
func (j *Job) observeFrame(frame int64) (int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if frame > j.currentFrame {
		j.currentFrame = frame
	}
	p, known := Percent(j.currentFrame, j.totalFrames)
	if !known {
		return j.progress, false
	}
	if p > j.progress {
		j.progress = p
	}
	return j.progress, true
}

func (j *Job) succeed() {
	j.mu.Lock()
	j.state = StateSucceeded
	j.progress = 100
	j.finishedAt = time.Now()
	j.mu.Unlock()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	j.state = StateFailed
	j.err = err
	j.finishedAt = time.Now()
	j.mu.Unlock()
}

package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/internal/sync_"
)

type TaskID string

func NewTaskID() TaskID {
	return TaskID(generic.Unwrap(uuid.NewRandom()).String())
}

type TaskStatus string

const (
	TaskStatusQueued      TaskStatus = "queued"
	TaskStatusResolving   TaskStatus = "resolving"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusComplete    TaskStatus = "complete"
	TaskStatusFailed      TaskStatus = "failed"
)

// TaskState is the mutable part of a task, readable as a consistent
// snapshot via Task.State.
type TaskState struct {
	Status   TaskStatus
	Progress int
	// Reference is set once resolution succeeds.
	Reference red_media_browser.MediaReference
	// Path is the final cache path once the task completes.
	Path string
	Err  error
}

// A Task is one submission's trip through the pipeline: resolve, cache
// check, download, metadata write. Identity fields are fixed at Submit
// time; only the session's worker mutates the state.
type Task struct {
	ID         TaskID
	Submission red_media_browser.Submission
	AddedAt    time.Time

	state *sync_.Mutexed[*TaskState]
}

func newTask(sub red_media_browser.Submission) *Task {
	return &Task{
		ID:         NewTaskID(),
		Submission: sub,
		AddedAt:    time.Now(),
		state:      sync_.NewMutexed(&TaskState{Status: TaskStatusQueued}),
	}
}

// State returns a snapshot of the task's mutable state.
func (t *Task) State() (state TaskState) {
	_ = t.state.Locked(func(s *TaskState) error {
		state = *s
		return nil
	})
	return state
}

// IsComplete reports whether the task finished with a file on disk.
func (t *Task) IsComplete() bool {
	return t.State().Status == TaskStatusComplete
}

func (t *Task) String() string {
	return fmt.Sprintf("Task{ID:%q, URL:%q, Status:%q}", t.ID, t.Submission.URL(), t.State().Status)
}

func (t *Task) log() *zap.SugaredLogger {
	return zap.S().Named("session").With("task_id", t.ID)
}

func (t *Task) update(f func(*TaskState)) {
	_ = t.state.Locked(func(s *TaskState) error {
		f(s)
		return nil
	})
}

func (t *Task) setStatus(status TaskStatus) {
	t.update(func(s *TaskState) { s.Status = status })
}

func (t *Task) setReference(ref red_media_browser.MediaReference) {
	t.update(func(s *TaskState) { s.Reference = ref })
}

func (t *Task) setProgress(percent int) {
	t.update(func(s *TaskState) { s.Progress = percent })
}

func (t *Task) complete(path string) {
	t.update(func(s *TaskState) {
		s.Status = TaskStatusComplete
		s.Progress = 100
		s.Path = path
	})
}

func (t *Task) fail(err error) {
	t.update(func(s *TaskState) {
		s.Status = TaskStatusFailed
		s.Err = err
	})
}

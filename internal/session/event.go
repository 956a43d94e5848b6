package session

type Event interface {
	// The Task this event relates to.
	Task() *Task
}

type taskEvent struct {
	task *Task
}

func (e taskEvent) Task() *Task {
	return e.task
}

// TaskQueued is sent when Submit accepts a submission, before any work
// starts.
type TaskQueued struct {
	taskEvent
}

// TaskProgress reports download progress. Within one task, Percent is
// strictly increasing; a task whose response length is unknown sends none.
type TaskProgress struct {
	taskEvent
	Percent int
}

// TaskCompleted is sent once the media is on disk, with the final cache
// path (extension corrections included).
type TaskCompleted struct {
	taskEvent
	Path string
}

// TaskFailed is sent instead of TaskCompleted when the task could not
// produce a file.
type TaskFailed struct {
	taskEvent
	Err error
}

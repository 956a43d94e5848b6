// Package session runs submissions through the resolution and download
// pipeline on a bounded worker pool, publishing task lifecycle events for
// whoever cares to subscribe.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
	"github.com/radialmonster/red-media-browser-sub000/internal/metadata"
	"github.com/radialmonster/red-media-browser-sub000/internal/pubsub"
	"github.com/radialmonster/red-media-browser-sub000/internal/sync_"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrNoSubmissionURL = errors.New("submission has no URL")
)

type Config struct {
	// CacheRoot is the directory downloaded media and metadata live under.
	CacheRoot string
	// MaxConcurrent bounds how many tasks run at once; zero or negative
	// falls back to DefaultConfig.MaxConcurrent.
	MaxConcurrent int64
	// Pipeline turns submission URLs into fetchable media URLs. When nil,
	// one is built over the default handler registry; callers wanting the
	// provider hooks wired up pass handlers.NewDefaultPipeline instead.
	Pipeline *red_media_browser.Pipeline
	// Executor streams resolved URLs into the cache. When nil, one is
	// built over Client.
	Executor *red_media_browser.Executor
	// Store persists submission metadata under CacheRoot. When nil, one
	// is built.
	Store *metadata.Store
	// Client is the HTTP client used for components built by New.
	Client *fetch.Client
}

var DefaultConfig = Config{
	CacheRoot:     ".",
	MaxConcurrent: 4,
}

type tasksByID = map[TaskID]*Task

type Session struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	pipeline *red_media_browser.Pipeline
	executor *red_media_browser.Executor
	store    *metadata.Store

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	tasks  *sync_.RWMutexed[tasksByID]
	events pubsub.Publisher[Event]
}

func New(config Config, ctx context.Context) (*Session, error) {
	if config.CacheRoot == "" {
		config.CacheRoot = DefaultConfig.CacheRoot
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig.MaxConcurrent
	}
	client := config.Client
	if client == nil {
		client = fetch.NewClient()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("session"),

		pipeline: config.Pipeline,
		executor: config.Executor,
		store:    config.Store,

		sem:   semaphore.NewWeighted(config.MaxConcurrent),
		tasks: sync_.NewRWMutexed(make(tasksByID)),
	}
	if s.pipeline == nil {
		s.pipeline = red_media_browser.NewPipeline(&red_media_browser.DefaultRegistry, config.CacheRoot)
	}
	if s.executor == nil {
		s.executor = red_media_browser.NewExecutor(config.CacheRoot, client)
	}
	if s.store == nil {
		s.store = metadata.NewStore(config.CacheRoot)
	}
	s.events = pubsub.NewPublisher[Event]()
	return s, nil
}

// Submit queues a submission for download and returns its task. The work
// happens on the session's worker pool; watch Subscribe for the outcome.
func (s *Session) Submit(sub red_media_browser.Submission) (*Task, error) {
	if sub == nil || sub.URL() == "" {
		return nil, ErrNoSubmissionURL
	}
	t := newTask(sub)
	if err := s.insertTask(t); err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go s.runTask(t)
	return t, nil
}

func (s *Session) insertTask(t *Task) error {
	err := s.tasks.Locked(func(tasks tasksByID) error {
		if tasks == nil {
			return ErrSessionClosed
		}
		if _, ok := tasks[t.ID]; ok {
			return errors.New("duplicate task ID")
		}
		tasks[t.ID] = t
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debugw("task queued", "task_id", t.ID, "url", t.Submission.URL())
	s.events.Send(TaskQueued{taskEvent{t}})
	return nil
}

func (s *Session) runTask(t *Task) {
	defer s.wg.Done()
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		t.fail(err)
		s.events.Send(TaskFailed{taskEvent{t}, err})
		return
	}
	defer s.sem.Release(1)

	path, err := s.process(t)
	if err != nil {
		t.fail(err)
		t.log().Debugw("task failed", "url", t.Submission.URL(), "error", err)
		s.events.Send(TaskFailed{taskEvent{t}, err})
		return
	}
	t.complete(path)
	t.log().Debugw("task complete", "path", path)
	s.events.Send(TaskCompleted{taskEvent{t}, path})
}

func (s *Session) process(t *Task) (string, error) {
	t.setStatus(TaskStatusResolving)
	ref, err := s.pipeline.ResolveReference(s.ctx, t.Submission.URL())
	if err != nil {
		return "", err
	}
	t.setReference(ref)

	if s.pipeline.Cached(ref) {
		t.log().Debugw("already cached", "path", ref.CachePath)
		s.writeMetadata(t, ref.CachePath, ref.Resolved)
		return ref.CachePath, nil
	}

	t.setStatus(TaskStatusDownloading)
	path, err := s.executor.Download(s.ctx, ref.Resolved, func(percent int) {
		t.setProgress(percent)
		s.events.Send(TaskProgress{taskEvent{t}, percent})
	})
	if err != nil {
		return "", err
	}
	s.writeMetadata(t, path, ref.Resolved)
	return path, nil
}

// writeMetadata records the download. A write failure is logged rather than
// failing the task: the media is already on disk.
func (s *Session) writeMetadata(t *Task, cachePath string, mediaURL string) {
	if err := s.store.Update(t.Submission, cachePath, mediaURL); err != nil {
		t.log().Warnw("failed to write metadata", "path", cachePath, "error", err)
	}
}

func (s *Session) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.Subscribe()
}

// Store exposes the session's metadata store, e.g. for repair runs.
func (s *Session) Store() *metadata.Store {
	return s.store
}

func (s *Session) ListTasks() []*Task {
	var list []*Task
	_ = s.tasks.RLocked(func(tasks tasksByID) error {
		list = make([]*Task, 0, len(tasks))
		for _, t := range tasks {
			list = append(list, t)
		}
		return nil
	})
	return list
}

func (s *Session) GetTask(id TaskID) (t *Task) {
	_ = s.tasks.RLocked(func(tasks tasksByID) error {
		t = tasks[id]
		return nil
	})
	return t
}

// Close aborts in-flight tasks, waits for their goroutines to finish, then
// flushes and closes the event stream. Submit fails afterwards.
func (s *Session) Close() {
	s.ctxCancel()
	s.tasks.Swap(nil)
	s.wg.Wait()
	s.events.Close()
}

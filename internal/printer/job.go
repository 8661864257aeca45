package printer

import (
	"context"
	"sync"
	"sync/atomic"
)

// defaultTaskLimit is how many recent tasks are fetched when resolving a job.
const defaultTaskLimit = 10

// ImageFuture is a shared, at-most-once cover image download.
// Every waiter observes the same bytes or the same error.
type ImageFuture struct {
	done chan struct{}
	data []byte
	err  error
}

// startImageFetch starts fetch in the background and returns its future.
func startImageFetch(fetch func() ([]byte, error)) *ImageFuture {
	f := &ImageFuture{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.data, f.err = fetch()
	}()
	return f
}

// Wait blocks until the download settles or ctx is done.
func (f *ImageFuture) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the download has settled.
func (f *ImageFuture) Done() <-chan struct{} {
	return f.done
}

// Job is the record of one print job seen on the report feed.
//
// A Job is never mutated after it is superseded; the correlator simply
// replaces it. Resolution runs in the background and fills in task metadata.
type Job struct {
	id       string
	resolved chan struct{}

	mu    sync.RWMutex
	task  *Task
	cover *ImageFuture
}

func newJob(id string) *Job {
	return &Job{id: id, resolved: make(chan struct{})}
}

// ID returns the job identifier as reported by the printer.
func (j *Job) ID() string {
	return j.id
}

// Resolved is closed once the task lookup has finished, whether or not a
// matching task was found.
func (j *Job) Resolved() <-chan struct{} {
	return j.resolved
}

// Task returns the matched cloud task, if resolution found one.
func (j *Job) Task() (Task, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.task == nil {
		return Task{}, false
	}
	return *j.task, true
}

// Name returns the task's display name, or "" while unresolved.
func (j *Job) Name() string {
	task, ok := j.Task()
	if !ok {
		return ""
	}
	return task.Name
}

// Cover returns the cover image future, or nil if the job has none.
func (j *Job) Cover() *ImageFuture {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cover
}

// JobCorrelator tracks the active job identifier and resolves metadata for
// each new job without blocking the message pipeline.
type JobCorrelator struct {
	deviceID string
	tasks    TaskSource
	limit    int
	logger   Logger

	// lastID is only touched from the serialised pipeline.
	lastID string

	current atomic.Pointer[Job]
	wg      sync.WaitGroup
}

// NewJobCorrelator creates a correlator resolving jobs through tasks.
// A limit <= 0 uses the default of 10 tasks.
func NewJobCorrelator(deviceID string, tasks TaskSource, limit int, logger Logger) *JobCorrelator {
	if limit <= 0 {
		limit = defaultTaskLimit
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &JobCorrelator{
		deviceID: deviceID,
		tasks:    tasks,
		limit:    limit,
		logger:   logger,
	}
}

// Observe checks the snapshot's job identifier and starts a background
// resolution when it differs from the last one seen.
func (c *JobCorrelator) Observe(ctx context.Context, snapshot Snapshot) {
	// A numeric zero job_id means no job is loaded.
	if n, ok := snapshot.Number(sectionPrint, fieldJobID); ok && n == 0 {
		return
	}
	id, ok := snapshot.Identifier(sectionPrint, fieldJobID)
	if !ok || id == c.lastID {
		return
	}
	previous := c.lastID
	c.lastID = id

	job := newJob(id)
	c.current.Store(job)
	c.logger.Info("print job changed", "device_id", c.deviceID, "job_id", id, "previous_job_id", previous)

	if c.tasks == nil {
		close(job.resolved)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resolve(ctx, job)
	}()
}

// Current returns the most recent job, or nil before any job was seen.
func (c *JobCorrelator) Current() *Job {
	return c.current.Load()
}

// Wait blocks until all in-flight task lookups have returned.
func (c *JobCorrelator) Wait() {
	c.wg.Wait()
}

// resolve looks the job up in the task list and, when the task carries a
// cover reference, starts the cover download as the job's ImageFuture.
func (c *JobCorrelator) resolve(ctx context.Context, job *Job) {
	defer close(job.resolved)

	tasks, err := c.tasks.GetTasks(ctx, c.deviceID, c.limit)
	if err != nil {
		c.logger.Error("fetching task list failed", "device_id", c.deviceID, "job_id", job.id, "error", err)
		return
	}

	var match *Task
	for i := range tasks {
		if tasks[i].ID == job.id {
			match = &tasks[i]
			break
		}
	}
	if match == nil {
		c.logger.Debug("no task found for job", "device_id", c.deviceID, "job_id", job.id, "tasks", len(tasks))
		return
	}

	task := *match
	var cover *ImageFuture
	if task.Cover != "" {
		cover = startImageFetch(func() ([]byte, error) {
			data, err := c.tasks.FetchBinary(ctx, task.Cover)
			if err != nil {
				c.logger.Error("downloading cover failed", "device_id", c.deviceID, "job_id", job.id, "error", err)
			}
			return data, err
		})
	}

	job.mu.Lock()
	job.task = &task
	job.cover = cover
	job.mu.Unlock()

	c.logger.Info("print job resolved", "device_id", c.deviceID, "job_id", job.id, "name", task.Name)
}

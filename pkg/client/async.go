package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownJob is returned when polling a job id that was never submitted or already collected
var ErrUnknownJob = errors.New("unknown job id")

// DefaultJobTimeout bounds a single background query
const DefaultJobTimeout = 5 * time.Minute

type job struct {
	done   bool
	output string
	err    error
	cancel context.CancelFunc
}

// Async turns a synchronous VisionClient into a Detector. Each Submit runs the
// query in its own goroutine; terminal results are dropped after the first
// poll that observes them.
type Async struct {
	client  VisionClient
	prompt  string
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]*job
}

// NewAsync wraps client so that every submitted image is queried with prompt
func NewAsync(client VisionClient, prompt string) *Async {
	return &Async{
		client:  client,
		prompt:  prompt,
		timeout: DefaultJobTimeout,
		jobs:    make(map[string]*job),
	}
}

// WithTimeout overrides the per-job timeout
func (a *Async) WithTimeout(d time.Duration) *Async {
	if d > 0 {
		a.timeout = d
	}
	return a
}

// Submit starts a background query and returns its job id
func (a *Async) Submit(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	id := uuid.NewString()

	// the job outlives the submitting call, so it gets its own deadline
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	j := &job{cancel: cancel}

	a.mu.Lock()
	a.jobs[id] = j
	a.mu.Unlock()

	go func() {
		defer cancel()
		out, err := a.client.Query(jobCtx, a.prompt, image)

		a.mu.Lock()
		j.done = true
		j.output = out
		j.err = err
		a.mu.Unlock()
	}()

	return id, nil
}

// Poll reports the state of a job
func (a *Async) Poll(ctx context.Context, jobID string) (PollResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	j, ok := a.jobs[jobID]
	if !ok {
		return PollResult{}, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	if !j.done {
		return PollResult{Status: StatusPending}, nil
	}

	delete(a.jobs, jobID)
	if j.err != nil {
		return PollResult{Status: StatusFailed, Cause: j.err.Error()}, nil
	}
	return PollResult{Status: StatusSucceeded, Output: []byte(j.output)}, nil
}

// Cancel abandons a job, if it is still known
func (a *Async) Cancel(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if j, ok := a.jobs[jobID]; ok {
		j.cancel()
		delete(a.jobs, jobID)
	}
}

// Pending returns the number of jobs not yet collected
func (a *Async) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.jobs)
}

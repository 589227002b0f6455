// Package redisqueue is an asynchronous detector backed by a Redis list. The
// server side submits and polls; a Worker pops jobs and runs a vision client.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/menta2k/autorig/pkg/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultQueue     = "autorig:jobs"
	DefaultResultTTL = 10 * time.Minute
)

// Config holds the connection and queue settings
type Config struct {
	Addr      string
	Password  string
	DB        int
	Queue     string
	ResultTTL time.Duration
}

// Dial opens a Redis client for cfg
func Dial(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Job is the envelope pushed onto the queue
type Job struct {
	ID          string    `json:"id"`
	Image       []byte    `json:"image"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Result is the envelope stored under a job's result key
type Result struct {
	Status client.JobStatus `json:"status"`
	Output string           `json:"output,omitempty"`
	Cause  string           `json:"cause,omitempty"`
}

// Queue implements client.Detector over Redis
type Queue struct {
	rdb    redis.Cmdable
	name   string
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Queue
type Option func(*Queue)

func WithQueueName(name string) Option {
	return func(q *Queue) {
		if name != "" {
			q.name = name
		}
	}
}

func WithResultTTL(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.ttl = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New wraps a Redis client
func New(rdb redis.Cmdable, opts ...Option) *Queue {
	q := &Queue{
		rdb:    rdb,
		name:   DefaultQueue,
		ttl:    DefaultResultTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the list key jobs are pushed to
func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) resultKey(id string) string {
	return q.name + ":result:" + id
}

// Submit stores a pending result and enqueues the job
func (q *Queue) Submit(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	job := Job{ID: uuid.NewString(), Image: image, SubmittedAt: time.Now().UTC()}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.store(ctx, job.ID, Result{Status: client.StatusPending}); err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	q.logger.Debug("job enqueued", zap.String("job_id", job.ID), zap.Int("bytes", len(image)))
	return job.ID, nil
}

// Poll reads the job's result key
func (q *Queue) Poll(ctx context.Context, jobID string) (client.PollResult, error) {
	data, err := q.rdb.Get(ctx, q.resultKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return client.PollResult{}, fmt.Errorf("%w: %s", client.ErrUnknownJob, jobID)
		}
		return client.PollResult{}, fmt.Errorf("failed to read result: %w", err)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return client.PollResult{}, fmt.Errorf("failed to decode result: %w", err)
	}
	switch res.Status {
	case client.StatusSucceeded:
		return client.PollResult{Status: client.StatusSucceeded, Output: []byte(res.Output)}, nil
	case client.StatusFailed:
		return client.PollResult{Status: client.StatusFailed, Cause: res.Cause}, nil
	}
	return client.PollResult{Status: client.StatusPending}, nil
}

func (q *Queue) store(ctx context.Context, id string, res Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := q.rdb.Set(ctx, q.resultKey(id), data, q.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

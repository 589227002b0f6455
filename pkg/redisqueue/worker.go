package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/menta2k/autorig/pkg/client"
)

const (
	DefaultBlockTimeout = 5 * time.Second
	DefaultJobTimeout   = 5 * time.Minute
)

// Worker pops jobs and answers them with a synchronous vision client
type Worker struct {
	queue        *Queue
	vision       client.VisionClient
	prompt       string
	blockTimeout time.Duration
	jobTimeout   time.Duration
	logger       *zap.Logger
}

// NewWorker creates a worker for queue. The queue's logger is reused.
func NewWorker(queue *Queue, vision client.VisionClient, prompt string) *Worker {
	return &Worker{
		queue:        queue,
		vision:       vision,
		prompt:       prompt,
		blockTimeout: DefaultBlockTimeout,
		jobTimeout:   DefaultJobTimeout,
		logger:       queue.logger,
	}
}

// WithJobTimeout bounds a single vision query
func (w *Worker) WithJobTimeout(d time.Duration) *Worker {
	if d > 0 {
		w.jobTimeout = d
	}
	return w
}

// Run processes jobs until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", zap.String("queue", w.queue.name))
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		vals, err := w.queue.rdb.BRPop(ctx, w.blockTimeout, w.queue.name).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.logger.Warn("failed to pop job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPOP returns key, value
		if len(vals) != 2 {
			continue
		}
		if err := w.Process(ctx, []byte(vals[1])); err != nil {
			w.logger.Error("job failed", zap.Error(err))
		}
	}
}

// Process runs one job envelope and stores its result
func (w *Worker) Process(ctx context.Context, payload []byte) error {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("failed to decode job: %w", err)
	}
	if job.ID == "" {
		return fmt.Errorf("job without id")
	}

	start := time.Now()
	qctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	out, err := w.vision.Query(qctx, w.prompt, job.Image)
	cancel()

	res := Result{Status: client.StatusSucceeded, Output: out}
	if err != nil {
		res = Result{Status: client.StatusFailed, Cause: err.Error()}
	}
	w.logger.Info("job processed",
		zap.String("job_id", job.ID),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", time.Since(start)),
		zap.Duration("queued", start.Sub(job.SubmittedAt)))

	// the result must land even when ctx was cancelled mid-query
	return w.queue.store(context.WithoutCancel(ctx), job.ID, res)
}

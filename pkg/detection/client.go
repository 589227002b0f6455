package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/autorig/pkg/client"
	"github.com/menta2k/autorig/pkg/types"
)

// Poll loop defaults
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 30
)

// Detector produces a DetectionResult for one image
type Detector interface {
	Detect(ctx context.Context, image []byte) (*types.DetectionResult, error)
}

// Source is a detection step that may use image properties to substitute
// values for the parts it could not detect
type Source interface {
	Detect(ctx context.Context, image []byte, props types.ImageProperties) (*types.DetectionResult, error)
}

// Client drives a client.Detector through submit and a bounded poll loop
type Client struct {
	detector    client.Detector
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithPollInterval sets the wait between polls
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithMaxAttempts sets how many polls are made before giving up
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a detection client over a provider
func NewClient(detector client.Detector, opts ...Option) *Client {
	c := &Client{
		detector:    detector,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxWait is the upper bound on time spent polling
func (c *Client) MaxWait() time.Duration {
	return time.Duration(c.maxAttempts) * c.interval
}

// Detect submits the image and polls until the job succeeds, fails, or the
// attempt budget runs out. Every failure is a *DetectionError.
func (c *Client) Detect(ctx context.Context, image []byte) (*types.DetectionResult, error) {
	jobID, err := c.detector.Submit(ctx, image)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutError(ctx.Err())
		}
		return nil, upstreamError("", fmt.Errorf("submit: %w", err))
	}
	log := c.logger.With(zap.String("job_id", jobID))
	log.Debug("detection job submitted", zap.Int("bytes", len(image)))

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, timeoutError(ctx.Err())
		case <-timer.C:
		}

		res, err := c.detector.Poll(ctx, jobID)
		switch {
		case errors.Is(err, client.ErrUnknownJob):
			return nil, upstreamError("", err)
		case err != nil:
			if ctx.Err() != nil {
				return nil, timeoutError(ctx.Err())
			}
			log.Warn("detection poll failed", zap.Int("attempt", attempt), zap.Error(err))
		case res.Status == client.StatusSucceeded:
			result, err := Normalize(res.Output)
			if err != nil {
				log.Warn("detection payload rejected", zap.Error(err))
				return nil, err
			}
			log.Debug("detection job succeeded", zap.Int("attempt", attempt))
			return result, nil
		case res.Status == client.StatusFailed:
			return nil, upstreamError(res.Cause, nil)
		}

		timer.Reset(c.interval)
	}

	return nil, timeoutError(fmt.Errorf("no result after %d attempts", c.maxAttempts))
}

// FromDetector adapts a Detector to a Source that ignores image properties
func FromDetector(d Detector) Source {
	return detectorSource{d}
}

type detectorSource struct {
	d Detector
}

func (s detectorSource) Detect(ctx context.Context, image []byte, _ types.ImageProperties) (*types.DetectionResult, error) {
	return s.d.Detect(ctx, image)
}

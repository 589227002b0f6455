// Package provider turns detector configuration into a detection source.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/autorig/internal/config"
	"github.com/menta2k/autorig/pkg/client"
	"github.com/menta2k/autorig/pkg/detection"
	"github.com/menta2k/autorig/pkg/gemini"
	"github.com/menta2k/autorig/pkg/llamacpp"
	"github.com/menta2k/autorig/pkg/ollama"
	"github.com/menta2k/autorig/pkg/redisqueue"
	"github.com/menta2k/autorig/pkg/replicate"
	"github.com/menta2k/autorig/pkg/types"
)

var ErrUnsupportedEnsemble = errors.New("ensemble is not supported by the redis provider")

// Cleanup releases provider resources
type Cleanup func()

func noop() {}

// NewVisionClient builds a synchronous backend for the LLM providers
func NewVisionClient(ctx context.Context, d config.DetectorConfig) (client.VisionClient, Cleanup, error) {
	switch d.Provider {
	case "ollama":
		c, err := ollama.NewClient(d.URL, d.Model, nil)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return c, noop, nil
	case "llamacpp":
		return llamacpp.NewClient(d.URL, d.Model, nil), noop, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, d.APIKey, d.Model)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return c, func() { _ = c.Close() }, nil
	}
	return nil, noop, fmt.Errorf("provider %q has no vision client", d.Provider)
}

// newDetector builds the asynchronous detector for one prompt
func newDetector(cfg *config.Config, vision client.VisionClient, prompt string, logger *zap.Logger) (client.Detector, Cleanup, error) {
	d := cfg.Detector
	switch d.Provider {
	case "replicate":
		c, err := replicate.NewClient(d.APIKey, d.Version, replicate.WithBaseURL(d.URL), replicate.WithPrompt(prompt))
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case "redis":
		rdb := redisqueue.Dial(redisqueue.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		q := redisqueue.New(rdb,
			redisqueue.WithQueueName(cfg.Redis.Queue),
			redisqueue.WithResultTTL(cfg.Redis.ResultTTL),
			redisqueue.WithLogger(logger))
		return q, func() { _ = rdb.Close() }, nil
	}
	return client.NewAsync(vision, prompt).WithTimeout(d.PollInterval * time.Duration(d.MaxAttempts)), noop, nil
}

// NewSource builds the live detection source for cfg. It returns nil when the
// provider is "none", so every request uses the fallback.
func NewSource(ctx context.Context, cfg *config.Config, sub detection.Substituter, logger *zap.Logger) (detection.Source, Cleanup, error) {
	d := cfg.Detector
	if d.Provider == "none" || d.Provider == "" {
		return nil, noop, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var vision client.VisionClient
	cleanups := []Cleanup{}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	switch d.Provider {
	case "ollama", "llamacpp", "gemini":
		v, c, err := NewVisionClient(ctx, d)
		if err != nil {
			return nil, noop, err
		}
		vision = v
		cleanups = append(cleanups, c)
	}

	build := func(prompt string) (*detection.Client, error) {
		det, c, err := newDetector(cfg, vision, prompt, logger)
		if err != nil {
			return nil, err
		}
		cleanups = append(cleanups, c)
		return detection.NewClient(det,
			detection.WithPollInterval(d.PollInterval),
			detection.WithMaxAttempts(d.MaxAttempts),
			detection.WithLogger(logger.With(zap.String("provider", d.Provider)))), nil
	}

	if !d.Ensemble {
		c, err := build(detection.DefaultPrompt)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		return detection.FromDetector(c), cleanup, nil
	}

	if d.Provider == "redis" {
		cleanup()
		return nil, noop, ErrUnsupportedEnsemble
	}
	var aspects [3]detection.Detector
	for i, aspect := range []types.Aspect{types.AspectFace, types.AspectObject, types.AspectStyle} {
		c, err := build(detection.PromptFor(aspect))
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		aspects[i] = c
	}
	return detection.NewEnsemble(aspects[0], aspects[1], aspects[2], sub, logger), cleanup, nil
}

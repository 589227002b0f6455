package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/menta2k/autorig"
	"github.com/menta2k/autorig/internal/config"
	"github.com/menta2k/autorig/pkg/analyzer"
	"github.com/menta2k/autorig/pkg/fallback"
	"github.com/menta2k/autorig/pkg/segmentation"
	"github.com/menta2k/autorig/pkg/vision"
)

// NewEngine builds the pipeline from cfg: thresholds, fallback, detection
// source and the optional server-side signal extractor. Both the server and
// the CLI go through here so one config gives one result.
func NewEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*autorig.Engine, Cleanup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := cfg.Thresholds
	fb := fallback.New(fallback.WithSmallBytes(t.SmallBytes))

	source, cleanup, err := NewSource(ctx, cfg, fb, logger)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to configure detector: %w", err)
	}
	if source == nil {
		logger.Warn("no detector configured, every request uses the fallback strategy")
	}

	ac := analyzer.DefaultConfig()
	ac.SmallBytes, ac.LargeBytes, ac.DetailedBytes = t.SmallBytes, t.LargeBytes, t.DetailedBytes

	opts := []autorig.Option{
		autorig.WithSource(source),
		autorig.WithAnalyzer(analyzer.NewWithConfig(ac)),
		autorig.WithSegmenter(segmentation.New(segmentation.WithDetailedBytes(t.DetailedBytes))),
		autorig.WithFallback(fb),
		autorig.WithTransportSize(cfg.Detector.TransportSize),
		autorig.WithLogger(logger),
	}
	if cfg.Vision.ServerAnalysis {
		opts = append(opts, autorig.WithSignalExtractor(vision.New()))
	}
	return autorig.New(opts...), cleanup, nil
}

package detection

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/autorig/pkg/types"
)

// Substituter supplies the stand-in value for an aspect whose detector failed
type Substituter interface {
	SubstituteAspect(aspect types.Aspect, props types.ImageProperties) types.DetectionResult
}

type aspectDetector struct {
	aspect   types.Aspect
	detector Detector
}

// Ensemble runs independent face, object and style detectors concurrently and
// merges their results. A failed aspect is replaced by its substitute value.
type Ensemble struct {
	aspects    []aspectDetector
	substitute Substituter
	logger     *zap.Logger
}

// NewEnsemble creates an ensemble. A nil detector means that aspect is always substituted.
func NewEnsemble(face, object, style Detector, substitute Substituter, logger *zap.Logger) *Ensemble {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ensemble{
		aspects: []aspectDetector{
			{types.AspectFace, face},
			{types.AspectObject, object},
			{types.AspectStyle, style},
		},
		substitute: substitute,
		logger:     logger,
	}
}

// Detect implements Source
func (e *Ensemble) Detect(ctx context.Context, image []byte, props types.ImageProperties) (*types.DetectionResult, error) {
	results := make([]*types.DetectionResult, len(e.aspects))
	errs := make([]error, len(e.aspects))

	var g errgroup.Group
	for i, a := range e.aspects {
		if a.detector == nil {
			errs[i] = errAspectDisabled
			continue
		}
		g.Go(func() error {
			results[i], errs[i] = a.detector.Detect(ctx, image)
			// failures are substituted below, never abort the siblings
			return nil
		})
	}
	_ = g.Wait()

	merged := types.DetectionResult{Objects: map[types.Category][]types.ObjectDetection{}}
	live := 0
	confidence := 0.0
	for i, a := range e.aspects {
		part := results[i]
		if errs[i] != nil || part == nil {
			if !errors.Is(errs[i], errAspectDisabled) {
				e.logger.Warn("detector aspect failed, substituting",
					zap.String("aspect", string(a.aspect)), zap.Error(errs[i]))
			}
			sub := e.substitute.SubstituteAspect(a.aspect, props)
			part = &sub
			merged.FallbackAspects = append(merged.FallbackAspects, string(a.aspect))
		} else {
			live++
			confidence += part.SourceConfidence
		}
		mergeAspect(&merged, a.aspect, part)
	}

	if live == 0 {
		return nil, upstreamError("all detector aspects failed", errors.Join(errs...))
	}

	merged.UsedLiveDetection = true
	merged.SourceConfidence = confidence / float64(live)
	merged.Sanitize()
	return &merged, nil
}

var errAspectDisabled = errors.New("aspect disabled")

func mergeAspect(dst *types.DetectionResult, aspect types.Aspect, part *types.DetectionResult) {
	switch aspect {
	case types.AspectFace:
		dst.FaceCount = part.FaceCount
		dst.FacialFeatures = part.FacialFeatures
	case types.AspectObject:
		for c, objs := range part.Objects {
			dst.Objects[c] = append(dst.Objects[c], objs...)
		}
	case types.AspectStyle:
		dst.Style = part.Style
	}
}

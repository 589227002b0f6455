// Package fallback supplies substitute detection results when no live detector answered.
package fallback

import (
	"github.com/menta2k/autorig/pkg/types"
)

// Defaults for substitute results
const (
	DefaultSmallBytes       = 100 * 1024
	DefaultFaceConfidence   = 0.6
	DefaultSourceConfidence = 0.5
)

// Strategy builds a deterministic DetectionResult from image properties only
type Strategy struct {
	smallBytes     int64
	faceConfidence float64
}

// Option configures a Strategy
type Option func(*Strategy)

// WithSmallBytes sets the byte size below which an image is assumed to hold no face
func WithSmallBytes(n int64) Option {
	return func(s *Strategy) {
		if n > 0 {
			s.smallBytes = n
		}
	}
}

// WithFaceConfidence sets the confidence reported for an assumed face
func WithFaceConfidence(c float64) Option {
	return func(s *Strategy) {
		s.faceConfidence = types.Clamp01(c)
	}
}

// New creates a Strategy
func New(opts ...Option) *Strategy {
	s := &Strategy{
		smallBytes:     DefaultSmallBytes,
		faceConfidence: DefaultFaceConfidence,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// isSmall uses the analyzer's flag when set, else the strategy's own threshold
func (s *Strategy) isSmall(props types.ImageProperties) bool {
	return props.IsSmall || props.ByteSize < s.smallBytes
}

// Substitute returns the full stand-in result. Small images are treated as
// faceless objects; anything larger is assumed to show one character.
func (s *Strategy) Substitute(props types.ImageProperties) types.DetectionResult {
	result := types.DetectionResult{
		Objects:           map[types.Category][]types.ObjectDetection{},
		Style:             types.StyleClassification{Style: types.StyleUnknown},
		SourceConfidence:  DefaultSourceConfidence,
		UsedLiveDetection: false,
	}
	result.FaceCount, result.FacialFeatures = s.face(props)
	return result
}

// SubstituteAspect returns the stand-in for one ensemble aspect
func (s *Strategy) SubstituteAspect(aspect types.Aspect, props types.ImageProperties) types.DetectionResult {
	result := types.DetectionResult{
		Objects:          map[types.Category][]types.ObjectDetection{},
		Style:            types.StyleClassification{Style: types.StyleUnknown},
		SourceConfidence: DefaultSourceConfidence,
	}
	if aspect == types.AspectFace {
		result.FaceCount, result.FacialFeatures = s.face(props)
	}
	return result
}

func (s *Strategy) face(props types.ImageProperties) (int, types.FacialFeatures) {
	if s.isSmall(props) {
		return 0, types.FacialFeatures{}
	}
	return 1, types.FacialFeatures{
		HasFace:    true,
		EyeCount:   2,
		MouthCount: 1,
		Confidence: s.faceConfidence,
	}
}

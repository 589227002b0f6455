package segmentation

import (
	"github.com/menta2k/autorig/pkg/types"
)

// Thresholds drive every inclusion gate of the rule table
type Thresholds struct {
	Accessory      float64 // minimum detector confidence for an accessory layer
	Clothing       float64 // minimum detector confidence for a clothing layer
	Animal         float64 // minimum detector confidence for animal layers
	Style          float64 // minimum style confidence for style layers
	FullBodyAspect float64 // width/height at or below which a client report implies a full-body shot
	DetailedBytes  int64   // byte size above which the detailed accessory set is added
	ColorRegions   float64 // colour complexity at which colour regions are split out
}

// DefaultThresholds returns the documented gate values
func DefaultThresholds() Thresholds {
	return Thresholds{
		Accessory:      0.5,
		Clothing:       0.5,
		Animal:         0.5,
		Style:          0.3,
		FullBodyAspect: 0.8,
		DetailedBytes:  1024 * 1024,
		ColorRegions:   0.5,
	}
}

// Input is the immutable view every rule evaluates
type Input struct {
	Detection types.DetectionResult
	Props     types.ImageProperties
	Analysis  *types.ClientAnalysis
}

// hasFace: at least one face was detected
func hasFace(in Input) bool {
	return in.Detection.FaceCount > 0
}

// hasCharacter: a face or a person is present, which unlocks body, style and detail layers
func hasCharacter(in Input) bool {
	return hasFace(in) || len(in.Detection.ObjectsOf(types.CategoryPeople)) > 0
}

// isFullBody: the composition shows the whole figure rather than a bust
func isFullBody(in Input, th Thresholds) bool {
	if in.Props.IsLarge {
		return true
	}
	if ar, ok := in.Analysis.AspectRatio(); ok && ar <= th.FullBodyAspect {
		return true
	}
	return false
}

// isDetailed: the upload is big enough to carry small accessory detail.
// The engine threshold decides; props.IsDetailed is the analyzer's report of
// the same cut and is not consulted.
func isDetailed(in Input, th Thresholds) bool {
	return in.Props.ByteSize > th.DetailedBytes
}

// hasEyes reports whether the n-th eye (1-based) was detected
func hasEyes(in Input, n int) bool {
	return in.Detection.FacialFeatures.EyeCount >= n
}

// hasMouth: a mouth was detected
func hasMouth(in Input) bool {
	return in.Detection.FacialFeatures.MouthCount >= 1
}

// confident: a detector confidence clears its threshold
func confident(conf, threshold float64) bool {
	return conf >= threshold
}

// hasBodyEvidence: the detector itself saw people or clothing, rather than the size heuristic guessing
func hasBodyEvidence(in Input) bool {
	return len(in.Detection.ObjectsOf(types.CategoryPeople)) > 0 ||
		len(in.Detection.ObjectsOf(types.CategoryClothing)) > 0
}

// signalFired: an earlier rule kept a layer other than the background
func signalFired(kept []types.Layer) bool {
	for _, l := range kept {
		if l.Provenance != types.ProvenanceAlways {
			return true
		}
	}
	return false
}

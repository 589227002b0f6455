// Package segmentation turns detection signals into an ordered set of named layers.
package segmentation

import (
	"github.com/menta2k/autorig/pkg/types"
)

// Engine evaluates the rule table
type Engine struct {
	thresholds Thresholds
	rules      []Rule
}

// Option configures an Engine
type Option func(*Engine)

// WithThresholds replaces the gate thresholds
func WithThresholds(th Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = th
	}
}

// WithDetailedBytes sets only the detailed accessory threshold
func WithDetailedBytes(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.thresholds.DetailedBytes = n
		}
	}
}

// New creates an Engine over the default rule table
func New(opts ...Option) *Engine {
	e := &Engine{
		thresholds: DefaultThresholds(),
		rules:      Rules,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the engine's gate values
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Outcome says what happened to a candidate layer
type Outcome string

const (
	OutcomeKept      Outcome = "kept"
	OutcomeGated     Outcome = "gated"
	OutcomeDuplicate Outcome = "duplicate"
)

// Candidate is one layer as proposed by a rule, with its fate
type Candidate struct {
	Rule     string      `json:"rule"`
	Layer    types.Layer `json:"layer"`
	Detected bool        `json:"detected"`
	Outcome  Outcome     `json:"outcome"`
}

// Segment returns the detected layers in emission order, background first
func (e *Engine) Segment(det types.DetectionResult, props types.ImageProperties, analysis *types.ClientAnalysis) []types.Layer {
	kept, _ := e.run(det, props, analysis)
	return kept
}

// Explain returns every candidate the rules proposed, including the ones
// dropped by a gate or as duplicates
func (e *Engine) Explain(det types.DetectionResult, props types.ImageProperties, analysis *types.ClientAnalysis) []Candidate {
	_, candidates := e.run(det, props, analysis)
	return candidates
}

func (e *Engine) run(det types.DetectionResult, props types.ImageProperties, analysis *types.ClientAnalysis) ([]types.Layer, []Candidate) {
	det = det.Clone()
	det.Sanitize()
	in := Input{Detection: det, Props: props, Analysis: analysis}

	var kept []types.Layer
	var candidates []Candidate
	names := map[string]struct{}{}

	for _, rule := range e.rules {
		// rules get a copy so they cannot reorder what was kept
		snapshot := append([]types.Layer(nil), kept...)
		for _, l := range rule.Emit(in, e.thresholds, snapshot) {
			c := Candidate{Rule: rule.Name, Layer: l, Detected: l.Detected}
			switch {
			case l.Name == "" || !l.Detected:
				c.Outcome = OutcomeGated
			case hasName(names, l.Name):
				c.Outcome = OutcomeDuplicate
			default:
				c.Outcome = OutcomeKept
				names[l.Name] = struct{}{}
				kept = append(kept, l)
			}
			candidates = append(candidates, c)
		}
	}
	return kept, candidates
}

func hasName(names map[string]struct{}, name string) bool {
	_, ok := names[name]
	return ok
}

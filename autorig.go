// Package autorig turns a single image into a layered decomposition and a
// matching skeletal rig.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		"github.com/menta2k/autorig"
//	)
//
//	func main() {
//		data, err := os.ReadFile("character.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		engine := autorig.New()
//		res, err := engine.Process(context.Background(), autorig.Upload{Filename: "character.png", Data: data}, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%d layers, %d bones, rig type %s\n",
//			len(res.Layers), len(res.RiggedModel.Bones), res.RiggedModel.RigType)
//	}
//
// The pipeline is:
//
// 1. Analyzer (pkg/analyzer): byte size, size classes, filename hints
// 2. Detection (pkg/detection): a live detector behind submit and poll, or the
// Fallback strategy (pkg/fallback) when it fails
// 3. Segmentation (pkg/segmentation): the ordered layer rule table
// 4. Rig (pkg/rig): bones, animations, quality and rig type
//
// Without a configured detection source every request is served by the
// fallback strategy, so results are always available.
package autorig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/autorig/pkg/analyzer"
	"github.com/menta2k/autorig/pkg/detection"
	"github.com/menta2k/autorig/pkg/fallback"
	"github.com/menta2k/autorig/pkg/processing"
	"github.com/menta2k/autorig/pkg/rig"
	"github.com/menta2k/autorig/pkg/segmentation"
	"github.com/menta2k/autorig/pkg/types"
	"github.com/menta2k/autorig/pkg/vision"
)

// Version of the autorig library
const Version = "1.0.0"

var (
	// ErrEmptyUpload is returned for an upload without bytes
	ErrEmptyUpload = errors.New("empty upload")
	// ErrUnsupportedImage is returned when the upload decodes to a rejected format
	ErrUnsupportedImage = errors.New("unsupported image")
	// ErrContractViolation means segmentation or rig generation broke an output invariant
	ErrContractViolation = errors.New("contract violation")
)

// Segmenter derives layers from detection signals
type Segmenter interface {
	Segment(det types.DetectionResult, props types.ImageProperties, analysis *types.ClientAnalysis) []types.Layer
}

// RigGenerator derives a rig from layers
type RigGenerator interface {
	Generate(layers []types.Layer) types.RiggedModel
}

// Upload is one image as received
type Upload struct {
	Filename string
	Data     []byte
}

// AnalysisSource says where the visual-analysis report came from
type AnalysisSource string

const (
	AnalysisClient AnalysisSource = "client"
	AnalysisServer AnalysisSource = "server"
	AnalysisNone   AnalysisSource = "none"
)

// ProcessingInfo describes how a result was produced
type ProcessingInfo struct {
	AIUsed          bool           `json:"aiUsed"`
	Fallback        bool           `json:"fallback"`
	FallbackReason  string         `json:"fallbackReason,omitempty"`
	FallbackAspects []string       `json:"fallbackAspects,omitempty"`
	ProcessingTime  int64          `json:"processingTime"` // milliseconds
	LayerCount      int            `json:"layerCount"`
	BoneCount       int            `json:"boneCount"`
	AnalysisSource  AnalysisSource `json:"analysisSource"`
}

// Result is the outcome of one Process call
type Result struct {
	Layers         []types.Layer
	RiggedModel    types.RiggedModel
	Detection      types.DetectionResult
	Properties     types.ImageProperties
	ProcessingInfo ProcessingInfo
}

// Engine wires the pipeline stages together
type Engine struct {
	source    detection.Source
	analyzer  *analyzer.PropertyAnalyzer
	segmenter Segmenter
	rigger    RigGenerator
	fallback  *fallback.Strategy
	processor *processing.Processor
	extractor *vision.SignalExtractor
	logger    *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithSource sets the live detection source. Without one every request uses the fallback.
func WithSource(s detection.Source) Option {
	return func(e *Engine) {
		e.source = s
	}
}

func WithAnalyzer(a *analyzer.PropertyAnalyzer) Option {
	return func(e *Engine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

func WithSegmenter(s Segmenter) Option {
	return func(e *Engine) {
		if s != nil {
			e.segmenter = s
		}
	}
}

func WithRigGenerator(g RigGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.rigger = g
		}
	}
}

func WithFallback(f *fallback.Strategy) Option {
	return func(e *Engine) {
		if f != nil {
			e.fallback = f
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSignalExtractor enables server-side analysis for uploads that arrive without a client report
func WithSignalExtractor(x *vision.SignalExtractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithTransportSize sets the longest side of the image sent to the detector
func WithTransportSize(n int) Option {
	return func(e *Engine) {
		e.processor = processing.NewProcessor(processing.WithMaxDim(n))
	}
}

// New creates an Engine with default stages and no live detector
func New(opts ...Option) *Engine {
	e := &Engine{
		analyzer:  analyzer.New(),
		segmenter: segmentation.New(),
		rigger:    rig.New(),
		fallback:  fallback.New(),
		processor: processing.NewProcessor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LiveDetection reports whether a detection source is configured
func (e *Engine) LiveDetection() bool {
	return e.source != nil
}

// Process runs the whole pipeline for one upload. Detection failures never
// surface; they switch the request to the fallback strategy.
func (e *Engine) Process(ctx context.Context, up Upload, analysis *types.ClientAnalysis) (*Result, error) {
	start := time.Now()
	if len(up.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	props := e.analyzer.Analyze(up.Filename, up.Data)
	if err := e.analyzer.Validate(props); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	info := ProcessingInfo{AnalysisSource: AnalysisNone}
	switch {
	case analysis != nil:
		info.AnalysisSource = AnalysisClient
	case e.extractor != nil:
		if img, err := e.processor.Decode(up.Data); err == nil {
			if analysis = e.extractor.Extract(img); analysis != nil {
				info.AnalysisSource = AnalysisServer
			}
		} else {
			e.logger.Debug("server analysis skipped", zap.Error(err))
		}
	}

	det, detErr := e.detect(ctx, up.Data, props)
	if detErr != nil {
		e.logger.Warn("detection failed, using fallback",
			zap.String("reason", string(detErr.Reason)),
			zap.String("filename", up.Filename),
			zap.Error(detErr))
		det = e.fallback.Substitute(props)
		info.Fallback = true
		info.FallbackReason = string(detErr.Reason)
	} else {
		info.AIUsed = det.UsedLiveDetection
		if len(det.FallbackAspects) > 0 {
			info.Fallback = true
			info.FallbackAspects = det.FallbackAspects
		}
	}

	layers, model, err := e.derive(det, props, analysis)
	if err != nil {
		return nil, err
	}

	info.LayerCount = len(layers)
	info.BoneCount = len(model.Bones)
	info.ProcessingTime = time.Since(start).Milliseconds()

	e.logger.Info("image processed",
		zap.String("filename", up.Filename),
		zap.Int64("bytes", props.ByteSize),
		zap.Bool("ai_used", info.AIUsed),
		zap.Bool("fallback", info.Fallback),
		zap.Int("layers", info.LayerCount),
		zap.Int("bones", info.BoneCount),
		zap.String("rig_type", string(model.RigType)),
		zap.Int64("duration_ms", info.ProcessingTime))

	return &Result{
		Layers:         layers,
		RiggedModel:    model,
		Detection:      det,
		Properties:     props,
		ProcessingInfo: info,
	}, nil
}

func (e *Engine) detect(ctx context.Context, data []byte, props types.ImageProperties) (types.DetectionResult, *detection.DetectionError) {
	if e.source == nil {
		return types.DetectionResult{}, &detection.DetectionError{
			Reason: detection.ReasonUpstreamFailure,
			Cause:  "no detector configured",
		}
	}

	payload, _ := e.processor.PrepareForTransport(data)
	res, err := e.source.Detect(ctx, payload, props)
	if err != nil {
		if de, ok := detection.AsDetectionError(err); ok {
			return types.DetectionResult{}, de
		}
		return types.DetectionResult{}, &detection.DetectionError{Reason: detection.ReasonUpstreamFailure, Err: err}
	}
	if res == nil {
		return types.DetectionResult{}, &detection.DetectionError{
			Reason: detection.ReasonMalformedResponse,
			Err:    errors.New("detector returned no result"),
		}
	}
	return *res, nil
}

// derive runs segmentation and rig generation, turning panics and broken
// invariants into ErrContractViolation
func (e *Engine) derive(det types.DetectionResult, props types.ImageProperties, analysis *types.ClientAnalysis) (layers []types.Layer, model types.RiggedModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrContractViolation, r)
		}
		if err != nil {
			e.logger.Error("layer or rig derivation failed",
				zap.Error(err),
				zap.Any("detection", det),
				zap.Any("layers", layers),
				zap.Any("bones", model.Bones))
		}
	}()

	layers = e.segmenter.Segment(det, props, analysis)
	if err = checkLayers(layers); err != nil {
		return layers, model, err
	}
	model = e.rigger.Generate(layers)
	if err = checkBones(model.Bones); err != nil {
		return layers, model, err
	}
	return layers, model, nil
}

func checkLayers(layers []types.Layer) error {
	if len(layers) == 0 || layers[0].Name != "background" || layers[0].Provenance != types.ProvenanceAlways {
		return fmt.Errorf("%w: background layer is not first", ErrContractViolation)
	}
	seen := make(map[string]bool, len(layers))
	for _, l := range layers {
		if l.Name == "" || seen[l.Name] {
			return fmt.Errorf("%w: layer name %q is empty or repeated", ErrContractViolation, l.Name)
		}
		if l.Confidence < 0 || l.Confidence > 1 {
			return fmt.Errorf("%w: layer %q confidence %f out of range", ErrContractViolation, l.Name, l.Confidence)
		}
		seen[l.Name] = true
	}
	return nil
}

func checkBones(bones []types.Bone) error {
	if len(bones) == 0 || bones[0].Name != "root" || bones[0].Parent != "" {
		return fmt.Errorf("%w: root bone is not first", ErrContractViolation)
	}
	defined := make(map[string]bool, len(bones))
	defined["root"] = true
	for _, b := range bones[1:] {
		if !defined[b.Parent] {
			return fmt.Errorf("%w: bone %q precedes its parent %q", ErrContractViolation, b.Name, b.Parent)
		}
		defined[b.Name] = true
	}
	return nil
}

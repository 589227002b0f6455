package autorig

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/menta2k/autorig/pkg/client"
	"github.com/menta2k/autorig/pkg/detection"
	"github.com/menta2k/autorig/pkg/types"
	"github.com/menta2k/autorig/pkg/vision"
)

// createTestImage creates a PNG with a bright square on a dark background
func createTestImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type sourceFunc func(ctx context.Context, image []byte, props types.ImageProperties) (*types.DetectionResult, error)

func (f sourceFunc) Detect(ctx context.Context, image []byte, props types.ImageProperties) (*types.DetectionResult, error) {
	return f(ctx, image, props)
}

// pendingDetector never finishes a job
type pendingDetector struct{ polls int }

func (p *pendingDetector) Submit(ctx context.Context, image []byte) (string, error) {
	return "job", nil
}

func (p *pendingDetector) Poll(ctx context.Context, jobID string) (client.PollResult, error) {
	p.polls++
	return client.PollResult{Status: client.StatusPending}, nil
}

func checkResultShape(t *testing.T, res *Result) {
	t.Helper()
	if len(res.Layers) == 0 || res.Layers[0].Name != "background" {
		t.Errorf("Expected background first, got %+v", res.Layers)
	}
	if len(res.RiggedModel.Bones) == 0 || res.RiggedModel.Bones[0].Name != "root" {
		t.Errorf("Expected root first, got %+v", res.RiggedModel.Bones)
	}
	if res.ProcessingInfo.LayerCount != len(res.Layers) || res.ProcessingInfo.BoneCount != len(res.RiggedModel.Bones) {
		t.Errorf("Counts do not match: %+v", res.ProcessingInfo)
	}
}

func TestNew(t *testing.T) {
	e := New()
	if e.analyzer == nil || e.segmenter == nil || e.rigger == nil || e.fallback == nil || e.processor == nil {
		t.Fatal("Expected default stages")
	}
	if e.LiveDetection() {
		t.Error("No detector is configured by default")
	}
}

func TestProcessDetectorTimeoutFallsBack(t *testing.T) {
	pending := &pendingDetector{}
	src := detection.FromDetector(detection.NewClient(pending,
		detection.WithPollInterval(time.Millisecond),
		detection.WithMaxAttempts(3)))
	e := New(WithSource(src))

	data := make([]byte, 200*1024)
	res, err := e.Process(context.Background(), Upload{Filename: "upload.bin", Data: data}, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	checkResultShape(t, res)

	if pending.polls != 3 {
		t.Errorf("Expected 3 polls, got %d", pending.polls)
	}
	info := res.ProcessingInfo
	if info.AIUsed || !info.Fallback || info.FallbackReason != string(detection.ReasonTimeout) {
		t.Errorf("Unexpected processing info %+v", info)
	}
	if res.Detection.FaceCount != 1 || res.Detection.UsedLiveDetection {
		t.Errorf("Expected the large-image fallback, got %+v", res.Detection)
	}

	// the fallback depends on byte size alone
	again, _ := e.Process(context.Background(), Upload{Filename: "other.bin", Data: make([]byte, 200*1024)}, nil)
	if len(again.Layers) != len(res.Layers) {
		t.Errorf("Fallback is not deterministic: %d vs %d layers", len(again.Layers), len(res.Layers))
	}
}

func TestProcessSmallImageFallback(t *testing.T) {
	res, err := New().Process(context.Background(), Upload{Filename: "tiny.png", Data: createTestImage(t, 20, 20)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResultShape(t, res)
	if res.Detection.FaceCount != 0 {
		t.Errorf("Small uploads fall back to no face, got %d", res.Detection.FaceCount)
	}
	if res.RiggedModel.RigType != types.RigObject {
		t.Errorf("Expected object rig, got %s", res.RiggedModel.RigType)
	}
	if res.ProcessingInfo.AnalysisSource != AnalysisNone {
		t.Errorf("Expected no analysis, got %s", res.ProcessingInfo.AnalysisSource)
	}
}

func TestProcessLiveDetection(t *testing.T) {
	var sent []byte
	src := sourceFunc(func(ctx context.Context, image []byte, props types.ImageProperties) (*types.DetectionResult, error) {
		sent = image
		return &types.DetectionResult{
			FaceCount:         1,
			FacialFeatures:    types.FacialFeatures{HasFace: true, EyeCount: 2, MouthCount: 1, Confidence: 0.9},
			Objects:           map[types.Category][]types.ObjectDetection{types.CategoryAnimals: {{Type: "cat", Confidence: 0.9}}},
			Style:             types.StyleClassification{Style: types.StyleUnknown},
			SourceConfidence:  0.9,
			UsedLiveDetection: true,
		}, nil
	})

	upload := createTestImage(t, 64, 64)
	res, err := New(WithSource(src)).Process(context.Background(), Upload{Filename: "cat.png", Data: upload}, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResultShape(t, res)
	if !res.ProcessingInfo.AIUsed || res.ProcessingInfo.Fallback {
		t.Errorf("Unexpected processing info %+v", res.ProcessingInfo)
	}
	if res.RiggedModel.RigType != types.RigHybrid || !res.RiggedModel.HasAnimation("purr") {
		t.Errorf("Expected hybrid rig with purr, got %s %v", res.RiggedModel.RigType, res.RiggedModel.Animations)
	}
	if len(sent) == 0 || bytes.Equal(sent, upload) {
		t.Error("Expected the detector to receive the transport-encoded image")
	}
}

func TestProcessPartialFallback(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, image []byte, props types.ImageProperties) (*types.DetectionResult, error) {
		return &types.DetectionResult{UsedLiveDetection: true, FallbackAspects: []string{"style"}}, nil
	})
	res, err := New(WithSource(src)).Process(context.Background(), Upload{Data: []byte("x")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.ProcessingInfo.AIUsed || !res.ProcessingInfo.Fallback || len(res.ProcessingInfo.FallbackAspects) != 1 {
		t.Errorf("Unexpected processing info %+v", res.ProcessingInfo)
	}
}

func TestProcessNonDetectionErrorFallsBack(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, image []byte, props types.ImageProperties) (*types.DetectionResult, error) {
		return nil, errors.New("connection refused")
	})
	res, err := New(WithSource(src)).Process(context.Background(), Upload{Data: []byte("x")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ProcessingInfo.FallbackReason != string(detection.ReasonUpstreamFailure) {
		t.Errorf("Expected upstream_failure, got %q", res.ProcessingInfo.FallbackReason)
	}
}

func TestProcessClientAnalysis(t *testing.T) {
	analysis := &types.ClientAnalysis{ShapeDetection: &types.ShapeDetection{CircularRegions: 2}}
	res, err := New().Process(context.Background(), Upload{Data: []byte("tiny")}, analysis)
	if err != nil {
		t.Fatal(err)
	}
	if res.ProcessingInfo.AnalysisSource != AnalysisClient {
		t.Errorf("Expected client analysis, got %s", res.ProcessingInfo.AnalysisSource)
	}
	if res.RiggedModel.RigType != types.RigMascot {
		t.Errorf("Expected mascot rig, got %s", res.RiggedModel.RigType)
	}
}

func TestProcessServerAnalysis(t *testing.T) {
	e := New(WithSignalExtractor(vision.New()))
	res, err := e.Process(context.Background(), Upload{Data: createTestImage(t, 50, 40)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ProcessingInfo.AnalysisSource != AnalysisServer {
		t.Errorf("Expected server analysis, got %s", res.ProcessingInfo.AnalysisSource)
	}

	// undecodable bytes skip server analysis
	res, _ = e.Process(context.Background(), Upload{Data: []byte("not an image")}, nil)
	if res.ProcessingInfo.AnalysisSource != AnalysisNone {
		t.Errorf("Expected no analysis, got %s", res.ProcessingInfo.AnalysisSource)
	}
}

func TestProcessEmptyUpload(t *testing.T) {
	if _, err := New().Process(context.Background(), Upload{}, nil); !errors.Is(err, ErrEmptyUpload) {
		t.Errorf("Expected ErrEmptyUpload, got %v", err)
	}
}

type panickingSegmenter struct{}

func (panickingSegmenter) Segment(types.DetectionResult, types.ImageProperties, *types.ClientAnalysis) []types.Layer {
	panic("index out of range")
}

type headlessSegmenter struct{}

func (headlessSegmenter) Segment(types.DetectionResult, types.ImageProperties, *types.ClientAnalysis) []types.Layer {
	return []types.Layer{{Name: "main_object", Confidence: 0.7, Provenance: types.ProvenanceFallback, Detected: true}}
}

type orphanRig struct{}

func (orphanRig) Generate([]types.Layer) types.RiggedModel {
	return types.RiggedModel{Bones: []types.Bone{{Name: "root"}, {Name: "tail", Parent: "body"}}}
}

func TestProcessContractViolations(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"panic", []Option{WithSegmenter(panickingSegmenter{})}},
		{"missing background", []Option{WithSegmenter(headlessSegmenter{})}},
		{"orphan bone", []Option{WithRigGenerator(orphanRig{})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...).Process(context.Background(), Upload{Data: []byte("x")}, nil)
			if !errors.Is(err, ErrContractViolation) {
				t.Errorf("Expected ErrContractViolation, got %v", err)
			}
		})
	}
}

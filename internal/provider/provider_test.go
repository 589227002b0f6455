package provider

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/menta2k/autorig"
	"github.com/menta2k/autorig/internal/config"
	"github.com/menta2k/autorig/pkg/detection"
	"github.com/menta2k/autorig/pkg/fallback"
	"github.com/menta2k/autorig/pkg/gemini"
	"github.com/menta2k/autorig/pkg/types"
)

func TestNewSourceNone(t *testing.T) {
	src, cleanup, err := NewSource(context.Background(), config.Default(), fallback.New(), nil)
	defer cleanup()
	if err != nil || src != nil {
		t.Errorf("Expected no source, got %v (%v)", src, err)
	}
}

func TestNewSourceKinds(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		ensemble bool
	}{
		{"replicate", func(c *config.Config) {
			c.Detector.Provider = "replicate"
			c.Detector.APIKey = "r8_token"
			c.Detector.Version = "v1"
		}, false},
		{"redis", func(c *config.Config) { c.Detector.Provider = "redis" }, false},
		{"llamacpp ensemble", func(c *config.Config) {
			c.Detector.Provider = "llamacpp"
			c.Detector.Ensemble = true
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			src, cleanup, err := NewSource(context.Background(), cfg, fallback.New(), nil)
			if err != nil {
				t.Fatal(err)
			}
			defer cleanup()
			_, isEnsemble := src.(*detection.Ensemble)
			if isEnsemble != tt.ensemble {
				t.Errorf("Expected ensemble=%v, got %T", tt.ensemble, src)
			}
		})
	}
}

func TestNewSourceErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Detector.Provider = "redis"
	cfg.Detector.Ensemble = true
	if _, _, err := NewSource(context.Background(), cfg, fallback.New(), nil); !errors.Is(err, ErrUnsupportedEnsemble) {
		t.Errorf("Expected ErrUnsupportedEnsemble, got %v", err)
	}

	cfg = config.Default()
	cfg.Detector.Provider = "gemini"
	if _, _, err := NewSource(context.Background(), cfg, fallback.New(), nil); !errors.Is(err, gemini.ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}

	cfg = config.Default()
	cfg.Detector.Provider = "ollama"
	cfg.Detector.URL = "localhost"
	if _, _, err := NewSource(context.Background(), cfg, fallback.New(), nil); err == nil {
		t.Error("Expected error for an ollama URL without scheme")
	}
}

func TestLlamaCppSourceEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"faceCount\":1,\"facialFeatures\":{\"hasFace\":true}}"}}]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Detector.Provider = "llamacpp"
	cfg.Detector.URL = srv.URL
	cfg.Detector.PollInterval = 5 * time.Millisecond
	cfg.Detector.MaxAttempts = 100

	src, cleanup, err := NewSource(context.Background(), cfg, fallback.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	res, err := src.Detect(context.Background(), []byte("jpeg"), types.ImageProperties{ByteSize: 4})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.FaceCount != 1 || !res.UsedLiveDetection || res.FacialFeatures.EyeCount != 2 {
		t.Errorf("Unexpected detection %+v", res)
	}
}

func TestNewEngineAppliesThresholds(t *testing.T) {
	cfg := config.Default()
	cfg.Thresholds.SmallBytes = 10 * 1024
	cfg.Thresholds.LargeBytes = 100 * 1024
	cfg.Thresholds.DetailedBytes = 150 * 1024

	engine, cleanup, err := NewEngine(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	res, err := engine.Process(context.Background(), autorig.Upload{Filename: "portrait.png", Data: make([]byte, 200*1024)}, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !res.Properties.IsLarge || !res.Properties.IsDetailed {
		t.Errorf("Expected configured thresholds to classify 200KiB as large and detailed, got %+v", res.Properties)
	}
	found := map[string]bool{}
	for _, l := range res.Layers {
		found[l.Name] = true
	}
	for _, name := range []string{"left_leg", "earrings", "necklace"} {
		if !found[name] {
			t.Errorf("Expected layer %q from configured thresholds, got %v", name, res.Layers)
		}
	}
}

func TestNewEngineServerAnalysis(t *testing.T) {
	cfg := config.Default()
	cfg.Vision.ServerAnalysis = true

	engine, cleanup, err := NewEngine(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 64))); err != nil {
		t.Fatal(err)
	}
	res, err := engine.Process(context.Background(), autorig.Upload{Filename: "blank.png", Data: buf.Bytes()}, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.ProcessingInfo.AnalysisSource != autorig.AnalysisServer {
		t.Errorf("Expected server analysis, got %s", res.ProcessingInfo.AnalysisSource)
	}
}

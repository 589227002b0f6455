package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/menta2k/autorig"
	"github.com/menta2k/autorig/internal/config"
	"github.com/menta2k/autorig/internal/logging"
	"github.com/menta2k/autorig/internal/provider"
	"github.com/menta2k/autorig/internal/utils"
	"github.com/menta2k/autorig/pkg/processing"
	"github.com/menta2k/autorig/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type output struct {
	Source         string                 `json:"source"`
	Properties     types.ImageProperties  `json:"properties"`
	Detection      types.DetectionResult  `json:"detection"`
	Layers         []types.Layer          `json:"layers"`
	RiggedModel    types.RiggedModel      `json:"riggedModel"`
	ProcessingInfo autorig.ProcessingInfo `json:"processingInfo"`
}

func main() {
	var in, outDir, backend, url, model, apiKey, version string
	var overlay, serverAnalysis, ensemble, verbose bool
	var overlayExt string
	var quality, sendSize int
	var timeout time.Duration

	flag.StringVar(&in, "in", "", "input image path, directory or URL (jpg/png/gif/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory")
	flag.StringVar(&backend, "backend", "", "detector: none|replicate|redis|ollama|llamacpp|gemini (default from config)")
	flag.StringVar(&url, "url", "", "detector server URL")
	flag.StringVar(&model, "model", "", "detector model name")
	flag.StringVar(&apiKey, "key", "", "detector API key")
	flag.StringVar(&version, "model-version", "", "replicate model version")
	flag.BoolVar(&ensemble, "ensemble", false, "run face, object and style detectors separately")
	flag.IntVar(&sendSize, "sendsize", 0, "max long side sent to the detector (px), 0=config")
	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "overall timeout")

	flag.BoolVar(&overlay, "overlay", false, "write a rig overlay image next to each result")
	flag.StringVar(&overlayExt, "overlay-ext", "png", "overlay format: png|jpg|webp")
	flag.IntVar(&quality, "quality", 92, "overlay quality for jpg/webp (1-100)")
	flag.BoolVar(&serverAnalysis, "analyze", false, "extract shape and detail signals from the pixels")
	flag.BoolVar(&verbose, "v", false, "debug logging")

	flag.Parse()
	if in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in image.png|dir|URL [-backend llamacpp -url http://localhost:8080] [-out outdir] [-overlay]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Mode: "debug", Level: level})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	d := &cfg.Detector
	if backend != "" {
		d.Provider = backend
	}
	setIf(&d.URL, url)
	setIf(&d.Model, model)
	setIf(&d.APIKey, apiKey)
	setIf(&d.Version, version)
	d.Ensemble = d.Ensemble || ensemble
	if sendSize > 0 {
		d.TransportSize = sendSize
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid detector flags", zap.Error(err))
	}

	cfg.Vision.ServerAnalysis = cfg.Vision.ServerAnalysis || serverAnalysis

	engine, cleanup, err := provider.NewEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}
	defer cleanup()

	processor := processing.NewProcessor()

	if err := utils.EnsureDir(outDir); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}

	inputs := []string{in}
	if !utils.IsURL(in) && utils.DirExists(in) {
		if inputs, err = utils.ListImageFiles(in); err != nil {
			logger.Fatal("failed to list images", zap.Error(err))
		}
		logger.Info("processing directory", zap.String("dir", in), zap.Int("images", len(inputs)))
	}

	failed := 0
	for _, src := range inputs {
		if err := processOne(ctx, engine, processor, src, outDir, overlay, overlayExt, quality, logger); err != nil {
			logger.Error("image failed", zap.String("source", src), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		logging.Sync(logger)
		os.Exit(1)
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func processOne(ctx context.Context, engine *autorig.Engine, processor *processing.Processor, src, outDir string, overlay bool, overlayExt string, quality int, logger *zap.Logger) error {
	data, filename, err := processor.Load(src)
	if err != nil {
		return err
	}

	res, err := engine.Process(ctx, autorig.Upload{Filename: filename, Data: data}, nil)
	if err != nil {
		return err
	}

	js, err := json.MarshalIndent(output{
		Source:         src,
		Properties:     res.Properties,
		Detection:      res.Detection,
		Layers:         res.Layers,
		RiggedModel:    res.RiggedModel,
		ProcessingInfo: res.ProcessingInfo,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	jsonPath := utils.OutputPath(src, outDir, "", "json")
	if err := os.WriteFile(jsonPath, js, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}
	logger.Info("wrote result",
		zap.String("path", jsonPath),
		zap.String("size", utils.FormatFileSize(int64(len(data)))),
		zap.Int("layers", len(res.Layers)),
		zap.Int("bones", len(res.RiggedModel.Bones)),
		zap.String("rig_type", string(res.RiggedModel.RigType)),
		zap.Bool("fallback", res.ProcessingInfo.Fallback))

	if !overlay {
		return nil
	}
	img, err := processor.Decode(data)
	if err != nil {
		logger.Warn("overlay skipped, image does not decode", zap.String("source", src), zap.Error(err))
		return nil
	}
	ext := strings.ToLower(overlayExt)
	overlayPath := utils.OutputPath(src, outDir, "_rig", ext)
	if err := processor.SaveImage(processor.RenderRigOverlay(img, res.RiggedModel), overlayPath, ext, quality); err != nil {
		return fmt.Errorf("overlay save failed: %w", err)
	}
	logger.Info("wrote overlay", zap.String("path", overlayPath))
	return nil
}

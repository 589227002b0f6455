package analyzer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	_ "golang.org/x/image/webp"

	"github.com/menta2k/autorig/pkg/types"
)

// PropertyAnalyzer derives coarse signals from an uploaded image file
type PropertyAnalyzer struct {
	config Config
}

// Config holds the byte-size thresholds used to classify an upload
type Config struct {
	SmallBytes       int64
	LargeBytes       int64
	DetailedBytes    int64
	SupportedFormats []string
}

// DefaultConfig returns the documented thresholds
func DefaultConfig() Config {
	return Config{
		SmallBytes:       100 * 1024,
		LargeBytes:       500 * 1024,
		DetailedBytes:    1024 * 1024,
		SupportedFormats: []string{"jpeg", "png", "gif", "webp"},
	}
}

// New creates a new PropertyAnalyzer with default configuration
func New() *PropertyAnalyzer {
	return &PropertyAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new PropertyAnalyzer with custom thresholds
func NewWithConfig(config Config) *PropertyAnalyzer {
	return &PropertyAnalyzer{config: config}
}

// Config returns the analyzer's thresholds
func (a *PropertyAnalyzer) Config() Config {
	return a.config
}

// Analyze computes ImageProperties for an upload. Dimensions and format are
// best effort; an undecodable file still yields the size-derived signals.
func (a *PropertyAnalyzer) Analyze(filename string, data []byte) types.ImageProperties {
	size := int64(len(data))
	props := types.ImageProperties{
		ByteSize:   size,
		IsSmall:    size < a.config.SmallBytes,
		IsLarge:    size > a.config.LargeBytes,
		IsDetailed: size > a.config.DetailedBytes,
		NameHints:  NameHints(filename),
	}

	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		props.Width = cfg.Width
		props.Height = cfg.Height
		props.Format = format
	}
	return props
}

// NameHints splits a filename into lowercased, sorted, unique word tokens
func NameHints(filename string) []string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == "" {
		return nil
	}

	fields := strings.FieldsFunc(strings.ToLower(base), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := map[string]struct{}{}
	hints := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		hints = append(hints, f)
	}
	sort.Strings(hints)
	return hints
}

// GetImageInfo returns basic information about a decoded image
func (a *PropertyAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

// IsFormatSupported reports whether a decoded format name is accepted
func (a *PropertyAnalyzer) IsFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// Validate checks that the upload is non-empty and, when it decodes, in a supported format
func (a *PropertyAnalyzer) Validate(props types.ImageProperties) error {
	if props.ByteSize <= 0 {
		return fmt.Errorf("empty image")
	}
	if props.Format != "" && !a.IsFormatSupported(props.Format) {
		return fmt.Errorf("unsupported image format: %s", props.Format)
	}
	return nil
}

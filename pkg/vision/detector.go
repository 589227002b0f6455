// Package vision derives a visual-analysis report from pixels on the server,
// for uploads that arrive without one.
package vision

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/autorig/pkg/types"
)

// SignalExtractor computes the same signals a client-side analysis reports
type SignalExtractor struct {
	config ExtractionConfig
}

// ExtractionConfig holds configuration for signal extraction
type ExtractionConfig struct {
	EdgeThreshold    float64 // per-pixel edge strength counted as an edge
	SaliencyLevel    float64 // mean window saliency counted as salient
	ContrastWeight   float64
	ColorWeight      float64
	MinSubjectRatio  float64 // smallest salient window, as a share of the image area
	MaxRegions       int
	ColorShare       float64 // share of pixels a quantized colour needs to count as dominant
	ColorsForComplex int     // dominant colour count that maps to complexity 1
	MaxSide          int     // images are downsampled to this side before analysis
}

// DefaultConfig returns the extraction defaults
func DefaultConfig() ExtractionConfig {
	return ExtractionConfig{
		EdgeThreshold:    0.05,
		SaliencyLevel:    0.12,
		ContrastWeight:   0.6,
		ColorWeight:      0.4,
		MinSubjectRatio:  0.01,
		MaxRegions:       10,
		ColorShare:       0.01,
		ColorsForComplex: 24,
		MaxSide:          256,
	}
}

// New creates a new SignalExtractor with default configuration
func New() *SignalExtractor {
	return &SignalExtractor{config: DefaultConfig()}
}

// NewWithConfig creates a new SignalExtractor with custom configuration
func NewWithConfig(config ExtractionConfig) *SignalExtractor {
	return &SignalExtractor{config: config}
}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

func (r Region) overlaps(o Region) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width && r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Extract analyzes an image and returns a report shaped like a client analysis
func (d *SignalExtractor) Extract(img image.Image) *types.ClientAnalysis {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	report := &types.ClientAnalysis{
		BasicInfo: &types.BasicInfo{
			Width:       width,
			Height:      height,
			AspectRatio: float64(width) / float64(height),
			TotalPixels: int64(width) * int64(height),
		},
	}

	small := d.downsample(img)
	edges, saliency := d.calculateMaps(small)
	density := edgeDensity(edges, d.config.EdgeThreshold)

	level := "low"
	switch {
	case density >= 0.5:
		level = "high"
	case density >= 0.2:
		level = "medium"
	}
	report.DetailLevel = &types.DetailLevel{Level: level, Score: types.Clamp01(density)}

	colors := d.DominantColors(small)
	report.ColorAnalysis = &types.ColorAnalysis{
		ColorComplexity: types.Clamp01(float64(colors) / float64(max(d.config.ColorsForComplex, 1))),
	}

	sb := small.Bounds()
	regions := d.DetectSubjects(saliency, sb.Dx(), sb.Dy())
	report.ShapeDetection = &types.ShapeDetection{CircularRegions: len(regions)}
	return report
}

func (d *SignalExtractor) downsample(img image.Image) image.Image {
	b := img.Bounds()
	if d.config.MaxSide <= 0 || (b.Dx() <= d.config.MaxSide && b.Dy() <= d.config.MaxSide) {
		return img
	}
	return imaging.Fit(img, d.config.MaxSide, d.config.MaxSide, imaging.Box)
}

var neighbors = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// calculateMaps returns the per-pixel edge strength and saliency, both in [0,1]
func (d *SignalExtractor) calculateMaps(img image.Image) ([][]float64, [][]float64) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	edges := make([][]float64, height)
	saliency := make([][]float64, height)
	for i := range edges {
		edges[i] = make([]float64, width)
		saliency[i] = make([]float64, width)
	}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var strength float64
			for _, off := range neighbors {
				r2, g2, b2, _ := img.At(x+off[0]+bounds.Min.X, y+off[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				strength += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			// 8 neighbours, channel max 65535, colour distance max sqrt(3)
			strength /= 8.0 * 65535.0 * math.Sqrt(3)

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)
			edges[y][x] = strength
			saliency[y][x] = d.config.ContrastWeight*strength + d.config.ColorWeight*brightness*strength
		}
	}
	return edges, saliency
}

func edgeDensity(edges [][]float64, threshold float64) float64 {
	var count, total int
	for _, row := range edges {
		for _, v := range row {
			total++
			if v > threshold {
				count++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

// DetectSubjects finds non-overlapping salient square windows, best first
func (d *SignalExtractor) DetectSubjects(saliency [][]float64, width, height int) []Region {
	regions := d.findImportantRegions(saliency, width, height)
	regions = d.filterAndScoreRegions(regions, width, height)

	var picked []Region
	for _, r := range regions {
		free := true
		for _, p := range picked {
			if r.overlaps(p) {
				free = false
				break
			}
		}
		if free {
			picked = append(picked, r)
		}
		if len(picked) >= d.config.MaxRegions {
			break
		}
	}
	return picked
}

func (d *SignalExtractor) findImportantRegions(saliency [][]float64, width, height int) []Region {
	var regions []Region
	side := min(width, height)
	for _, window := range []int{side / 8, side / 6, side / 4} {
		if window < 4 {
			continue
		}
		step := max(window/4, 1)
		for y := 0; y+window <= height; y += step {
			for x := 0; x+window <= width; x += step {
				score := regionScore(saliency, x, y, window, window)
				if score > d.config.SaliencyLevel {
					regions = append(regions, Region{X: x, Y: y, Width: window, Height: window, Score: score})
				}
			}
		}
	}
	return regions
}

func regionScore(saliency [][]float64, x, y, width, height int) float64 {
	var total float64
	count := 0
	for ry := y; ry < y+height && ry < len(saliency); ry++ {
		for rx := x; rx < x+width && rx < len(saliency[ry]); rx++ {
			total += saliency[ry][rx]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (d *SignalExtractor) filterAndScoreRegions(regions []Region, imageWidth, imageHeight int) []Region {
	minArea := int(float64(imageWidth*imageHeight) * d.config.MinSubjectRatio)
	filtered := regions[:0]
	for _, r := range regions {
		if r.Area() >= minArea {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}

// DominantColors counts the quantized colours that cover at least the
// configured share of the image
func (d *SignalExtractor) DominantColors(img image.Image) int {
	bounds := img.Bounds()
	histogram := make(map[uint32]int)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// 4 bits per channel
			r = (r >> 8) & 0xf0
			g = (g >> 8) & 0xf0
			b = (b >> 8) & 0xf0
			histogram[(r<<16)|(g<<8)|b]++
		}
	}

	total := bounds.Dx() * bounds.Dy()
	threshold := int(math.Ceil(float64(total) * d.config.ColorShare))
	if threshold < 1 {
		threshold = 1
	}
	count := 0
	for _, n := range histogram {
		if n >= threshold {
			count++
		}
	}
	return count
}

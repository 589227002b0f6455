package types

// ClientAnalysis is the optional visual-analysis report computed by a caller
// (typically the browser) before upload. Every field is optional.
type ClientAnalysis struct {
	BasicInfo           *BasicInfo      `json:"basicInfo,omitempty" validate:"omitempty"`
	ColorAnalysis       *ColorAnalysis  `json:"colorAnalysis,omitempty" validate:"omitempty"`
	ShapeDetection      *ShapeDetection `json:"shapeDetection,omitempty" validate:"omitempty"`
	StyleClassification *ClientStyle    `json:"styleClassification,omitempty" validate:"omitempty"`
	DetailLevel         *DetailLevel    `json:"detailLevel,omitempty" validate:"omitempty"`
}

type BasicInfo struct {
	Width        int     `json:"width" validate:"gte=0"`
	Height       int     `json:"height" validate:"gte=0"`
	AspectRatio  float64 `json:"aspectRatio" validate:"gte=0"`
	TotalPixels  int64   `json:"totalPixels" validate:"gte=0"`
	IsLargeImage bool    `json:"isLargeImage"`
}

type ColorAnalysis struct {
	ColorComplexity float64 `json:"colorComplexity" validate:"gte=0,lte=1"`
}

type ShapeDetection struct {
	CircularRegions   int `json:"circularRegions" validate:"gte=0"`
	TriangularRegions int `json:"triangularRegions" validate:"gte=0"`
}

type ClientStyle struct {
	Style string `json:"style"`
}

type DetailLevel struct {
	Level string  `json:"level"`
	Score float64 `json:"score" validate:"gte=0,lte=1"`
}

// Empty reports whether no section is present
func (c *ClientAnalysis) Empty() bool {
	return c == nil || (c.BasicInfo == nil && c.ColorAnalysis == nil && c.ShapeDetection == nil &&
		c.StyleClassification == nil && c.DetailLevel == nil)
}

// AspectRatio returns the reported aspect ratio, if any
func (c *ClientAnalysis) AspectRatio() (float64, bool) {
	if c == nil || c.BasicInfo == nil || c.BasicInfo.AspectRatio <= 0 {
		return 0, false
	}
	return c.BasicInfo.AspectRatio, true
}

// Style returns the reported style, or StyleUnknown
func (c *ClientAnalysis) Style() Style {
	if c == nil || c.StyleClassification == nil {
		return StyleUnknown
	}
	return ParseStyle(c.StyleClassification.Style)
}

// Shapes returns the circular and triangular region counts
func (c *ClientAnalysis) Shapes() (circular, triangular int) {
	if c == nil || c.ShapeDetection == nil {
		return 0, 0
	}
	return c.ShapeDetection.CircularRegions, c.ShapeDetection.TriangularRegions
}

// ColorComplexity returns the reported colour complexity, if any
func (c *ClientAnalysis) ColorComplexity() (float64, bool) {
	if c == nil || c.ColorAnalysis == nil {
		return 0, false
	}
	return c.ColorAnalysis.ColorComplexity, true
}

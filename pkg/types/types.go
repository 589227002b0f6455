package types

import "strings"

// Category groups object detections by kind
type Category string

const (
	CategoryPeople      Category = "people"
	CategoryClothing    Category = "clothing"
	CategoryAccessories Category = "accessories"
	CategoryAnimals     Category = "animals"
)

// Categories lists every category in a stable order
var Categories = []Category{CategoryPeople, CategoryClothing, CategoryAccessories, CategoryAnimals}

// Style is the art-style classification of an image
type Style string

const (
	StyleAnime     Style = "anime"
	StyleRealistic Style = "realistic"
	StyleUnknown   Style = "unknown"
)

// ParseStyle maps free-form style names onto the known set
func ParseStyle(s string) Style {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Style(s) {
	case StyleAnime, StyleRealistic:
		return Style(s)
	}
	switch s {
	case "cartoon", "manga", "chibi":
		return StyleAnime
	case "photo", "photorealistic", "realism":
		return StyleRealistic
	}
	return StyleUnknown
}

// FacialFeatures summarizes facial landmarks found by the detector
type FacialFeatures struct {
	HasFace    bool    `json:"hasFace"`
	EyeCount   int     `json:"eyeCount"`
	MouthCount int     `json:"mouthCount"`
	Confidence float64 `json:"confidence"`
}

// ObjectDetection is a single detected object
type ObjectDetection struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// StyleClassification holds the detected art style
type StyleClassification struct {
	Style      Style   `json:"style"`
	Confidence float64 `json:"confidence"`
}

// DetectionResult is the normalized output of a detector or of the fallback strategy
type DetectionResult struct {
	FaceCount         int                            `json:"faceCount"`
	FacialFeatures    FacialFeatures                 `json:"facialFeatures"`
	Objects           map[Category][]ObjectDetection `json:"objects"`
	Style             StyleClassification            `json:"styleClassification"`
	SourceConfidence  float64                        `json:"sourceConfidence"`
	UsedLiveDetection bool                           `json:"usedLiveDetection"`
	FallbackAspects   []string                       `json:"fallbackAspects,omitempty"`
}

// ObjectsOf returns the detections of one category
func (d DetectionResult) ObjectsOf(c Category) []ObjectDetection {
	if d.Objects == nil {
		return nil
	}
	return d.Objects[c]
}

// Clone returns a copy that shares no slices or maps with d
func (d DetectionResult) Clone() DetectionResult {
	out := d
	if d.Objects != nil {
		out.Objects = make(map[Category][]ObjectDetection, len(d.Objects))
		for c, objs := range d.Objects {
			out.Objects[c] = append([]ObjectDetection(nil), objs...)
		}
	}
	out.FallbackAspects = append([]string(nil), d.FallbackAspects...)
	return out
}

// Sanitize enforces the face invariant and clamps confidences
func (d *DetectionResult) Sanitize() {
	if d.FaceCount < 0 {
		d.FaceCount = 0
	}
	if d.FaceCount == 0 {
		d.FacialFeatures.HasFace = false
	}
	d.FacialFeatures.Confidence = Clamp01(d.FacialFeatures.Confidence)
	d.Style.Confidence = Clamp01(d.Style.Confidence)
	d.SourceConfidence = Clamp01(d.SourceConfidence)
	if d.Style.Style == "" {
		d.Style.Style = StyleUnknown
	}
	for c, objs := range d.Objects {
		for i := range objs {
			objs[i].Confidence = Clamp01(objs[i].Confidence)
		}
		d.Objects[c] = objs
	}
}

// ImageProperties are coarse signals derived from the uploaded file
type ImageProperties struct {
	ByteSize   int64    `json:"byteSize"`
	IsLarge    bool     `json:"isLarge"`
	IsSmall    bool     `json:"isSmall"`
	IsDetailed bool     `json:"isDetailed"`
	NameHints  []string `json:"nameHints,omitempty"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	Format     string   `json:"format,omitempty"`
}

// Provenance names the rule or source that emitted a layer
type Provenance string

const (
	ProvenanceFace      Provenance = "face_detection"
	ProvenanceObject    Provenance = "object_detection"
	ProvenanceAccessory Provenance = "accessory_detection"
	ProvenanceAnimal    Provenance = "animal_detection"
	ProvenanceStyle     Provenance = "style_heuristic"
	ProvenanceSize      Provenance = "size_heuristic"
	ProvenanceFallback  Provenance = "fallback"
	ProvenanceAlways    Provenance = "always"
)

// Layer is one visual decomposition unit of the subject image
type Layer struct {
	Name       string     `json:"name"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
	Detected   bool       `json:"-"`
}

// Bone is one rig joint. Z is always zero for planar rigs.
type Bone struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
	Parent   string     `json:"parent,omitempty"`
}

// Quality grades a rig by how many layers fed it
type Quality string

const (
	QualityBasic        Quality = "basic"
	QualityStandard     Quality = "standard"
	QualityMedium       Quality = "medium"
	QualityHigh         Quality = "high"
	QualityProfessional Quality = "professional"
)

// Complexity is the coarse rig complexity class
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// RigType classifies the kind of subject a rig was built for
type RigType string

const (
	RigCharacter RigType = "character"
	RigAnimal    RigType = "animal"
	RigHybrid    RigType = "hybrid"
	RigMascot    RigType = "mascot"
	RigObject    RigType = "object"
	RigGeneric   RigType = "generic"
	RigUnknown   RigType = "unknown"
)

// RiggedModel is the bone hierarchy and animation set derived from layers
type RiggedModel struct {
	Bones      []Bone     `json:"bones"`
	Animations []string   `json:"animations"`
	Quality    Quality    `json:"quality"`
	Complexity Complexity `json:"complexity"`
	RigType    RigType    `json:"rigType"`
}

// Bone returns the bone with the given name
func (m RiggedModel) Bone(name string) (Bone, bool) {
	for _, b := range m.Bones {
		if b.Name == name {
			return b, true
		}
	}
	return Bone{}, false
}

// HasAnimation reports whether the animation id is registered
func (m RiggedModel) HasAnimation(name string) bool {
	for _, a := range m.Animations {
		if a == name {
			return true
		}
	}
	return false
}

// Clamp01 bounds v to [0,1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Aspect is one independently detectable part of a DetectionResult
type Aspect string

const (
	AspectFace   Aspect = "face"
	AspectObject Aspect = "object"
	AspectStyle  Aspect = "style"
)

// Aspects lists every aspect in merge order
var Aspects = []Aspect{AspectFace, AspectObject, AspectStyle}

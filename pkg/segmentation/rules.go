package segmentation

import (
	"github.com/menta2k/autorig/pkg/types"
)

// Layer confidences used when a detector does not supply one
const (
	BackgroundConfidence = 0.95

	faceBaseConfidence = 0.9
	eyeConfidence      = 0.85
	noseConfidence     = 0.8
	mouthConfidence    = 0.85
	hairConfidence     = 0.8

	sizeAccessoryConfidence = 0.6
	clientStyleConfidence   = 0.6
	nameHintConfidence      = 0.5

	mainObjectConfidence    = 0.7
	objectDetailsConfidence = 0.6
	shapePartConfidence     = 0.65
	colorRegionConfidence   = 0.6
)

// Rule is one step of the segmentation table. Emit sees the immutable input
// and the layers kept so far, and returns candidate layers whose Detected
// flag is the outcome of the rule's gate.
type Rule struct {
	Name string
	Emit func(in Input, th Thresholds, kept []types.Layer) []types.Layer
}

// Rules is the segmentation table in evaluation order
var Rules = []Rule{
	{Name: "background", Emit: backgroundRule},
	{Name: "face", Emit: faceRule},
	{Name: "body", Emit: bodyRule},
	{Name: "clothing", Emit: clothingRule},
	{Name: "accessories", Emit: accessoryRule},
	{Name: "style", Emit: styleRule},
	{Name: "animals", Emit: animalRule},
	{Name: "no_face_fallback", Emit: noFaceFallbackRule},
}

type bodyPart struct {
	name       string
	confidence float64
	fullOnly   bool
}

// bust parts come first so the full set is a strict superset
var bodyParts = []bodyPart{
	{"shirt", 0.8, false},
	{"torso", 0.85, false},
	{"left_arm", 0.8, false},
	{"right_arm", 0.8, false},
	{"left_leg", 0.75, true},
	{"right_leg", 0.75, true},
	{"pants", 0.75, true},
	{"shoes", 0.7, true},
}

var sizeAccessories = []string{"earrings", "necklace", "glasses"}

var animalWords = map[string]bool{
	"cat": true, "dog": true, "bird": true, "horse": true, "rabbit": true,
	"fox": true, "bear": true, "sheep": true, "cow": true, "mouse": true, "fish": true,
}

func layer(name string, conf float64, p types.Provenance, detected bool) types.Layer {
	return types.Layer{Name: name, Confidence: types.Clamp01(conf), Provenance: p, Detected: detected}
}

func backgroundRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	return []types.Layer{layer("background", BackgroundConfidence, types.ProvenanceAlways, true)}
}

func faceRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	if !hasFace(in) {
		return nil
	}
	fc := in.Detection.FacialFeatures.Confidence
	scaled := func(base float64) float64 {
		if fc <= 0 {
			return base
		}
		return fc * base / faceBaseConfidence
	}
	p := types.ProvenanceFace
	return []types.Layer{
		layer("face_base", scaled(faceBaseConfidence), p, true),
		layer("left_eye", scaled(eyeConfidence), p, hasEyes(in, 1)),
		layer("right_eye", scaled(eyeConfidence), p, hasEyes(in, 2)),
		layer("nose", scaled(noseConfidence), p, true),
		layer("mouth", scaled(mouthConfidence), p, hasMouth(in)),
		layer("hair_front", scaled(hairConfidence), p, true),
		layer("hair_back", scaled(hairConfidence), p, true),
	}
}

func bodyRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	if !hasCharacter(in) {
		return nil
	}
	p := types.ProvenanceSize
	if hasBodyEvidence(in) {
		p = types.ProvenanceObject
	}
	full := isFullBody(in, th)
	out := make([]types.Layer, 0, len(bodyParts))
	for _, part := range bodyParts {
		out = append(out, layer(part.name, part.confidence, p, !part.fullOnly || full))
	}
	return out
}

func clothingRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	var out []types.Layer
	for _, item := range in.Detection.ObjectsOf(types.CategoryClothing) {
		out = append(out, layer(item.Type, item.Confidence, types.ProvenanceObject, confident(item.Confidence, th.Clothing)))
	}
	return out
}

func accessoryRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	var out []types.Layer
	for _, item := range in.Detection.ObjectsOf(types.CategoryAccessories) {
		out = append(out, layer(item.Type, item.Confidence, types.ProvenanceAccessory, confident(item.Confidence, th.Accessory)))
	}
	if hasCharacter(in) {
		detailed := isDetailed(in, th)
		for _, name := range sizeAccessories {
			out = append(out, layer(name, sizeAccessoryConfidence, types.ProvenanceSize, detailed))
		}
	}
	return out
}

// resolveStyle picks the detector's style, then the client report, then filename hints
func resolveStyle(in Input) (types.Style, float64) {
	if s := in.Detection.Style.Style; s != types.StyleUnknown && s != "" {
		return s, in.Detection.Style.Confidence
	}
	if s := in.Analysis.Style(); s != types.StyleUnknown {
		return s, clientStyleConfidence
	}
	if !in.Detection.UsedLiveDetection {
		for _, hint := range in.Props.NameHints {
			if s := types.ParseStyle(hint); s != types.StyleUnknown {
				return s, nameHintConfidence
			}
		}
	}
	return types.StyleUnknown, 0
}

func styleRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	if !hasCharacter(in) {
		return nil
	}
	style, conf := resolveStyle(in)
	ok := confident(conf, th.Style)
	p := types.ProvenanceStyle
	switch style {
	case types.StyleAnime:
		return []types.Layer{
			layer("anime_eyes", conf, p, ok),
			layer("blush", conf, p, ok),
		}
	case types.StyleRealistic:
		return []types.Layer{
			layer("skin_texture", conf, p, ok),
			layer("shadows", conf, p, ok),
			layer("highlights", conf, p, ok),
		}
	}
	return nil
}

func animalLayers(kind string, conf float64, p types.Provenance, ok bool) []types.Layer {
	out := []types.Layer{layer(kind+"_features", conf, p, ok)}
	if kind == "cat" {
		out = append(out,
			layer("cat_ears", conf*0.95, p, ok),
			layer("whiskers", conf*0.9, p, ok),
			layer("cat_tail", conf*0.9, p, ok),
		)
	}
	return out
}

func animalRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	var out []types.Layer
	animals := in.Detection.ObjectsOf(types.CategoryAnimals)
	for _, a := range animals {
		out = append(out, animalLayers(a.Type, a.Confidence, types.ProvenanceAnimal, confident(a.Confidence, th.Animal))...)
	}
	if len(animals) > 0 || in.Detection.UsedLiveDetection {
		return out
	}
	// without a live detector the filename is the only animal signal
	for _, hint := range in.Props.NameHints {
		if animalWords[hint] {
			out = append(out, animalLayers(hint, nameHintConfidence, types.ProvenanceFallback, true)...)
		}
	}
	return out
}

func noFaceFallbackRule(in Input, th Thresholds, kept []types.Layer) []types.Layer {
	if hasFace(in) || signalFired(kept) {
		return nil
	}
	out := []types.Layer{
		layer("main_object", mainObjectConfidence, types.ProvenanceFallback, true),
		layer("object_details", objectDetailsConfidence, types.ProvenanceFallback, true),
	}
	circular, triangular := in.Analysis.Shapes()
	out = append(out, layer("circular_parts", shapePartConfidence, types.ProvenanceStyle, circular > 0))
	out = append(out, layer("angular_parts", shapePartConfidence, types.ProvenanceStyle, triangular > 0))
	cc, ok := in.Analysis.ColorComplexity()
	out = append(out, layer("color_regions", colorRegionConfidence, types.ProvenanceStyle, ok && cc >= th.ColorRegions))
	return out
}

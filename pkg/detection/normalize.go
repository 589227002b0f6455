package detection

import (
	"bytes"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/menta2k/autorig/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Defaults substituted for fields a detector leaves out
const (
	DefaultEyeCount         = 2
	DefaultMouthCount       = 1
	DefaultFaceConfidence   = 0.85
	DefaultObjectConfidence = 0.5
	DefaultStyleConfidence  = 0.5
	DefaultSourceConfidence = 0.8
	maxNormalizeUnwrapDepth = 2
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// category inference for flat detection lists that carry no category
var categoryWords = map[string]types.Category{
	"person": types.CategoryPeople, "people": types.CategoryPeople, "human": types.CategoryPeople,
	"man": types.CategoryPeople, "woman": types.CategoryPeople, "boy": types.CategoryPeople,
	"girl": types.CategoryPeople, "child": types.CategoryPeople, "character": types.CategoryPeople,

	"shirt": types.CategoryClothing, "t-shirt": types.CategoryClothing, "jacket": types.CategoryClothing,
	"coat": types.CategoryClothing, "dress": types.CategoryClothing, "skirt": types.CategoryClothing,
	"pants": types.CategoryClothing, "jeans": types.CategoryClothing, "shorts": types.CategoryClothing,
	"shoes": types.CategoryClothing, "boots": types.CategoryClothing, "hat": types.CategoryClothing,
	"hoodie": types.CategoryClothing, "sweater": types.CategoryClothing, "tie": types.CategoryClothing,

	"glasses": types.CategoryAccessories, "sunglasses": types.CategoryAccessories, "earrings": types.CategoryAccessories,
	"necklace": types.CategoryAccessories, "watch": types.CategoryAccessories, "bracelet": types.CategoryAccessories,
	"ring": types.CategoryAccessories, "bag": types.CategoryAccessories, "handbag": types.CategoryAccessories,
	"backpack": types.CategoryAccessories, "scarf": types.CategoryAccessories, "umbrella": types.CategoryAccessories,

	"cat": types.CategoryAnimals, "dog": types.CategoryAnimals, "bird": types.CategoryAnimals,
	"horse": types.CategoryAnimals, "rabbit": types.CategoryAnimals, "fox": types.CategoryAnimals,
	"bear": types.CategoryAnimals, "sheep": types.CategoryAnimals, "cow": types.CategoryAnimals,
	"mouse": types.CategoryAnimals, "fish": types.CategoryAnimals, "animal": types.CategoryAnimals,
}

// Normalize turns whatever a detector returned into a DetectionResult.
// Missing fields get documented defaults; only an undecodable payload fails.
func Normalize(payload []byte) (*types.DetectionResult, error) {
	return normalize(payload, 0)
}

func normalize(payload []byte, depth int) (*types.DetectionResult, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, malformedError("empty payload")
	}

	// some providers wrap the model text in a JSON string
	if trimmed[0] == '"' && depth < maxNormalizeUnwrapDepth {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil {
			return normalize([]byte(inner), depth+1)
		}
	}

	var doc map[string]interface{}
	if trimmed[0] == '[' {
		var list []interface{}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, malformedError("decode detection list: %v", err)
		}
		doc = map[string]interface{}{"objects": list}
	} else {
		raw := sanitizeModelJSON(string(trimmed))
		if !strings.HasPrefix(raw, "{") {
			return nil, malformedError("no JSON object in response")
		}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, malformedError("decode detection payload: %v", err)
		}
	}

	result := &types.DetectionResult{
		Objects:           map[types.Category][]types.ObjectDetection{},
		UsedLiveDetection: true,
	}

	features := objectField(doc, "facialFeatures", "facial_features", "face")
	faceCount, hasCount := intField(doc, "faceCount", "face_count", "faces")
	if !hasCount {
		if faces, ok := doc["faces"].([]interface{}); ok {
			faceCount, hasCount = len(faces), true
		}
	}
	if !hasCount {
		if hasFace, ok := features["hasFace"].(bool); ok && hasFace {
			faceCount = 1
		}
	}
	result.FaceCount = faceCount

	result.FacialFeatures.HasFace = faceCount > 0
	if eyes, ok := intField(features, "eyeCount", "eye_count", "eyes"); ok {
		result.FacialFeatures.EyeCount = eyes
	} else {
		result.FacialFeatures.EyeCount = DefaultEyeCount
	}
	if mouth, ok := intField(features, "mouthCount", "mouth_count", "mouth"); ok {
		result.FacialFeatures.MouthCount = mouth
	} else {
		result.FacialFeatures.MouthCount = DefaultMouthCount
	}
	if conf, ok := floatField(features, "confidence", "score"); ok {
		result.FacialFeatures.Confidence = conf
	} else {
		result.FacialFeatures.Confidence = DefaultFaceConfidence
	}

	collectObjects(result, doc["objects"])
	for _, c := range types.Categories {
		// categories at the top level are accepted too
		if list, ok := doc[string(c)].([]interface{}); ok {
			appendEntries(result, c, list)
		}
	}

	result.Style = parseStyle(doc)

	if conf, ok := floatField(doc, "confidence", "sourceConfidence", "source_confidence"); ok {
		result.SourceConfidence = conf
	} else {
		result.SourceConfidence = DefaultSourceConfidence
	}

	result.Sanitize()
	return result, nil
}

func collectObjects(result *types.DetectionResult, v interface{}) {
	switch objs := v.(type) {
	case map[string]interface{}:
		for key, entries := range objs {
			list, ok := entries.([]interface{})
			if !ok {
				continue
			}
			appendEntries(result, types.Category(strings.ToLower(strings.TrimSpace(key))), list)
		}
	case []interface{}:
		appendEntries(result, "", objs)
	}
}

func appendEntries(result *types.DetectionResult, category types.Category, list []interface{}) {
	for _, item := range list {
		det, cat, ok := parseEntry(item)
		if !ok {
			continue
		}
		if category != "" {
			cat = category
		}
		if cat == "" {
			cat = categoryWords[det.Type]
		}
		if !knownCategory(cat) {
			continue
		}
		result.Objects[cat] = append(result.Objects[cat], det)
	}
}

func parseEntry(item interface{}) (types.ObjectDetection, types.Category, bool) {
	switch e := item.(type) {
	case string:
		t := normalizeType(e)
		if t == "" {
			return types.ObjectDetection{}, "", false
		}
		return types.ObjectDetection{Type: t, Confidence: DefaultObjectConfidence}, "", true
	case map[string]interface{}:
		t := normalizeType(stringField(e, "type", "label", "name", "class"))
		if t == "" {
			return types.ObjectDetection{}, "", false
		}
		conf, ok := floatField(e, "confidence", "score", "probability")
		if !ok {
			conf = DefaultObjectConfidence
		}
		cat := types.Category(strings.ToLower(stringField(e, "category")))
		return types.ObjectDetection{Type: t, Confidence: conf}, cat, true
	}
	return types.ObjectDetection{}, "", false
}

func parseStyle(doc map[string]interface{}) types.StyleClassification {
	for _, key := range []string{"styleClassification", "style_classification", "style"} {
		switch s := doc[key].(type) {
		case string:
			style := types.ParseStyle(s)
			return types.StyleClassification{Style: style, Confidence: defaultStyleConfidence(style)}
		case map[string]interface{}:
			style := types.ParseStyle(stringField(s, "style", "label", "name"))
			conf, ok := floatField(s, "confidence", "score")
			if !ok {
				conf = defaultStyleConfidence(style)
			}
			return types.StyleClassification{Style: style, Confidence: conf}
		}
	}
	return types.StyleClassification{Style: types.StyleUnknown}
}

func defaultStyleConfidence(s types.Style) float64 {
	if s == types.StyleUnknown {
		return 0
	}
	return DefaultStyleConfidence
}

func knownCategory(c types.Category) bool {
	for _, known := range types.Categories {
		if c == known {
			return true
		}
	}
	return false
}

func normalizeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

func objectField(m map[string]interface{}, keys ...string) map[string]interface{} {
	for _, k := range keys {
		if v, ok := m[k].(map[string]interface{}); ok {
			return v
		}
	}
	return map[string]interface{}{}
}

func floatField(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// upper bound for any count a model reports
const maxCount = 1000

func intField(m map[string]interface{}, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			switch {
			case v < 0:
				return 0, true
			case v > maxCount:
				return maxCount, true
			}
			return int(v), true
		case bool:
			// "mouth": true style answers
			if v {
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			return v
		}
	}
	return ""
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from a model response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

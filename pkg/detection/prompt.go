package detection

import "github.com/menta2k/autorig/pkg/types"

// DefaultPrompt asks a vision model for every detection aspect at once
const DefaultPrompt = `You are an image analyst preparing a picture for 2D character rigging.

Return JSON only:
{
  "faceCount": 0,
  "facialFeatures": {"hasFace": false, "eyeCount": 0, "mouthCount": 0, "confidence": 0.0},
  "objects": {
    "people":      [{"type": "person", "confidence": 0.0}],
    "clothing":    [{"type": "hat", "confidence": 0.0}],
    "accessories": [{"type": "glasses", "confidence": 0.0}],
    "animals":     [{"type": "cat", "confidence": 0.0}]
  },
  "styleClassification": {"style": "anime|realistic|unknown", "confidence": 0.0},
  "confidence": 0.0
}

HARD RULES
- faceCount counts visible faces of people or characters. Animals are reported under objects.animals only.
- Confidences are in [0,1].
- Types are lowercase single words (e.g. "shirt", "earrings", "dog").
- Omit a category or use [] when nothing of that kind is visible.
- style is "anime" for drawn, cartoon or manga art, "realistic" for photos and realistic paintings, else "unknown".
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// FacePrompt restricts the model to face landmarks
const FacePrompt = `Count the faces in this image and their landmarks.

Return JSON only:
{"faceCount": 0, "facialFeatures": {"hasFace": false, "eyeCount": 0, "mouthCount": 0, "confidence": 0.0}, "confidence": 0.0}

- eyeCount and mouthCount describe the most prominent face.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ObjectPrompt restricts the model to object detections
const ObjectPrompt = `List the people, clothing items, accessories and animals visible in this image.

Return JSON only:
{"objects": {"people": [], "clothing": [], "accessories": [], "animals": []}, "confidence": 0.0}

- Every entry is {"type": "lowercase word", "confidence": 0.0}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// StylePrompt restricts the model to art-style classification
const StylePrompt = `Classify the art style of this image.

Return JSON only:
{"styleClassification": {"style": "anime|realistic|unknown", "confidence": 0.0}, "confidence": 0.0}

- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// PromptFor returns the prompt a single-aspect detector should use
func PromptFor(aspect types.Aspect) string {
	switch aspect {
	case types.AspectFace:
		return FacePrompt
	case types.AspectObject:
		return ObjectPrompt
	case types.AspectStyle:
		return StylePrompt
	}
	return DefaultPrompt
}

package detection

import (
	"testing"

	"github.com/menta2k/autorig/pkg/types"
)

func TestNormalizeFullPayload(t *testing.T) {
	payload := `{
		"faceCount": 1,
		"facialFeatures": {"hasFace": true, "eyeCount": 2, "mouthCount": 1, "confidence": 0.93},
		"objects": {
			"people": [{"type": "Person", "confidence": 0.97}],
			"accessories": [{"type": "glasses", "confidence": 0.7}]
		},
		"styleClassification": {"style": "anime", "confidence": 0.88},
		"confidence": 0.9
	}`

	result, err := Normalize([]byte(payload))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if result.FacialFeatures.Confidence != 0.93 {
		t.Errorf("Expected face confidence 0.93, got %f", result.FacialFeatures.Confidence)
	}
	people := result.ObjectsOf(types.CategoryPeople)
	if len(people) != 1 || people[0].Type != "person" {
		t.Errorf("Expected one lowercased person, got %+v", people)
	}
	if len(result.ObjectsOf(types.CategoryAccessories)) != 1 {
		t.Errorf("Expected one accessory, got %+v", result.Objects)
	}
	if result.Style.Style != types.StyleAnime || result.Style.Confidence != 0.88 {
		t.Errorf("Unexpected style %+v", result.Style)
	}
	if result.SourceConfidence != 0.9 {
		t.Errorf("Expected source confidence 0.9, got %f", result.SourceConfidence)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	result, err := Normalize([]byte(`{"faceCount": 2}`))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if result.FacialFeatures.EyeCount != DefaultEyeCount {
		t.Errorf("Expected default eyes %d, got %d", DefaultEyeCount, result.FacialFeatures.EyeCount)
	}
	if result.FacialFeatures.MouthCount != DefaultMouthCount {
		t.Errorf("Expected default mouth %d, got %d", DefaultMouthCount, result.FacialFeatures.MouthCount)
	}
	if result.FacialFeatures.Confidence != DefaultFaceConfidence {
		t.Errorf("Expected default face confidence, got %f", result.FacialFeatures.Confidence)
	}
	if result.Style.Style != types.StyleUnknown {
		t.Errorf("Expected unknown style, got %s", result.Style.Style)
	}
	if result.SourceConfidence != DefaultSourceConfidence {
		t.Errorf("Expected default source confidence, got %f", result.SourceConfidence)
	}
}

func TestNormalizeFaceInvariant(t *testing.T) {
	result, err := Normalize([]byte(`{"faceCount": 0, "facialFeatures": {"hasFace": true}}`))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if result.FacialFeatures.HasFace {
		t.Error("faceCount 0 must imply hasFace false")
	}

	result, err = Normalize([]byte(`{"facialFeatures": {"hasFace": true}}`))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if result.FaceCount != 1 || !result.FacialFeatures.HasFace {
		t.Errorf("Expected hasFace without a count to imply one face, got %+v", result)
	}
}

func TestNormalizeHugeCounts(t *testing.T) {
	result, err := Normalize([]byte(`{"faceCount": 1e30, "facialFeatures": {"hasFace": true, "eyeCount": 1e300, "mouthCount": 2}}`))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if result.FaceCount != maxCount || !result.FacialFeatures.HasFace {
		t.Errorf("Expected an absurd face count to clamp to %d, got %+v", maxCount, result)
	}
	if result.FacialFeatures.EyeCount != maxCount {
		t.Errorf("Expected eye count %d, got %d", maxCount, result.FacialFeatures.EyeCount)
	}
}

func TestNormalizeTolerantShapes(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		faces     int
		category  types.Category
		wantTypes []string
		style     types.Style
	}{
		{
			name:      "code fence and trailing comma",
			payload:   "```json\n{\"faceCount\": 1, \"objects\": {\"animals\": [{\"type\": \"cat\", \"confidence\": 0.9},]},}\n```",
			faces:     1,
			category:  types.CategoryAnimals,
			wantTypes: []string{"cat"},
			style:     types.StyleUnknown,
		},
		{
			name:      "flat list with labels",
			payload:   `[{"label": "dog", "score": 0.8}, {"label": "wheel", "score": 0.9}]`,
			faces:     0,
			category:  types.CategoryAnimals,
			wantTypes: []string{"dog"},
			style:     types.StyleUnknown,
		},
		{
			name:      "string wrapped output",
			payload:   `"{\"faces\": [{}, {}], \"style\": \"photo\"}"`,
			faces:     2,
			category:  types.CategoryClothing,
			wantTypes: nil,
			style:     types.StyleRealistic,
		},
		{
			name:      "plain string entries and top level category",
			payload:   `{"clothing": ["Hat", "blue jeans"], "style": {"label": "cartoon"}}`,
			faces:     0,
			category:  types.CategoryClothing,
			wantTypes: []string{"hat", "blue_jeans"},
			style:     types.StyleAnime,
		},
		{
			name:      "comments",
			payload:   "{\n// model note\n\"faceCount\": 1 /* one */\n}",
			faces:     1,
			category:  types.CategoryPeople,
			wantTypes: nil,
			style:     types.StyleUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if result.FaceCount != tt.faces {
				t.Errorf("Expected %d faces, got %d", tt.faces, result.FaceCount)
			}
			got := result.ObjectsOf(tt.category)
			if len(got) != len(tt.wantTypes) {
				t.Fatalf("Expected %v, got %+v", tt.wantTypes, got)
			}
			for i, want := range tt.wantTypes {
				if got[i].Type != want {
					t.Errorf("Expected type %q at %d, got %q", want, i, got[i].Type)
				}
			}
			if result.Style.Style != tt.style {
				t.Errorf("Expected style %s, got %s", tt.style, result.Style.Style)
			}
		})
	}
}

func TestNormalizeClampsConfidence(t *testing.T) {
	result, err := Normalize([]byte(`{"faceCount": 1, "facialFeatures": {"confidence": 3}, "confidence": -1}`))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if result.FacialFeatures.Confidence != 1 {
		t.Errorf("Expected clamped 1, got %f", result.FacialFeatures.Confidence)
	}
	if result.SourceConfidence != 0 {
		t.Errorf("Expected clamped 0, got %f", result.SourceConfidence)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	for _, payload := range []string{"", "   ", "no json here", "{not json}", "[1, 2"} {
		_, err := Normalize([]byte(payload))
		de, ok := AsDetectionError(err)
		if !ok || de.Reason != ReasonMalformedResponse {
			t.Errorf("payload %q: expected malformed_response, got %v", payload, err)
		}
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	in := "Sure! ```\n{\"a\": [1, 2,], /* x */ \"b\": 1,}\n```"
	got := sanitizeModelJSON(in)
	want := `{"a": [1, 2],  "b": 1}`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

package rig

import (
	"testing"

	"github.com/menta2k/autorig/pkg/segmentation"
	"github.com/menta2k/autorig/pkg/types"
)

func layersNamed(p types.Provenance, names ...string) []types.Layer {
	out := make([]types.Layer, len(names))
	for i, n := range names {
		out[i] = types.Layer{Name: n, Confidence: 0.8, Provenance: p, Detected: true}
	}
	return out
}

func background() types.Layer {
	return types.Layer{Name: "background", Confidence: 0.95, Provenance: types.ProvenanceAlways, Detected: true}
}

func checkTree(t *testing.T, m types.RiggedModel) {
	t.Helper()
	if len(m.Bones) == 0 || m.Bones[0].Name != "root" || m.Bones[0].Parent != "" {
		t.Fatalf("Expected root first, got %+v", m.Bones)
	}
	defined := map[string]bool{}
	for i, b := range m.Bones {
		if i > 0 && !defined[b.Parent] {
			t.Errorf("Bone %q references parent %q before it is defined", b.Name, b.Parent)
		}
		if i > 0 && b.Parent == "" {
			t.Errorf("Only root may have no parent, got %q", b.Name)
		}
		if defined[b.Name] {
			t.Errorf("Duplicate bone %q", b.Name)
		}
		if b.Position[2] != 0 {
			t.Errorf("Bone %q has z=%f", b.Name, b.Position[2])
		}
		defined[b.Name] = true
	}
	seen := map[string]bool{}
	for _, a := range m.Animations {
		if seen[a] {
			t.Errorf("Duplicate animation %q", a)
		}
		seen[a] = true
	}
}

func requireBones(t *testing.T, m types.RiggedModel, parents map[string]string) {
	t.Helper()
	for name, parent := range parents {
		b, ok := m.Bone(name)
		if !ok {
			t.Errorf("Expected bone %q", name)
			continue
		}
		if b.Parent != parent {
			t.Errorf("Expected %q parent %q, got %q", name, parent, b.Parent)
		}
	}
}

func requireAnimations(t *testing.T, m types.RiggedModel, names ...string) {
	t.Helper()
	for _, n := range names {
		if !m.HasAnimation(n) {
			t.Errorf("Expected animation %q in %v", n, m.Animations)
		}
	}
}

func TestEmptyLayers(t *testing.T) {
	m := New().Generate(nil)
	checkTree(t, m)
	if len(m.Bones) != 1 {
		t.Errorf("Expected only root, got %d bones", len(m.Bones))
	}
	if m.RigType != types.RigUnknown || m.Quality != types.QualityBasic {
		t.Errorf("Unexpected classification %s/%s", m.RigType, m.Quality)
	}
}

func TestObjectRig(t *testing.T) {
	layers := append([]types.Layer{background()}, layersNamed(types.ProvenanceFallback, "main_object", "object_details")...)
	m := New().Generate(layers)
	checkTree(t, m)

	if m.RigType != types.RigObject {
		t.Errorf("Expected object rig, got %s", m.RigType)
	}
	requireBones(t, m, map[string]string{
		"main_body":    "root",
		"core":         "main_body",
		"detail_1":     "core",
		"detail_3":     "core",
		"accent_right": "main_body",
	})
	requireAnimations(t, m, "idle", "bounce", "wobble")
}

func TestMascotAndGeneric(t *testing.T) {
	mascot := New().Generate(append([]types.Layer{background()}, layersNamed(types.ProvenanceStyle, "circular_parts")...))
	if mascot.RigType != types.RigMascot {
		t.Errorf("Expected mascot, got %s", mascot.RigType)
	}

	generic := New().Generate([]types.Layer{background()})
	checkTree(t, generic)
	if generic.RigType != types.RigGeneric {
		t.Errorf("Expected generic, got %s", generic.RigType)
	}
}

func TestCharacterRig(t *testing.T) {
	det := types.DetectionResult{
		FaceCount:      1,
		FacialFeatures: types.FacialFeatures{HasFace: true, EyeCount: 2, MouthCount: 1, Confidence: 0.9},
		Style:          types.StyleClassification{Style: types.StyleRealistic, Confidence: 0.8},
	}
	layers := segmentation.New().Segment(det, types.ImageProperties{ByteSize: 600 * 1024, IsLarge: true}, nil)

	m := New().Generate(layers)
	checkTree(t, m)
	if m.RigType != types.RigCharacter {
		t.Errorf("Expected character, got %s", m.RigType)
	}
	if m.Quality != types.QualityHigh && m.Quality != types.QualityProfessional {
		t.Errorf("Expected high quality or better for %d layers, got %s", len(layers), m.Quality)
	}
	requireBones(t, m, map[string]string{
		"spine":          "root",
		"neck":           "spine",
		"head":           "neck",
		"mouth":          "head",
		"hair_back":      "head",
		"shoulders":      "spine",
		"left_upper_arm": "shoulders",
		"left_hand":      "left_lower_arm",
		"hips":           "root",
		"right_foot":     "right_lower_leg",
	})
	requireAnimations(t, m, "blink", "smile", "head_turn", "nod", "talk", "hair_sway", "wave", "reach", "walk", "run", "jump")
	if m.HasAnimation("idle") {
		t.Error("Character rigs do not get the generic animations")
	}
}

func TestArmsWithoutFace(t *testing.T) {
	m := New().Generate(layersNamed(types.ProvenanceObject, "left_arm"))
	checkTree(t, m)
	requireBones(t, m, map[string]string{"spine": "root", "shoulders": "spine", "left_upper_arm": "shoulders"})
	if _, ok := m.Bone("right_upper_arm"); ok {
		t.Error("Right arm bones without a right arm layer")
	}
}

func TestHybridCatRig(t *testing.T) {
	det := types.DetectionResult{
		FaceCount:      1,
		FacialFeatures: types.FacialFeatures{HasFace: true, EyeCount: 2, MouthCount: 1, Confidence: 0.9},
		Objects: map[types.Category][]types.ObjectDetection{
			types.CategoryAnimals: {{Type: "cat", Confidence: 0.9}},
		},
	}
	layers := segmentation.New().Segment(det, types.ImageProperties{ByteSize: 200 * 1024}, nil)

	m := New().Generate(layers)
	checkTree(t, m)
	if m.RigType != types.RigHybrid {
		t.Errorf("Expected hybrid, got %s", m.RigType)
	}
	requireBones(t, m, map[string]string{
		"cat_body":  "root",
		"cat_head":  "cat_body",
		"left_ear":  "cat_head",
		"whiskers":  "cat_head",
		"tail_base": "cat_body",
		"tail_tip":  "tail_base",
	})
	requireAnimations(t, m, "animal_idle", "ear_twitch", "tail_swish", "purr")
}

func TestSeveralAnimals(t *testing.T) {
	layers := append([]types.Layer{background()}, layersNamed(types.ProvenanceAnimal, "dog_features", "cat_features", "cat_ears")...)
	m := New().Generate(layers)
	checkTree(t, m)

	if m.RigType != types.RigAnimal {
		t.Errorf("Expected animal, got %s", m.RigType)
	}
	requireBones(t, m, map[string]string{"dog_head": "dog_body", "left_ear": "cat_head"})
	dog, _ := m.Bone("dog_body")
	cat, _ := m.Bone("cat_body")
	if dog.Position == cat.Position {
		t.Error("Animal bodies should not overlap")
	}
	if m.HasAnimation("tail_swish") {
		t.Error("No tail layer, no tail_swish")
	}
}

func TestNonAnimalFeaturesIgnored(t *testing.T) {
	m := New().Generate(layersNamed(types.ProvenanceObject, "robot_features"))
	if _, ok := m.Bone("robot_body"); ok {
		t.Error("Only animal or fallback provenance creates animal bones")
	}
	if m.RigType != types.RigObject {
		t.Errorf("Expected object, got %s", m.RigType)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	layers := append([]types.Layer{background()}, layersNamed(types.ProvenanceFace, "face_base", "left_eye", "custom_part")...)
	a := New().Generate(layers)
	b := New().Generate(layers)
	if len(a.Bones) != len(b.Bones) {
		t.Fatalf("Bone count differs: %d vs %d", len(a.Bones), len(b.Bones))
	}
	for i := range a.Bones {
		if a.Bones[i] != b.Bones[i] {
			t.Errorf("Bone %d differs: %+v vs %+v", i, a.Bones[i], b.Bones[i])
		}
	}
}

func TestUnplacedBonesFollowParent(t *testing.T) {
	tpl := DefaultTemplate()
	delete(tpl, "nose")
	m := New(WithTemplate(tpl)).Generate(layersNamed(types.ProvenanceFace, "nose"))

	head, _ := m.Bone("head")
	nose, _ := m.Bone("nose")
	want := [3]float64{head.Position[0] + UnplacedOffset[0], head.Position[1] + UnplacedOffset[1], 0}
	if nose.Position != want {
		t.Errorf("Expected %v, got %v", want, nose.Position)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		n          int
		quality    types.Quality
		complexity types.Complexity
	}{
		{0, types.QualityBasic, types.ComplexityLow},
		{4, types.QualityBasic, types.ComplexityLow},
		{5, types.QualityStandard, types.ComplexityLow},
		{8, types.QualityStandard, types.ComplexityLow},
		{9, types.QualityMedium, types.ComplexityMedium},
		{11, types.QualityMedium, types.ComplexityMedium},
		{12, types.QualityHigh, types.ComplexityHigh},
		{15, types.QualityHigh, types.ComplexityHigh},
		{16, types.QualityProfessional, types.ComplexityHigh},
		{40, types.QualityProfessional, types.ComplexityHigh},
	}
	for _, tt := range tests {
		q, c := Classify(tt.n)
		if q != tt.quality || c != tt.complexity {
			t.Errorf("Classify(%d) = %s/%s, want %s/%s", tt.n, q, c, tt.quality, tt.complexity)
		}
	}
}

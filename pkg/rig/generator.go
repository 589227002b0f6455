// Package rig derives a skeletal rig and animation set from a layer list.
package rig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/menta2k/autorig/pkg/types"
)

// Generator evaluates the rig rule table
type Generator struct {
	template Template
	rules    []rule
}

// Option configures a Generator
type Option func(*Generator)

// WithTemplate replaces the rest-pose template
func WithTemplate(t Template) Option {
	return func(g *Generator) {
		if t != nil {
			g.template = t
		}
	}
}

// New creates a Generator over the default rule table and template
func New(opts ...Option) *Generator {
	g := &Generator{
		template: DefaultTemplate(),
		rules:    rules,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the rigged model for a layer list. Bones are returned
// root first and every parent precedes its children.
func (g *Generator) Generate(layers []types.Layer) types.RiggedModel {
	set := newLayerSet(layers)
	b := newBuilder(g.template)
	b.add("root", "")

	var f families
	for _, r := range g.rules {
		if r.apply(b, set, &f) {
			f.mark(r.family)
		}
	}

	quality, complexity := Classify(len(layers))
	return types.RiggedModel{
		Bones:      b.bones,
		Animations: b.animations,
		Quality:    quality,
		Complexity: complexity,
		RigType:    rigType(set, f),
	}
}

type family int

const (
	familyFacial family = iota
	familyBody
	familyAnimal
	familyGeneric
)

type families struct {
	facial, body, animal, generic bool
}

func (f *families) mark(fam family) {
	switch fam {
	case familyFacial:
		f.facial = true
	case familyBody:
		f.body = true
	case familyAnimal:
		f.animal = true
	case familyGeneric:
		f.generic = true
	}
}

// rule is one step of the rig table. apply adds bones and animations to the
// builder and reports whether the rule fired.
type rule struct {
	name   string
	family family
	apply  func(b *builder, layers layerSet, fired *families) bool
}

// rules is the rig table in evaluation order
var rules = []rule{
	{name: "facial", family: familyFacial, apply: facialRule},
	{name: "arms", family: familyBody, apply: armsRule},
	{name: "legs", family: familyBody, apply: legsRule},
	{name: "animal", family: familyAnimal, apply: animalRule},
	{name: "generic", family: familyGeneric, apply: genericRule},
}

type layerSet struct {
	order  []types.Layer
	byName map[string]types.Layer
}

func newLayerSet(layers []types.Layer) layerSet {
	s := layerSet{order: layers, byName: make(map[string]types.Layer, len(layers))}
	for _, l := range layers {
		if _, ok := s.byName[l.Name]; !ok {
			s.byName[l.Name] = l
		}
	}
	return s
}

func (s layerSet) has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

func (s layerSet) any(names ...string) bool {
	for _, n := range names {
		if s.has(n) {
			return true
		}
	}
	return false
}

func (s layerSet) onlyBackground() bool {
	return len(s.order) > 0 && len(s.byName) == 1 && s.has("background")
}

// animalTypes returns the animal kinds in layer order
func (s layerSet) animalTypes() []string {
	var kinds []string
	seen := map[string]bool{}
	for _, l := range s.order {
		if !strings.HasSuffix(l.Name, "_features") {
			continue
		}
		if l.Provenance != types.ProvenanceAnimal && l.Provenance != types.ProvenanceFallback {
			continue
		}
		kind := strings.TrimSuffix(l.Name, "_features")
		if kind != "" && !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) == 0 && s.any(catLayers...) {
		kinds = append(kinds, "cat")
	}
	return kinds
}

type builder struct {
	template   Template
	bones      []types.Bone
	index      map[string]int
	animations []string
	animSeen   map[string]bool
}

func newBuilder(t Template) *builder {
	return &builder{template: t, index: map[string]int{}, animSeen: map[string]bool{}}
}

func (b *builder) has(name string) bool {
	_, ok := b.index[name]
	return ok
}

// add appends a bone unless it already exists. The parent must already be present.
func (b *builder) add(name, parent string) {
	b.addShifted(name, parent, 0)
}

func (b *builder) addShifted(name, parent string, dx float64) {
	if b.has(name) {
		return
	}
	var parentPos [3]float64
	if parent != "" {
		i, ok := b.index[parent]
		if !ok {
			panic(fmt.Sprintf("rig: parent %q of bone %q is not defined", parent, name))
		}
		parentPos = b.bones[i].Position
	}
	pos := b.template.position(name, parentPos, parent != "")
	pos[0] += dx
	pos[2] = 0
	b.index[name] = len(b.bones)
	b.bones = append(b.bones, types.Bone{Name: name, Position: pos, Parent: parent})
}

func (b *builder) animate(names ...string) {
	for _, n := range names {
		if !b.animSeen[n] {
			b.animSeen[n] = true
			b.animations = append(b.animations, n)
		}
	}
}

var (
	facialLayers = []string{"face_base", "left_eye", "right_eye", "nose", "mouth", "hair_front", "hair_back", "anime_eyes", "blush"}
	hairLayers   = []string{"hair_front", "hair_back"}
	catLayers    = []string{"cat_ears", "whiskers", "cat_tail"}
)

func (b *builder) ensureSpine() {
	b.add("spine", "root")
}

func facialRule(b *builder, s layerSet, _ *families) bool {
	if !s.any(facialLayers...) {
		return false
	}
	b.ensureSpine()
	b.add("neck", "spine")
	b.add("head", "neck")
	for _, name := range facialLayers {
		if s.has(name) {
			b.add(name, "head")
		}
	}
	b.animate("blink", "smile", "head_turn", "nod")
	if s.has("mouth") {
		b.animate("talk")
	}
	if s.any(hairLayers...) {
		b.animate("hair_sway")
	}
	return true
}

func armsRule(b *builder, s layerSet, _ *families) bool {
	if !s.any("left_arm", "right_arm") {
		return false
	}
	b.ensureSpine()
	b.add("shoulders", "spine")
	for _, side := range []string{"left", "right"} {
		if !s.has(side + "_arm") {
			continue
		}
		b.add(side+"_upper_arm", "shoulders")
		b.add(side+"_lower_arm", side+"_upper_arm")
		b.add(side+"_hand", side+"_lower_arm")
	}
	b.animate("wave", "reach")
	return true
}

func legsRule(b *builder, s layerSet, _ *families) bool {
	if !s.any("left_leg", "right_leg") {
		return false
	}
	b.add("hips", "root")
	for _, side := range []string{"left", "right"} {
		if !s.has(side + "_leg") {
			continue
		}
		b.add(side+"_upper_leg", "hips")
		b.add(side+"_lower_leg", side+"_upper_leg")
		b.add(side+"_foot", side+"_lower_leg")
	}
	b.animate("walk", "run", "jump")
	return true
}

func animalRule(b *builder, s layerSet, _ *families) bool {
	kinds := s.animalTypes()
	if len(kinds) == 0 {
		return false
	}
	for i, kind := range kinds {
		dx := float64(i) * animalSpacing
		b.addShifted(kind+"_body", "root", dx)
		b.addShifted(kind+"_head", kind+"_body", dx)
	}
	b.animate("animal_idle")

	// cat parts attach to the cat when there is one, otherwise to the first animal
	anchor := kinds[0]
	for _, kind := range kinds {
		if kind == "cat" {
			anchor = kind
			break
		}
	}
	if s.has("cat_ears") {
		b.add("left_ear", anchor+"_head")
		b.add("right_ear", anchor+"_head")
		b.animate("ear_twitch")
	}
	if s.has("whiskers") {
		b.add("whiskers", anchor+"_head")
	}
	if s.has("cat_tail") {
		b.add("tail_base", anchor+"_body")
		b.add("tail_tip", "tail_base")
		b.animate("tail_swish")
	}
	if anchor == "cat" {
		b.animate("purr")
	}
	return true
}

func genericRule(b *builder, s layerSet, fired *families) bool {
	if len(s.order) == 0 || fired.facial || fired.body || fired.animal {
		return false
	}
	b.add("main_body", "root")
	b.add("core", "main_body")
	for i := 1; i <= 3; i++ {
		b.add(fmt.Sprintf("detail_%d", i), "core")
	}
	b.add("accent_left", "main_body")
	b.add("accent_right", "main_body")
	b.animate("idle", "bounce", "wobble")
	return true
}

func rigType(s layerSet, f families) types.RigType {
	switch {
	case len(s.order) == 0:
		return types.RigUnknown
	case (f.facial || f.body) && f.animal:
		return types.RigHybrid
	case f.facial || f.body:
		return types.RigCharacter
	case f.animal:
		return types.RigAnimal
	case s.has("circular_parts"):
		return types.RigMascot
	case s.onlyBackground():
		return types.RigGeneric
	}
	return types.RigObject
}

// QualityTier is one row of the quality table
type QualityTier struct {
	MinLayers  int
	Quality    types.Quality
	Complexity types.Complexity
}

// QualityTable is ordered by descending minimum; the first row met wins
var QualityTable = []QualityTier{
	{16, types.QualityProfessional, types.ComplexityHigh},
	{12, types.QualityHigh, types.ComplexityHigh},
	{9, types.QualityMedium, types.ComplexityMedium},
	{5, types.QualityStandard, types.ComplexityLow},
	{0, types.QualityBasic, types.ComplexityLow},
}

// Classify maps a layer count to quality and complexity
func Classify(layerCount int) (types.Quality, types.Complexity) {
	i := sort.Search(len(QualityTable), func(i int) bool {
		return layerCount >= QualityTable[i].MinLayers
	})
	if i == len(QualityTable) {
		i = len(QualityTable) - 1
	}
	return QualityTable[i].Quality, QualityTable[i].Complexity
}

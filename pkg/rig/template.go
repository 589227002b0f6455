package rig

import (
	"strings"
)

// Template maps bone names to rest positions (x, y, z), y up
type Template map[string][3]float64

// UnplacedOffset is added to the parent position for bones missing from the template
var UnplacedOffset = [3]float64{0, 0.1, 0}

// DefaultTemplate is a front-facing humanoid about two units tall, with
// animal bones to the right of the figure and generic bones around the centre.
func DefaultTemplate() Template {
	return Template{
		"root": {0, 0, 0},

		"spine":      {0, 1.0, 0},
		"neck":       {0, 1.5, 0},
		"head":       {0, 1.7, 0},
		"face_base":  {0, 1.75, 0},
		"left_eye":   {-0.08, 1.8, 0},
		"right_eye":  {0.08, 1.8, 0},
		"anime_eyes": {0, 1.8, 0},
		"nose":       {0, 1.74, 0},
		"mouth":      {0, 1.64, 0},
		"blush":      {0, 1.7, 0},
		"hair_front": {0, 1.95, 0},
		"hair_back":  {0, 1.9, 0},

		"shoulders":       {0, 1.42, 0},
		"left_upper_arm":  {-0.25, 1.4, 0},
		"left_lower_arm":  {-0.5, 1.15, 0},
		"left_hand":       {-0.7, 0.92, 0},
		"right_upper_arm": {0.25, 1.4, 0},
		"right_lower_arm": {0.5, 1.15, 0},
		"right_hand":      {0.7, 0.92, 0},

		"hips":            {0, 0.95, 0},
		"left_upper_leg":  {-0.12, 0.88, 0},
		"left_lower_leg":  {-0.12, 0.48, 0},
		"left_foot":       {-0.12, 0.05, 0},
		"right_upper_leg": {0.12, 0.88, 0},
		"right_lower_leg": {0.12, 0.48, 0},
		"right_foot":      {0.12, 0.05, 0},

		"left_ear":  {1.45, 0.95, 0},
		"right_ear": {1.65, 0.95, 0},
		"whiskers":  {1.75, 0.72, 0},
		"tail_base": {0.55, 0.55, 0},
		"tail_tip":  {0.3, 0.85, 0},

		"main_body":    {0, 0.5, 0},
		"core":         {0, 0.6, 0},
		"detail_1":     {-0.2, 0.8, 0},
		"detail_2":     {0, 0.9, 0},
		"detail_3":     {0.2, 0.8, 0},
		"accent_left":  {-0.4, 0.5, 0},
		"accent_right": {0.4, 0.5, 0},
	}
}

// animal bodies and heads are named per type, so they are placed by suffix
var suffixPositions = map[string][3]float64{
	"_body": {1.1, 0.5, 0},
	"_head": {1.55, 0.8, 0},
}

// animalSpacing separates the bodies of several detected animals along x
const animalSpacing = 1.5

// position resolves a bone position. Bones not in the template are placed
// relative to their parent.
func (t Template) position(name string, parent [3]float64, hasParent bool) [3]float64 {
	if p, ok := t[name]; ok {
		return p
	}
	for suffix, p := range suffixPositions {
		if strings.HasSuffix(name, suffix) {
			return p
		}
	}
	if !hasParent {
		return [3]float64{}
	}
	return [3]float64{parent[0] + UnplacedOffset[0], parent[1] + UnplacedOffset[1], 0}
}

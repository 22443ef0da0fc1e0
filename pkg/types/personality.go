package types

import "fmt"

// PersonalityRole selects the allowed attribute set for a personality.
type PersonalityRole string

const (
	RolePerformer PersonalityRole = "performer"
	RoleDirector  PersonalityRole = "director"
)

// Attribute scores live on a fixed 0-10 scale.
const (
	attributeMin     = 0.0
	attributeMax     = 10.0
	attributeDefault = 5.0
)

// Reaction weights: performer profiles move slower than the director's own.
const (
	performerWeight = 0.7
	directorWeight  = 1.0
)

var commonAttributes = []string{
	"Creativity",
	"Complexity",
	"Energy",
	"Interaction",
	"Traditionality",
	"Rhythmic Freedom",
	"Tonal Preference",
	"Adaptability",
}

var roleAttributes = map[PersonalityRole][]string{
	RolePerformer: {"Musical Knowledge"},
	RoleDirector:  {"Prompt Length", "Focus on Interaction", "Abstractness"},
}

// Personality is a flat attribute map plus a free-text summary. The set of
// attribute names is fixed per role at construction; Set and Increment
// reject names outside that set.
type Personality struct {
	Role       PersonalityRole    `json:"role"`
	Summary    string             `json:"summary,omitempty"`
	Attributes map[string]float64 `json:"attributes"`
}

// NewPersonality builds a personality with every allowed attribute for the
// role at the default midpoint score.
func NewPersonality(role PersonalityRole) Personality {
	attrs := make(map[string]float64, len(commonAttributes)+len(roleAttributes[role]))
	for _, name := range commonAttributes {
		attrs[name] = attributeDefault
	}
	for _, name := range roleAttributes[role] {
		attrs[name] = attributeDefault
	}
	return Personality{Role: role, Attributes: attrs}
}

// Set assigns an attribute score, clamped to the 0-10 scale.
func (p *Personality) Set(name string, value float64) error {
	if _, ok := p.Attributes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	p.Attributes[name] = clamp(value)
	return nil
}

// Increment nudges an attribute by delta scaled by the role weight.
func (p *Personality) Increment(name string, delta float64) error {
	current, ok := p.Attributes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	p.Attributes[name] = clamp(current + delta*p.weight())
	return nil
}

func (p *Personality) weight() float64 {
	if p.Role == RoleDirector {
		return directorWeight
	}
	return performerWeight
}

// Describe renders the personality for generator context.
func (p Personality) Describe() string {
	summary := p.Summary
	if summary == "" {
		summary = "Not set yet"
	}
	s := summary + ". Attributes - "
	first := true
	for _, name := range commonAttributes {
		s = appendAttribute(s, name, p.Attributes, &first)
	}
	for _, name := range roleAttributes[p.Role] {
		s = appendAttribute(s, name, p.Attributes, &first)
	}
	return s
}

func appendAttribute(s, name string, attrs map[string]float64, first *bool) string {
	v, ok := attrs[name]
	if !ok {
		return s
	}
	if !*first {
		s += ", "
	}
	*first = false
	return s + fmt.Sprintf("%s: %.1f", name, v)
}

func clamp(v float64) float64 {
	if v < attributeMin {
		return attributeMin
	}
	if v > attributeMax {
		return attributeMax
	}
	return v
}

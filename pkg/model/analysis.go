package model

import "strings"

// Tone is the coarse emotional tone of an analysis.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
	ToneMixed    Tone = "mixed"
)

// Stage is an estimated sleep stage.
type Stage string

const (
	StageREM     Stage = "rem"
	StageNREM    Stage = "nrem"
	StageLight   Stage = "light"
	StageDeep    Stage = "deep"
	StageUnknown Stage = "unknown"
)

// ParseStage maps a free-form stage label onto a Stage. Unrecognized labels are StageUnknown.
func ParseStage(s string) Stage {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rem":
		return StageREM
	case "nrem", "non-rem", "nonrem":
		return StageNREM
	case "light":
		return StageLight
	case "deep":
		return StageDeep
	default:
		return StageUnknown
	}
}

type Strength string

const (
	StrengthHigh   Strength = "high"
	StrengthMedium Strength = "medium"
	StrengthLow    Strength = "low"
)

// StrengthOf derives a theme strength from a 0-100 score.
func StrengthOf(score float64) Strength {
	switch {
	case score >= 70:
		return StrengthHigh
	case score >= 40:
		return StrengthMedium
	default:
		return StrengthLow
	}
}

type EvidenceLevel string

const (
	EvidenceNone     EvidenceLevel = "none"
	EvidenceWeak     EvidenceLevel = "weak"
	EvidenceModerate EvidenceLevel = "moderate"
	EvidenceStrong   EvidenceLevel = "strong"
)

// EvidenceLevelOf grades a theme by the number of evidence spans backing it.
func EvidenceLevelOf(spans int) EvidenceLevel {
	switch {
	case spans >= 3:
		return EvidenceStrong
	case spans == 2:
		return EvidenceModerate
	case spans == 1:
		return EvidenceWeak
	default:
		return EvidenceNone
	}
}

// Clamp bounds a percentage-like value to [0,100].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Analysis is the normalized analysis payload of a current record.
type Analysis struct {
	Emotions     Emotions     `json:"emotions"`
	Entities     Entities     `json:"entities"`
	SleepStage   SleepStage   `json:"sleepStage"`
	Plausibility Plausibility `json:"plausibility"`
	Continuity   Continuity   `json:"continuity"`
	Themes       []Theme      `json:"themes"`

	Text       string  `json:"text"`
	Lang       Lang    `json:"lang"`
	Version    string  `json:"version"`
	Timestamp  string  `json:"timestamp"`
	Confidence float64 `json:"confidence"`
}

type Emotions struct {
	Positive   float64  `json:"positive"`
	Negative   float64  `json:"negative"`
	Neutral    float64  `json:"neutral"`
	Labels     []string `json:"labels"`
	Confidence float64  `json:"confidence"`
	Tone       Tone     `json:"tone"`
}

type Entities struct {
	People  []string `json:"people"`
	Animals []string `json:"animals"`
	Places  []string `json:"places"`
	Objects []string `json:"objects"`
	Events  []string `json:"events"`
}

type SleepStage struct {
	Stage              Stage   `json:"stage"`
	Vividness          float64 `json:"vividness"`
	Coherence          float64 `json:"coherence"`
	EmotionalIntensity float64 `json:"emotionalIntensity"`
	Bizarreness        float64 `json:"bizarreness"`
	Lucidity           float64 `json:"lucidity"`
}

type Plausibility struct {
	Physical float64 `json:"physical"`
	Logical  float64 `json:"logical"`
	Temporal float64 `json:"temporal"`
	Social   float64 `json:"social"`
	Overall  float64 `json:"overall"`
}

type Continuity struct {
	People            float64 `json:"people"`
	Places            float64 `json:"places"`
	Themes            float64 `json:"themes"`
	Emotions          float64 `json:"emotions"`
	Overall           float64 `json:"overall"`
	HasComparisonData bool    `json:"hasComparisonData"`
}

type Theme struct {
	ID              string        `json:"id"`
	Score           float64       `json:"score"`
	NormalizedScore float64       `json:"normalizedScore"`
	Evidence        []string      `json:"evidence"`
	Strength        Strength      `json:"strength"`
	EvidenceLevel   EvidenceLevel `json:"evidenceLevel"`
}

// DefaultAnalysis returns a structurally complete payload with neutral values.
// Slices are non-nil so they encode as empty JSON arrays.
func DefaultAnalysis() *Analysis {
	return &Analysis{
		Emotions: Emotions{
			Neutral: 100,
			Labels:  []string{},
			Tone:    ToneNeutral,
		},
		Entities: Entities{
			People:  []string{},
			Animals: []string{},
			Places:  []string{},
			Objects: []string{},
			Events:  []string{},
		},
		SleepStage: SleepStage{
			Stage:              StageUnknown,
			Vividness:          50,
			Coherence:          50,
			EmotionalIntensity: 50,
			Bizarreness:        50,
			Lucidity:           50,
		},
		Plausibility: Plausibility{
			Physical: 50,
			Logical:  50,
			Temporal: 50,
			Social:   50,
			Overall:  50,
		},
		Continuity: Continuity{},
		Themes:     []Theme{},
		Version:    RecordVersion,
	}
}

// Normalize fills nil slices, clamps every percentage-like field and replaces
// unknown enum values, so the payload always satisfies the record invariants.
func (a *Analysis) Normalize() {
	e := &a.Emotions
	e.Positive, e.Negative, e.Neutral = Clamp(e.Positive), Clamp(e.Negative), Clamp(e.Neutral)
	e.Confidence = Clamp(e.Confidence)
	if e.Labels == nil {
		e.Labels = []string{}
	}
	switch e.Tone {
	case TonePositive, ToneNegative, ToneNeutral, ToneMixed:
	default:
		e.Tone = ToneNeutral
	}

	for _, list := range []*[]string{&a.Entities.People, &a.Entities.Animals, &a.Entities.Places, &a.Entities.Objects, &a.Entities.Events} {
		if *list == nil {
			*list = []string{}
		}
	}

	s := &a.SleepStage
	s.Stage = ParseStage(string(s.Stage))
	s.Vividness, s.Coherence = Clamp(s.Vividness), Clamp(s.Coherence)
	s.EmotionalIntensity, s.Bizarreness, s.Lucidity = Clamp(s.EmotionalIntensity), Clamp(s.Bizarreness), Clamp(s.Lucidity)

	p := &a.Plausibility
	p.Physical, p.Logical, p.Temporal, p.Social, p.Overall = Clamp(p.Physical), Clamp(p.Logical), Clamp(p.Temporal), Clamp(p.Social), Clamp(p.Overall)

	c := &a.Continuity
	c.People, c.Places, c.Themes, c.Emotions, c.Overall = Clamp(c.People), Clamp(c.Places), Clamp(c.Themes), Clamp(c.Emotions), Clamp(c.Overall)

	if a.Themes == nil {
		a.Themes = []Theme{}
	}
	for i := range a.Themes {
		t := &a.Themes[i]
		t.NormalizedScore = Clamp(t.NormalizedScore)
		if t.Evidence == nil {
			t.Evidence = []string{}
		}
	}

	a.Confidence = Clamp(a.Confidence)
}

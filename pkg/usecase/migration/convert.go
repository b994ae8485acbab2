package migration

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ConvertAnalysis maps any legacy analysis payload onto the normalized shape.
// It never fails: when extraction is impossible the neutral default payload
// is returned. text, lang and timestamp are always stamped on the result.
func ConvertAnalysis(raw []byte, text string, lang model.Lang, timestamp string) *model.Analysis {
	a, _ := convertAnalysis(raw, text, lang, timestamp)
	return a
}

// convertAnalysis is ConvertAnalysis that also reports why it fell back to the default.
func convertAnalysis(raw []byte, text string, lang model.Lang, timestamp string) (result *model.Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic while converting analysis", goerr.V("panic", fmt.Sprint(r)))
		}
		if err != nil || result == nil {
			result = model.DefaultAnalysis()
		}
		result.Normalize()
		result.Text = text
		result.Lang = lang
		result.Version = model.RecordVersion
		result.Timestamp = timestamp
	}()

	switch shape := model.ClassifyAnalysisShape(raw); shape {
	case model.ShapeModern:
		return passThrough(raw)
	case model.ShapeMissing:
		return model.DefaultAnalysis(), nil
	case model.ShapeFlat:
		return extractFlat(raw)
	case model.ShapeInvalid:
		return nil, goerr.New("analysis payload is not an object")
	default:
		return nil, goerr.New("unhandled analysis shape", goerr.V("shape", shape))
	}
}

// passThrough keeps a modern payload as is. Fields it lacks take default values.
func passThrough(raw []byte) (*model.Analysis, error) {
	a := model.DefaultAnalysis()
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, goerr.Wrap(err, "failed to decode modern analysis")
	}
	return a, nil
}

// extractFlat reads the historical flat shape field by field.
func extractFlat(raw []byte) (*model.Analysis, error) {
	a := model.DefaultAnalysis()
	scale := detectScale(raw)

	confidence, hasConfidence := firstNumber(raw, "confidence")
	if hasConfidence {
		a.Confidence = scale.percent(confidence)
		a.Emotions.Confidence = a.Confidence
	}

	if err := extractEmotions(raw, scale, &a.Emotions); err != nil {
		return nil, err
	}

	buckets := []struct {
		key string
		dst *[]string
	}{
		{"people", &a.Entities.People},
		{"animals", &a.Entities.Animals},
		{"places", &a.Entities.Places},
		{"objects", &a.Entities.Objects},
		{"events", &a.Entities.Events},
	}
	for _, b := range buckets {
		values, err := stringList(raw, b.key)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			if values, err = stringList(raw, "entities", b.key); err != nil {
				return nil, err
			}
		}
		if values != nil {
			*b.dst = values
		}
	}

	if stage, ok := firstString(raw, "sleepStage", "stage"); ok {
		a.SleepStage.Stage = model.ParseStage(stage)
	}
	metrics := []struct {
		key string
		dst *float64
	}{
		{"vividness", &a.SleepStage.Vividness},
		{"coherence", &a.SleepStage.Coherence},
		{"emotionalIntensity", &a.SleepStage.EmotionalIntensity},
		{"bizarreness", &a.SleepStage.Bizarreness},
		{"lucidity", &a.SleepStage.Lucidity},
	}
	for _, m := range metrics {
		if v, ok := firstNumber(raw, m.key); ok {
			*m.dst = scale.percent(v)
		}
	}

	extractPlausibility(raw, scale, &a.Plausibility)
	extractContinuity(raw, scale, &a.Continuity)

	themes, err := extractThemes(raw, scale)
	if err != nil {
		return nil, err
	}
	a.Themes = themes

	return a, nil
}

func extractEmotions(raw []byte, scale scoreScale, e *model.Emotions) error {
	var (
		buckets = map[string]float64{}
		labels  []string
		seen    = map[string]bool{}
		found   bool
	)
	addLabel := func(label string) {
		if label != "" && !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}

	var cbErr error
	err := eachMember(raw, func(value []byte, typ jsonparser.ValueType) {
		switch typ {
		case jsonparser.String:
			label, err := jsonparser.ParseString(value)
			if err != nil {
				cbErr = err
				return
			}
			addLabel(label)
			buckets["neutral"]++
			found = true

		case jsonparser.Object:
			label, _ := firstString(value, "name", "emotion", "label")
			addLabel(label)
			valence, _ := firstString(value, "valence", "type")
			score, ok := firstNumber(value, "score", "intensity")
			if !ok {
				score = 1
			}
			switch valence {
			case "positive", "negative":
			default:
				valence = "neutral"
			}
			buckets[valence] += score
			found = true
		}
	}, "emotions")
	if err != nil {
		return goerr.Wrap(err, "failed to read legacy emotions")
	}
	if cbErr != nil {
		return goerr.Wrap(cbErr, "failed to read legacy emotion label")
	}

	if found {
		total := buckets["positive"] + buckets["negative"] + buckets["neutral"]
		if total > 0 {
			e.Positive = buckets["positive"] / total * 100
			e.Negative = buckets["negative"] / total * 100
			e.Neutral = buckets["neutral"] / total * 100
		}
	}

	var tone model.Tone
	sentiment, typ, _, _ := jsonparser.Get(raw, "sentiment")
	switch typ {
	case jsonparser.Object:
		pos, hasPos := firstNumber(sentiment, "positive")
		neg, hasNeg := firstNumber(sentiment, "negative")
		neu, hasNeu := firstNumber(sentiment, "neutral")
		if hasPos || hasNeg || hasNeu {
			e.Positive, e.Negative, e.Neutral = scale.percent(pos), scale.percent(neg), scale.percent(neu)
		}
	case jsonparser.String:
		tone = model.Tone(sentiment)
	}

	if mood, ok := firstString(raw, "mood"); ok {
		addLabel(mood)
	}

	if labels != nil {
		e.Labels = labels
	}
	switch tone {
	case model.TonePositive, model.ToneNegative, model.ToneNeutral, model.ToneMixed:
		e.Tone = tone
	default:
		e.Tone = toneOf(e.Positive, e.Negative)
	}
	return nil
}

// toneOf derives a coarse tone from the positive and negative shares.
func toneOf(positive, negative float64) model.Tone {
	switch {
	case positive > negative+10:
		return model.TonePositive
	case negative > positive+10:
		return model.ToneNegative
	case positive > 0 && negative > 0:
		return model.ToneMixed
	default:
		return model.ToneNeutral
	}
}

func extractPlausibility(raw []byte, scale scoreScale, p *model.Plausibility) {
	if v, ok := firstNumber(raw, "plausibility", "realism"); ok {
		v = scale.percent(v)
		p.Physical, p.Logical, p.Temporal, p.Social, p.Overall = v, v, v, v, v
		return
	}

	obj, typ, _, err := jsonparser.Get(raw, "plausibility")
	if err != nil || typ != jsonparser.Object {
		return
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"physical", &p.Physical},
		{"logical", &p.Logical},
		{"temporal", &p.Temporal},
		{"social", &p.Social},
		{"overall", &p.Overall},
	} {
		if v, ok := firstNumber(obj, f.key); ok {
			*f.dst = scale.percent(v)
		}
	}
}

func extractContinuity(raw []byte, scale scoreScale, c *model.Continuity) {
	if v, ok := firstNumber(raw, "continuity"); ok {
		c.Overall = scale.percent(v)
		c.HasComparisonData = true
		return
	}

	obj, typ, _, err := jsonparser.Get(raw, "continuity")
	if err != nil || typ != jsonparser.Object {
		return
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"people", &c.People},
		{"places", &c.Places},
		{"themes", &c.Themes},
		{"emotions", &c.Emotions},
		{"overall", &c.Overall},
	} {
		if v, ok := firstNumber(obj, f.key); ok {
			*f.dst = scale.percent(v)
			c.HasComparisonData = true
		}
	}
}

func extractThemes(raw []byte, scale scoreScale) ([]model.Theme, error) {
	themes := []model.Theme{}

	var cbErr error
	err := eachMember(raw, func(value []byte, typ jsonparser.ValueType) {
		if cbErr != nil {
			return
		}
		switch typ {
		case jsonparser.String:
			id, err := jsonparser.ParseString(value)
			if err != nil {
				cbErr = err
				return
			}
			themes = append(themes, newTheme(id, 50, 50, nil))

		case jsonparser.Object:
			id, _ := firstString(value, "id", "name", "theme")
			score, _ := firstNumber(value, "score", "weight")
			evidence, err := stringList(value, "evidence")
			if err != nil {
				cbErr = err
				return
			}
			if evidence == nil {
				if evidence, err = stringList(value, "quotes"); err != nil {
					cbErr = err
					return
				}
			}
			if id != "" {
				themes = append(themes, newTheme(id, score, scale.percent(score), evidence))
			}
		}
	}, "themes")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read legacy themes")
	}
	if cbErr != nil {
		return nil, goerr.Wrap(cbErr, "failed to read legacy theme")
	}
	return themes, nil
}

func newTheme(id string, score, normalized float64, evidence []string) model.Theme {
	if evidence == nil {
		evidence = []string{}
	}
	return model.Theme{
		ID:              id,
		Score:           score,
		NormalizedScore: normalized,
		Evidence:        evidence,
		Strength:        model.StrengthOf(normalized),
		EvidenceLevel:   model.EvidenceLevelOf(len(evidence)),
	}
}

// scoreScale is the factor bringing the scores of one payload onto the 0-100
// range. It is decided once per payload so the mapping stays monotonic.
type scoreScale float64

const (
	scalePercent  scoreScale = 1
	scaleFraction scoreScale = 100
)

// flatScoreKeys are the top-level keys of the flat shape holding a score.
var flatScoreKeys = []string{
	"confidence",
	"vividness",
	"coherence",
	"emotionalIntensity",
	"bizarreness",
	"lucidity",
	"plausibility",
	"realism",
	"continuity",
}

// detectScale treats a payload as fractional only when every score it
// carries lies within [0, 1] and at least one is positive.
func detectScale(raw []byte) scoreScale {
	var highest float64
	see := func(v float64, ok bool) {
		if ok && v > highest {
			highest = v
		}
	}

	for _, key := range flatScoreKeys {
		see(firstNumber(raw, key))
	}
	for _, key := range []string{"sentiment", "plausibility", "continuity"} {
		eachNumberField(raw, func(v float64) { see(v, true) }, key)
	}
	_ = eachMember(raw, func(value []byte, typ jsonparser.ValueType) {
		if typ == jsonparser.Object {
			see(firstNumber(value, "score", "weight"))
		}
	}, "themes")

	if highest > 0 && highest <= 1 {
		return scaleFraction
	}
	return scalePercent
}

func (s scoreScale) percent(v float64) float64 {
	return model.Clamp(v * float64(s))
}

// firstNumber returns the first of keys holding a number or numeric string.
func firstNumber(data []byte, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, typ, _, err := jsonparser.Get(data, key)
		if err != nil {
			continue
		}
		if f, ok := parseNumber(value, typ); ok {
			return f, true
		}
	}
	return 0, false
}

func parseNumber(value []byte, typ jsonparser.ValueType) (float64, bool) {
	switch typ {
	case jsonparser.Number:
		if f, err := jsonparser.ParseFloat(value); err == nil {
			return f, true
		}
	case jsonparser.String:
		if f, err := strconv.ParseFloat(string(value), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// eachNumberField calls fn for every numeric field of the object at path.
func eachNumberField(data []byte, fn func(float64), path ...string) {
	if _, typ, _, err := jsonparser.Get(data, path...); err != nil || typ != jsonparser.Object {
		return
	}
	_ = jsonparser.ObjectEach(data, func(_, value []byte, typ jsonparser.ValueType, _ int) error {
		if f, ok := parseNumber(value, typ); ok {
			fn(f)
		}
		return nil
	}, path...)
}

// firstString returns the first of keys holding a non-empty string.
func firstString(data []byte, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, err := jsonparser.GetString(data, key); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}

// eachMember calls fn for every member of the array at path. A missing path
// or a non-array value is skipped.
func eachMember(data []byte, fn func(value []byte, typ jsonparser.ValueType), path ...string) error {
	if _, typ, _, err := jsonparser.Get(data, path...); err != nil || typ != jsonparser.Array {
		return nil
	}
	_, err := jsonparser.ArrayEach(data, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		fn(value, typ)
	}, path...)
	return err
}

// stringList collects the string members of the array at path. A missing
// path yields nil; non-string members are skipped.
func stringList(data []byte, path ...string) ([]string, error) {
	if _, typ, _, err := jsonparser.Get(data, path...); err != nil || typ != jsonparser.Array {
		return nil, nil
	}

	values := []string{}
	var cbErr error
	err := eachMember(data, func(value []byte, typ jsonparser.ValueType) {
		if typ != jsonparser.String || cbErr != nil {
			return
		}
		s, err := jsonparser.ParseString(value)
		if err != nil {
			cbErr = err
			return
		}
		values = append(values, s)
	}, path...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read string list", goerr.V("path", path))
	}
	if cbErr != nil {
		return nil, goerr.Wrap(cbErr, "failed to read string list member", goerr.V("path", path))
	}
	return values, nil
}

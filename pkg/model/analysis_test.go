package model_test

import (
	"encoding/json"
	"testing"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestStrengthOf(t *testing.T) {
	gt.Equal(t, model.StrengthOf(70), model.StrengthHigh)
	gt.Equal(t, model.StrengthOf(69.9), model.StrengthMedium)
	gt.Equal(t, model.StrengthOf(40), model.StrengthMedium)
	gt.Equal(t, model.StrengthOf(39), model.StrengthLow)
}

func TestEvidenceLevelOf(t *testing.T) {
	gt.Equal(t, model.EvidenceLevelOf(0), model.EvidenceNone)
	gt.Equal(t, model.EvidenceLevelOf(1), model.EvidenceWeak)
	gt.Equal(t, model.EvidenceLevelOf(2), model.EvidenceModerate)
	gt.Equal(t, model.EvidenceLevelOf(5), model.EvidenceStrong)
}

func TestParseStage(t *testing.T) {
	gt.Equal(t, model.ParseStage("REM"), model.StageREM)
	gt.Equal(t, model.ParseStage(" non-rem "), model.StageNREM)
	gt.Equal(t, model.ParseStage("deep"), model.StageDeep)
	gt.Equal(t, model.ParseStage("hypnagogic"), model.StageUnknown)
}

func TestDefaultAnalysisEncodesEmptyLists(t *testing.T) {
	data, err := json.Marshal(model.DefaultAnalysis())
	gt.NoError(t, err)

	var decoded map[string]any
	gt.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"emotions", "entities", "sleepStage", "plausibility", "continuity", "themes"} {
		gt.Map(t, decoded).HasKey(key)
	}
	gt.S(t, string(data)).Contains(`"people":[]`)
	gt.S(t, string(data)).Contains(`"themes":[]`)
	gt.S(t, string(data)).Contains(`"stage":"unknown"`)
	gt.S(t, string(data)).Contains(`"hasComparisonData":false`)
}

func TestNormalize(t *testing.T) {
	a := &model.Analysis{
		Emotions:   model.Emotions{Positive: 140, Negative: -3, Tone: "furious"},
		SleepStage: model.SleepStage{Stage: "REM", Lucidity: 101},
		Themes:     []model.Theme{{ID: "water", NormalizedScore: 300}},
		Confidence: 250,
	}
	a.Normalize()

	gt.Equal(t, a.Emotions.Positive, 100.0)
	gt.Equal(t, a.Emotions.Negative, 0.0)
	gt.Equal(t, a.Emotions.Tone, model.ToneNeutral)
	gt.NotNil(t, a.Emotions.Labels)
	gt.NotNil(t, a.Entities.Events)
	gt.Equal(t, a.SleepStage.Stage, model.StageREM)
	gt.Equal(t, a.SleepStage.Lucidity, 100.0)
	gt.Equal(t, a.Themes[0].NormalizedScore, 100.0)
	gt.NotNil(t, a.Themes[0].Evidence)
	gt.Equal(t, a.Confidence, 100.0)
}

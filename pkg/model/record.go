package model

import (
	"time"

	"github.com/google/uuid"
)

// SchemaV2 is the discriminant value carried by every current record.
const SchemaV2 = 2

// RecordVersion is the semantic version stamped on records produced by migration.
const RecordVersion = "2.0.0"

// TimestampLayout is the canonical text form of Record.CreatedAt.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type RecordID string

// NewRecordID generates a new unique RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

type Lang string

const (
	LangTurkish Lang = "tr"
	LangEnglish Lang = "en"
)

// Record is a persisted entry in the current (V2) schema.
type Record struct {
	SchemaVersion int       `json:"schemaVersion"`
	ID            RecordID  `json:"id"`
	Lang          Lang      `json:"lang"`
	CreatedAt     string    `json:"createdAt"`
	Text          string    `json:"text"`
	Analysis      *Analysis `json:"analysis"`
	Version       string    `json:"version"`
	Migrated      bool      `json:"migrated"`
}

// FormatTimestamp renders t in the canonical UTC text form used by records.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Result is the aggregate outcome of one eager migration run.
type Result struct {
	Migrated int           `json:"migrated"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`

	// Deferred is the number of keys handed to background migration.
	Deferred int `json:"deferred"`
	// Evicted is the number of keys removed by capacity eviction before the run.
	Evicted int `json:"evicted"`
}

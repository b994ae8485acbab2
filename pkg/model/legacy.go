package model

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrCorruptRecord = goerr.New("corrupt record")
)

// Legacy records carry each concern under one of two keys, primary first.
var (
	LegacyTextFields     = []string{"text", "dreamText"}
	LegacyTimeFields     = []string{"timestamp", "date"}
	LegacyAnalysisFields = []string{"analysis", "result"}
)

// keyTimestampPattern recovers a unix time embedded in legacy keys such as
// "dream_1699999999999" or "dream_analysis_1699999999999_2".
var keyTimestampPattern = regexp.MustCompile(`_(\d{10,13})(?:$|_)`)

// Envelope is a stored record decoded only down to its top-level members.
type Envelope map[string]json.RawMessage

// ParseEnvelope decodes a stored value. Anything other than a JSON object is corrupt.
func ParseEnvelope(raw string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, goerr.Wrap(ErrCorruptRecord, "failed to parse record", goerr.V("error", err.Error()))
	}
	if env == nil {
		return nil, goerr.Wrap(ErrCorruptRecord, "record is null")
	}
	return env, nil
}

// IsCurrent reports whether the record carries the current schema discriminant.
func (e Envelope) IsCurrent() bool {
	raw, ok := e["schemaVersion"]
	if !ok {
		return false
	}
	var v json.Number
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	n, err := v.Int64()
	return err == nil && n == SchemaV2
}

// Text returns the first non-blank free-text payload. The text is returned
// exactly as stored.
func (e Envelope) Text() (string, bool) {
	for _, field := range LegacyTextFields {
		raw, ok := e[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// Timestamp returns the time embedded in the record value, if any.
func (e Envelope) Timestamp() (time.Time, bool) {
	fields := LegacyTimeFields
	if e.IsCurrent() {
		fields = []string{"createdAt"}
	}
	for _, field := range fields {
		if raw, ok := e[field]; ok {
			if t, ok := ParseTimestamp(raw); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Analysis returns the raw legacy analysis payload, or nil when absent.
func (e Envelope) Analysis() []byte {
	for _, field := range LegacyAnalysisFields {
		if raw, ok := e[field]; ok {
			return raw
		}
	}
	return nil
}

// ParseTimestamp accepts unix milliseconds (or seconds) as a number or numeric
// string, and RFC 3339 / date-only strings.
func ParseTimestamp(raw json.RawMessage) (time.Time, bool) {
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return unixTime(string(num))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := unixTime(s); ok {
		return t, true
	}
	for _, layout := range []string{time.RFC3339Nano, TimestampLayout, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// maxUnixMilli is 9999-12-31T23:59:59.999Z, the last instant the canonical
// timestamp form can express.
const maxUnixMilli = 253402300799999

func unixTime(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !(f > 0 && f <= maxUnixMilli) {
		return time.Time{}, false
	}
	// Values below 1e11 cannot be milliseconds of any plausible record date.
	if f < 1e11 {
		return time.UnixMilli(int64(f * 1000)).UTC(), true
	}
	return time.UnixMilli(int64(f)).UTC(), true
}

// KeyTimestamp recovers the unix time embedded in a storage key.
func KeyTimestamp(key string) (time.Time, bool) {
	m := keyTimestampPattern.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, false
	}
	return unixTime(m[1])
}

// AnalysisShape discriminates the historical shapes of a legacy analysis payload.
type AnalysisShape int

const (
	// ShapeMissing is an absent or null payload.
	ShapeMissing AnalysisShape = iota
	// ShapeModern already has the normalized sub-objects.
	ShapeModern
	// ShapeFlat is any other object, read field by field.
	ShapeFlat
	// ShapeInvalid is an array, scalar or malformed payload.
	ShapeInvalid
)

func (s AnalysisShape) String() string {
	switch s {
	case ShapeMissing:
		return "missing"
	case ShapeModern:
		return "modern"
	case ShapeFlat:
		return "flat"
	case ShapeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

var modernSignature = []string{"emotions", "sleepStage", "continuity"}

// ClassifyAnalysisShape inspects structural markers only. It is total: every
// input maps to exactly one shape.
func ClassifyAnalysisShape(raw []byte) AnalysisShape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ShapeMissing
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return ShapeInvalid
	}
	for _, key := range modernSignature {
		_, typ, _, err := jsonparser.Get(trimmed, key)
		if err != nil || typ != jsonparser.Object {
			return ShapeFlat
		}
	}
	return ShapeModern
}

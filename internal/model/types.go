package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// TrainResults is metadata about the last training run of a model. The
// graph packages carry it untouched.
type TrainResults struct {
	StartedAt   int64    `json:"started_at" yaml:"started_at" validate:"gte=0"`
	FinishedAt  int64    `json:"finished_at" yaml:"finished_at" validate:"gte=0,gtefield=StartedAt"`
	EpochsCount int      `json:"epochs_count" yaml:"epochs_count" validate:"gte=0"`
	FinalScore  *float64 `json:"final_score,omitempty" yaml:"final_score,omitempty"`
}

func (r *TrainResults) clone() *TrainResults {
	if r == nil {
		return nil
	}
	out := *r
	if r.FinalScore != nil {
		v := *r.FinalScore
		out.FinalScore = &v
	}
	return &out
}

// Summary is a flat overview of a model used by listings.
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Nodes      int    `json:"nodes"`
	Structures int    `json:"structures"`
	References int    `json:"references"`
	Units      int    `json:"units"`
	Layers     int    `json:"layers"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
	Trained    bool   `json:"trained"`
}

// Format selects a text encoding for models.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported model format: %s", name)
	}
}

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer model format from %q", path)
	}
	return ParseFormat(ext)
}

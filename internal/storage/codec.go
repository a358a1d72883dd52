package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"netgraph/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

type modelEnvelope struct {
	model.VersionedRecord
	Model json.RawMessage `json:"model"`
}

// EncodeModel validates m and wraps its JSON document in a versioned
// envelope.
func EncodeModel(m *model.Model) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	payload, err := m.SerializeJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(modelEnvelope{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: CurrentSchemaVersion,
			CodecVersion:  CurrentCodecVersion,
		},
		Model: payload,
	})
}

func DecodeModel(data []byte) (*model.Model, error) {
	var env modelEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if err := checkVersion(env.VersionedRecord); err != nil {
		return nil, err
	}
	m, err := model.ParseJSON(env.Model)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("stored model %s: %w", m.ID, err)
	}
	return m, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}

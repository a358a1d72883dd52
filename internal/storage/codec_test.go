package storage

import (
	"encoding/json"
	"errors"
	"testing"

	"netgraph/internal/fault"
	"netgraph/internal/model"
)

func TestModelCodecRoundTrip(t *testing.T) {
	m, err := model.NewExample(model.WithID("example-1"))
	if err != nil {
		t.Fatalf("example: %v", err)
	}
	data, err := EncodeModel(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	for _, key := range []string{"schema_version", "codec_version", "model"} {
		if _, ok := env[key]; !ok {
			t.Fatalf("envelope missing %q: %s", key, data)
		}
	}

	decoded, err := DecodeModel(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, _ := m.SerializeJSON()
	got, _ := decoded.SerializeJSON()
	if string(want) != string(got) {
		t.Fatalf("round trip changed model:\nwant %s\ngot  %s", want, got)
	}
}

func TestDecodeModelVersionMismatch(t *testing.T) {
	m, err := model.NewExample()
	if err != nil {
		t.Fatalf("example: %v", err)
	}
	payload, err := m.SerializeJSON()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	data, err := json.Marshal(modelEnvelope{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		Model:           payload,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeModel(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestEncodeModelRejectsInvalidModel(t *testing.T) {
	m, err := model.New()
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if _, err := EncodeModel(m); !errors.Is(err, fault.Of(fault.ModelValidation)) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeModelCorruptPayload(t *testing.T) {
	data := []byte(`{"schema_version":1,"codec_version":1,"model":{"id":"x"}}`)
	if _, err := DecodeModel(data); !errors.Is(err, fault.Of(fault.ModelParse)) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, err := DecodeModel([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

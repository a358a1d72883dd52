package model

import (
	"bytes"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"netgraph/internal/fault"
	"netgraph/internal/node"
	"netgraph/internal/unit"
)

// document is the wire shape of a model. It holds only owning data; the
// tree's lookup tables are rebuilt on parse.
type document struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Root         *node.Node     `json:"root" yaml:"root"`
	Units        *unit.Registry `json:"units" yaml:"units"`
	CreatedAt    int64          `json:"created_at" yaml:"created_at"`
	UpdatedAt    int64          `json:"updated_at" yaml:"updated_at"`
	TrainResults *TrainResults  `json:"train_results,omitempty" yaml:"train_results,omitempty"`
}

func (m *Model) document() document {
	return document{
		ID:           m.ID,
		Name:         m.Name,
		Root:         m.Root(),
		Units:        m.units,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		TrainResults: m.TrainResults,
	}
}

func (m *Model) SerializeJSON() ([]byte, error) {
	data, err := json.Marshal(m.document())
	if err != nil {
		return nil, fault.Wrap(fault.ModelSerialize, err, "encode json")
	}
	return data, nil
}

func (m *Model) SerializeYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.document()); err != nil {
		return nil, fault.Wrap(fault.ModelSerialize, err, "encode yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, fault.Wrap(fault.ModelSerialize, err, "encode yaml")
	}
	return buf.Bytes(), nil
}

func (m *Model) Serialize(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return m.SerializeJSON()
	case FormatYAML:
		return m.SerializeYAML()
	default:
		return nil, fault.Newf(fault.ModelSerialize, "unsupported format %q", format)
	}
}

func ParseJSON(data []byte) (*Model, error) {
	return Parse(FormatJSON, data)
}

func ParseYAML(data []byte) (*Model, error) {
	return Parse(FormatYAML, data)
}

// Parse decodes a model and relinks its tree. Unknown unit or target ids
// fail the parse.
func Parse(format Format, data []byte) (*Model, error) {
	src := bytes.TrimSpace(data)
	if len(src) == 0 {
		return nil, fault.New(fault.ModelParse, "source is empty")
	}

	var doc document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(src, &doc); err != nil {
			return nil, fault.Wrap(fault.ModelParse, err, "decode json")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(src, &doc); err != nil {
			return nil, fault.Wrap(fault.ModelParse, err, "decode yaml")
		}
	default:
		return nil, fault.Newf(fault.ModelParse, "unsupported format %q", format)
	}

	if doc.Root == nil {
		return nil, fault.New(fault.ModelParse, "root node is required")
	}
	units := doc.Units
	if units == nil {
		units = unit.NewRegistry()
	}
	tree, err := node.FromRoot(doc.Root, units)
	if err != nil {
		return nil, fault.Wrap(fault.ModelParse, err, "relink")
	}
	return &Model{
		ID:           doc.ID,
		Name:         doc.Name,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		TrainResults: doc.TrainResults,
		tree:         tree,
		units:        units,
		now:          time.Now,
	}, nil
}

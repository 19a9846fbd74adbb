package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Number is a numeric scalar from a metafile, kept in the text it was
// written with. Editor tracks look like numbers (2020.2, 2021.10) but are
// labels, so they must never go through a float.
type Number string

// MarshalYAML writes the number back untagged, the way it was read.
func (n Number) MarshalYAML() (any, error) {
	tag := "!!float"
	if _, err := strconv.ParseInt(string(n), 0, 64); err == nil {
		tag = "!!int"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(n)}, nil
}

// MarshalJSON writes a JSON number, or a string for YAML-only spellings
// such as 0x1F or .inf.
func (n Number) MarshalJSON() ([]byte, error) {
	if json.Valid([]byte(n)) {
		return []byte(n), nil
	}
	return json.Marshal(string(n))
}

// UnmarshalYAML decodes a record through its node tree so numeric scalars
// keep their source text.
func (r *Record) UnmarshalYAML(n *yaml.Node) error {
	v, err := nodeValue(n)
	if err != nil {
		return err
	}
	if v == nil {
		*r = nil
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	*r = Record(m)
	return nil
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return mappingValue(n)
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!int", "!!float":
			return Number(n.Value), nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return b, nil
		}
		return n.Value, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

// mappingValue resolves "<<" merge keys too; explicit keys win over merged
// ones and earlier merge sources win over later ones.
func mappingValue(n *yaml.Node) (map[string]any, error) {
	out := make(map[string]any, len(n.Content)/2)
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.ShortTag() == "!!merge" {
			if v.Kind == yaml.SequenceNode {
				merges = append(merges, v.Content...)
			} else {
				merges = append(merges, v)
			}
			continue
		}
		val, err := nodeValue(v)
		if err != nil {
			return nil, err
		}
		out[k.Value] = val
	}
	for _, src := range merges {
		val, err := nodeValue(src)
		if err != nil {
			return nil, err
		}
		m, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("line %d: merge value is not a mapping", src.Line)
		}
		for k, v := range m {
			if _, set := out[k]; !set {
				out[k] = v
			}
		}
	}
	return out, nil
}

// UnmarshalJSON keeps numbers as Number, like the YAML decoder.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*r = Record(jsonNumbers(m).(map[string]any))
	return nil
}

func jsonNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		return Number(x)
	case []any:
		for i := range x {
			x[i] = jsonNumbers(x[i])
		}
	case map[string]any:
		for k, e := range x {
			x[k] = jsonNumbers(e)
		}
	}
	return v
}

package seed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/offset/internal/credit"
)

// YAMLRecord is a raw record read from YAML. Number scalars are kept as
// json.Number holding the digits as written, so a quantity such as
// 12345678901234.56789 reaches the canonicalizer unchanged instead of
// being rounded through float64.
type YAMLRecord credit.RawRecord

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *YAMLRecord) UnmarshalYAML(node *yaml.Node) error {
	v, err := yamlValue(node)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("line %d: record must be a mapping", node.Line)
	}
	*r = YAMLRecord(m)
	return nil
}

func yamlValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlValue(node.Content[0])
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := yamlValue(val)
			if err != nil {
				return nil, err
			}
			out[key.Value] = v
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!int":
			return yamlInt(node), nil
		case "!!float":
			return json.Number(strings.ReplaceAll(node.Value, "_", "")), nil
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", node.Line)
}

// yamlInt lets yaml.v3 resolve hex, octal and binary forms, then renders
// the value in decimal. Literals too large for int64 keep their text.
func yamlInt(node *yaml.Node) json.Number {
	var n int64
	if err := node.Decode(&n); err == nil {
		return json.Number(strconv.FormatInt(n, 10))
	}
	var u uint64
	if err := node.Decode(&u); err == nil {
		return json.Number(strconv.FormatUint(u, 10))
	}
	return json.Number(strings.ReplaceAll(node.Value, "_", ""))
}

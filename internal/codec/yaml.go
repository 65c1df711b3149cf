package codec

import (
	"math"

	"gopkg.in/yaml.v3"
)

type yamlFormat struct{}

func (yamlFormat) Version() byte { return VersionYAML }

func (yamlFormat) Name() string { return "yaml" }

func (yamlFormat) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(prepare(v, yamlFloat))
}

func (yamlFormat) Unmarshal(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return err
	}

	normalizeInto(v)
	return nil
}

// yamlFloat writes an explicit float scalar; yaml.v3 prints 3.0 as "3",
// which would read back as an int
func yamlFloat(f float64) any {
	value := floatText(f)
	switch {
	case math.IsNaN(f):
		value = ".nan"
	case math.IsInf(f, 1):
		value = ".inf"
	case math.IsInf(f, -1):
		value = "-.inf"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: value}
}

package director

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/depthflow/internal/uniform"
)

// Version is written into new scenario files.
const Version = "2.0"

// Scenario describes one animation: a base snapshot plus keyframes applied in order.
type Scenario struct {
	Version   string     `yaml:"version"`
	Duration  float64    `yaml:"duration"`
	Base      Values     `yaml:"base,omitempty"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

// Keyframe is one timeline entry. End is nil for an open interval.
type Keyframe struct {
	Type   string             `yaml:"type"`
	Name   string             `yaml:"name,omitempty"`
	Start  float64            `yaml:"start"`
	End    *float64           `yaml:"end,omitempty"`
	Period float64            `yaml:"period,omitempty"`
	Params map[string]float64 `yaml:"params,omitempty"`
	// Values is used by "constant" keyframes.
	Values Values `yaml:"values,omitempty"`
}

// Param returns Params[name] or def when unset.
func (k Keyframe) Param(name string, def float64) float64 {
	if v, ok := k.Params[name]; ok {
		return v
	}
	return def
}

// Values is an ordered uniform mapping. In YAML it is a plain mapping whose
// values are numbers or two-element sequences; key order is preserved.
type Values []uniform.Entry

func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: uniform values must be a mapping", node.Line)
	}
	out := make(Values, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		value, err := decodeValue(val)
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", val.Line, key.Value, err)
		}
		out = append(out, uniform.Entry{Name: uniform.Name(key.Value), Value: value})
	}
	*v = out
	return nil
}

func (v Values) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, nv := range v {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(nv.Name)},
			encodeValue(nv.Value),
		)
	}
	return node, nil
}

// Snapshot converts the values, in order, on top of uniform.Defaults.
func (v Values) Snapshot() *uniform.Snapshot {
	s := uniform.Defaults()
	for _, nv := range v {
		s.Set(nv.Name, nv.Value)
	}
	return s
}

// ValuesOf lists a snapshot's entries in order.
func ValuesOf(s *uniform.Snapshot) Values {
	out := make(Values, 0, s.Len())
	s.Each(func(n uniform.Name, v uniform.Value) {
		out = append(out, uniform.Entry{Name: n, Value: v})
	})
	return out
}

func decodeValue(node *yaml.Node) (uniform.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var f float64
		if err := node.Decode(&f); err != nil {
			return uniform.Value{}, err
		}
		return uniform.Scalar(f), nil
	case yaml.SequenceNode:
		var xs []float64
		if err := node.Decode(&xs); err != nil {
			return uniform.Value{}, err
		}
		if len(xs) != 2 {
			return uniform.Value{}, fmt.Errorf("vector needs 2 components, got %d", len(xs))
		}
		return uniform.Vec2(xs[0], xs[1]), nil
	default:
		return uniform.Value{}, fmt.Errorf("expected a number or [x, y]")
	}
}

func encodeValue(v uniform.Value) *yaml.Node {
	num := func(f float64) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(f, 'g', -1, 64)}
	}
	if !v.Vec {
		return num(v.X)
	}
	return &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle, Content: []*yaml.Node{num(v.X), num(v.Y)}}
}

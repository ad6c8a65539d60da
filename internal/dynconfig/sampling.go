package dynconfig

import (
	"encoding/json"
	"fmt"
)

// SamplingRuleType selects what a dynamic sampling rule is evaluated against.
type SamplingRuleType string

// Sampling rule types.
const (
	SamplingRuleTrace       SamplingRuleType = "trace"
	SamplingRuleTransaction SamplingRuleType = "transaction"
)

// SamplingValueType says how the value of a rule applies.
type SamplingValueType string

// Sampling value types. A sample rate replaces the current rate, a factor multiplies it.
const (
	SamplingValueSampleRate SamplingValueType = "sampleRate"
	SamplingValueFactor     SamplingValueType = "factor"
)

// SamplingValue is the effect of a matching sampling rule.
type SamplingValue struct {
	Type  SamplingValueType `json:"type"`
	Value float64           `json:"value"`
}

// SamplingRule is one rule of a dynamic sampling configuration.
type SamplingRule struct {
	Condition     RuleCondition    `json:"condition"`
	SamplingValue SamplingValue    `json:"samplingValue"`
	Type          SamplingRuleType `json:"type"`
	ID            uint32           `json:"id"`
}

// SamplingConfig is the dynamic sampling configuration of a project.
type SamplingConfig struct {
	Version uint16         `json:"version,omitempty"`
	Rules   []SamplingRule `json:"rules"`
}

// ParseSamplingConfig parses and validates a sampling configuration.
func ParseSamplingConfig(data []byte) (SamplingConfig, error) {
	var config SamplingConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SamplingConfig{}, err
	}
	if err := config.Validate(); err != nil {
		return SamplingConfig{}, err
	}
	return config, nil
}

// ParseSamplingCondition parses a rule condition and checks that it is supported.
func ParseSamplingCondition(data []byte) (RuleCondition, error) {
	var condition RuleCondition
	if err := json.Unmarshal(data, &condition); err != nil {
		return RuleCondition{}, err
	}
	if !condition.IsSupported() {
		return RuleCondition{}, errUnsupportedCondition
	}
	return condition, nil
}

// Validate returns an error for the first rule that could not be applied.
func (c SamplingConfig) Validate() error {
	for _, rule := range c.Rules {
		if err := rule.validate(); err != nil {
			return fmt.Errorf("sampling rule %d: %w", rule.ID, err)
		}
	}
	return nil
}

func (r SamplingRule) validate() error {
	switch r.Type {
	case SamplingRuleTrace, SamplingRuleTransaction:
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	switch r.SamplingValue.Type {
	case SamplingValueSampleRate:
		if r.SamplingValue.Value < 0 || r.SamplingValue.Value > 1 {
			return fmt.Errorf("sample rate %v is outside [0, 1]", r.SamplingValue.Value)
		}
	case SamplingValueFactor:
		if r.SamplingValue.Value <= 0 {
			return fmt.Errorf("factor %v must be positive", r.SamplingValue.Value)
		}
	default:
		return fmt.Errorf("unknown sampling value type %q", r.SamplingValue.Type)
	}
	if !r.Condition.IsSupported() {
		return errUnsupportedCondition
	}
	return nil
}

package dynconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseProjectConfig parses a project config. In strict mode, unknown fields are errors.
func ParseProjectConfig(data []byte, strict bool) (ProjectConfig, error) {
	config := DefaultProjectConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&config); err != nil {
		return ProjectConfig{}, err
	}
	if dec.More() {
		return ProjectConfig{}, fmt.Errorf("unexpected data after project config")
	}
	if strict {
		if err := checkConfig(config); err != nil {
			return ProjectConfig{}, err
		}
	}
	return config, nil
}

// ValidateProjectConfig checks that a project config can be parsed. In strict mode it also
// rejects unknown fields, unsupported conditions and invalid quotas.
func ValidateProjectConfig(data []byte, strict bool) error {
	_, err := ParseProjectConfig(data, strict)
	return err
}

// ParseProjectState parses a project state as returned by upstream.
func ParseProjectState(data []byte) (*ProjectState, error) {
	state := ProjectState{Config: DefaultProjectConfig()}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func checkConfig(config ProjectConfig) error {
	for _, q := range config.Quotas {
		if !q.IsValid() {
			return fmt.Errorf("invalid quota %q", q.ID)
		}
	}
	if mec := config.MetricExtraction; mec != nil {
		for _, spec := range mec.Metrics {
			if spec.Condition != nil && !spec.Condition.IsSupported() {
				return fmt.Errorf("unsupported condition in metric %q", spec.MRI)
			}
		}
	}
	if config.Sampling != nil {
		if err := config.Sampling.Validate(); err != nil {
			return err
		}
	}
	return nil
}

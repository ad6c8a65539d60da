package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

func errLoadingConfigFile(path string, err error) error {
	return fmt.Errorf("failed to read configuration file %q: %w", path, err)
}

func errYAMLSectionNotMapping(section string) error {
	return fmt.Errorf("section %q must be a mapping", section)
}

func errYAMLUnsupportedValue(section, key string) error {
	return fmt.Errorf("section %q, variable %q: nested values are not supported", section, key)
}

// LoadConfig applies the configuration file at path (if path is not empty) and then, if
// useEnvironment is set, the environment variables on top of c. Validation runs once after every
// source has been applied, because a file may depend on values that only the environment sets.
//
// The Config parameter should be initialized with default values first.
func LoadConfig(c *Config, path string, useEnvironment bool, loggers ldlog.Loggers) error {
	if path != "" {
		if err := LoadConfigFile(c, path); err != nil {
			return err
		}
	}
	if useEnvironment {
		if err := LoadConfigFromEnvironment(c); err != nil {
			return err
		}
	}
	return ValidateConfig(c, loggers)
}

// LoadConfigFile reads a configuration file into a Config struct. Only the syntax and the values of
// individual fields are checked; call ValidateConfig once all sources have been applied.
//
// Files ending in .yml or .yaml are read as YAML, with the same section and variable names as the
// INI-style format written in snake_case. Anything else is read with gcfg.
//
// The Config parameter should be initialized with default values first.
func LoadConfigFile(c *Config, path string) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		var data []byte
		if data, err = os.ReadFile(path); err == nil { //nolint:gosec
			err = readYAMLInto(c, data)
		}
	default:
		err = gcfg.ReadFileInto(c, path)
	}
	if err != nil {
		return errLoadingConfigFile(path, FilterGcfgError(err))
	}
	return nil
}

// FilterGcfgError transforms errors returned by gcfg to our preferred format.
func FilterGcfgError(err error) error {
	gcfgExtraDataErrPhrase := "can't store data at"
	// Make gcfg's messages for unknown sections/fields slightly easier to understand
	if err != nil && strings.Contains(err.Error(), gcfgExtraDataErrPhrase) {
		return errors.New(strings.Replace(err.Error(), gcfgExtraDataErrPhrase, "unsupported or misspelled", 1))
	}
	return err
}

// readYAMLInto translates a YAML document into the gcfg format and reads that, so that both formats
// share the field matching and value parsing of gcfg.
func readYAMLInto(c *Config, data []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	var buf strings.Builder
	for _, section := range sortedKeys(doc) {
		values, ok := doc[section].(map[string]interface{})
		if !ok {
			if doc[section] == nil {
				continue
			}
			return errYAMLSectionNotMapping(section)
		}
		if yamlKeyName(section) == "staticrelay" {
			for _, id := range sortedKeys(values) {
				relay, ok := values[id].(map[string]interface{})
				if !ok {
					return errYAMLSectionNotMapping(section + "." + id)
				}
				fmt.Fprintf(&buf, "[%s %s]\n", yamlKeyName(section), quoteGcfgValue(id))
				if err := writeGcfgValues(&buf, section, relay); err != nil {
					return err
				}
			}
			continue
		}
		fmt.Fprintf(&buf, "[%s]\n", yamlKeyName(section))
		if err := writeGcfgValues(&buf, section, values); err != nil {
			return err
		}
	}
	return gcfg.ReadStringInto(c, buf.String())
}

func writeGcfgValues(buf *strings.Builder, section string, values map[string]interface{}) error {
	for _, key := range sortedKeys(values) {
		name := yamlKeyName(key)
		switch v := values[key].(type) {
		case nil:
			continue
		case []interface{}:
			for _, item := range v {
				if !isYAMLScalar(item) {
					return errYAMLUnsupportedValue(section, key)
				}
				fmt.Fprintf(buf, "%s = %s\n", name, quoteGcfgValue(fmt.Sprint(item)))
			}
		default:
			if !isYAMLScalar(v) {
				return errYAMLUnsupportedValue(section, key)
			}
			fmt.Fprintf(buf, "%s = %s\n", name, quoteGcfgValue(fmt.Sprint(v)))
		}
	}
	return nil
}

// yamlKeyName maps a snake_case YAML key to a name that gcfg matches case-insensitively against
// the struct field name.
func yamlKeyName(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", ""))
}

func isYAMLScalar(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return false
	default:
		return true
	}
}

func quoteGcfgValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

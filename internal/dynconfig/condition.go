package dynconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventrelay/relay/internal/protocol"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// ConditionOp is the operator of a RuleCondition.
type ConditionOp string

// Supported operators.
const (
	OpEq  ConditionOp = "eq"
	OpAnd ConditionOp = "and"
	OpOr  ConditionOp = "or"
	OpNot ConditionOp = "not"
)

// RuleCondition is a predicate over fields of a value.
//
// An "eq" condition compares the field at Name with Value. If Value is an array, the field may
// equal any of its elements. Strings are compared case-insensitively when IgnoreCase is set.
type RuleCondition struct {
	Op         ConditionOp
	Name       string
	Value      protocol.Value
	IgnoreCase bool
	Inner      []RuleCondition
}

// EqCondition builds an "eq" condition.
func EqCondition(name string, value protocol.Value) RuleCondition {
	return RuleCondition{Op: OpEq, Name: name, Value: value}
}

// AndCondition builds a condition that holds if all inner conditions hold.
func AndCondition(inner ...RuleCondition) RuleCondition {
	return RuleCondition{Op: OpAnd, Inner: inner}
}

// OrCondition builds a condition that holds if any inner condition holds.
func OrCondition(inner ...RuleCondition) RuleCondition {
	return RuleCondition{Op: OpOr, Inner: inner}
}

// NotCondition negates a condition.
func NotCondition(inner RuleCondition) RuleCondition {
	return RuleCondition{Op: OpNot, Inner: []RuleCondition{inner}}
}

// Matches evaluates the condition against a value.
func (c RuleCondition) Matches(g protocol.Getter) bool {
	switch c.Op {
	case OpEq:
		actual, ok := protocol.GetPath(g, c.Name)
		if !ok {
			actual = nil
		}
		if arr, isArray := c.Value.(protocol.Array); isArray {
			for _, v := range arr {
				if c.leafEquals(actual, v) {
					return true
				}
			}
			return false
		}
		return c.leafEquals(actual, c.Value)
	case OpAnd:
		for _, inner := range c.Inner {
			if !inner.Matches(g) {
				return false
			}
		}
		return true
	case OpOr:
		for _, inner := range c.Inner {
			if inner.Matches(g) {
				return true
			}
		}
		return false
	case OpNot:
		return len(c.Inner) == 1 && !c.Inner[0].Matches(g)
	default:
		return false
	}
}

func (c RuleCondition) leafEquals(actual, expected protocol.Value) bool {
	if c.IgnoreCase {
		as, aok := actual.(string)
		es, eok := expected.(string)
		if aok && eok {
			return strings.EqualFold(as, es)
		}
	}
	return protocol.ValueEquals(actual, expected)
}

// IsSupported returns false if the condition or any inner condition uses an unknown operator.
func (c RuleCondition) IsSupported() bool {
	switch c.Op {
	case OpEq:
		return true
	case OpAnd, OpOr:
		for _, inner := range c.Inner {
			if !inner.IsSupported() {
				return false
			}
		}
		return true
	case OpNot:
		return len(c.Inner) == 1 && c.Inner[0].IsSupported()
	default:
		return false
	}
}

type conditionOptions struct {
	IgnoreCase bool `json:"ignoreCase,omitempty"`
}

type conditionRep struct {
	Op      ConditionOp       `json:"op"`
	Name    string            `json:"name,omitempty"`
	Value   json.RawMessage   `json:"value,omitempty"`
	Options *conditionOptions `json:"options,omitempty"`
	Inner   json.RawMessage   `json:"inner,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c RuleCondition) MarshalJSON() ([]byte, error) {
	rep := conditionRep{Op: c.Op}
	var err error
	switch c.Op {
	case OpEq:
		rep.Name = c.Name
		w := jwriter.NewWriter()
		protocol.WriteValue(&w, c.Value)
		if err = w.Error(); err != nil {
			return nil, err
		}
		rep.Value = w.Bytes()
		if c.IgnoreCase {
			rep.Options = &conditionOptions{IgnoreCase: true}
		}
	case OpNot:
		if len(c.Inner) == 1 {
			rep.Inner, err = json.Marshal(c.Inner[0])
		}
	default:
		inner := c.Inner
		if inner == nil {
			inner = []RuleCondition{}
		}
		rep.Inner, err = json.Marshal(inner)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(rep)
}

// UnmarshalJSON implements json.Unmarshaler. Unknown operators are kept and never match.
func (c *RuleCondition) UnmarshalJSON(data []byte) error {
	var rep conditionRep
	if err := json.Unmarshal(data, &rep); err != nil {
		return err
	}
	out := RuleCondition{Op: rep.Op}
	switch rep.Op {
	case OpEq:
		out.Name = rep.Name
		if len(rep.Value) > 0 {
			v, err := protocol.ParseValue(rep.Value)
			if err != nil {
				return fmt.Errorf("invalid condition value: %w", err)
			}
			out.Value = v
		}
		if rep.Options != nil {
			out.IgnoreCase = rep.Options.IgnoreCase
		}
	case OpNot:
		var inner RuleCondition
		if err := json.Unmarshal(rep.Inner, &inner); err != nil {
			return err
		}
		out.Inner = []RuleCondition{inner}
	case OpAnd, OpOr:
		if len(rep.Inner) > 0 {
			if err := json.Unmarshal(rep.Inner, &out.Inner); err != nil {
				return err
			}
		}
	}
	*c = out
	return nil
}

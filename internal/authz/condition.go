package authz

import (
	"encoding/json"
	"fmt"
)

// Condition operators. The set is closed: ParseCondition rejects anything else.
const (
	OpEquals      = "eq"
	OpIn          = "in"
	OpRange       = "range"
	OpContainsAny = "contains_any"
	OpContainsAll = "contains_all"
	OpIPIn        = "ip_in"
)

// Condition is a recursive predicate tree over one context kind. Exactly one
// of All, Any, Not, or the Attr/Op leaf form must be populated; ParseCondition
// enforces this so the matchers never see an ambiguous node.
type Condition struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
	Not *Condition  `json:"not,omitempty"`

	Attr   string `json:"attr,omitempty"`
	Op     string `json:"op,omitempty"`
	Value  any    `json:"value,omitempty"`
	Values []any  `json:"values,omitempty"`
	Min    any    `json:"min,omitempty"`
	Max    any    `json:"max,omitempty"`
}

// ParseCondition decodes a stored condition document into a validated tree.
// A nil or empty document yields a nil condition, which matches any value.
// Policies with documents that fail validation are rejected at authoring time;
// the matchers additionally treat any malformed node that slips through as
// non-matching.
func ParseCondition(raw json.RawMessage) (*Condition, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var c Condition
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Condition) validate() error {
	branches := 0
	if len(c.All) > 0 {
		branches++
		for i := range c.All {
			if err := c.All[i].validate(); err != nil {
				return err
			}
		}
	}
	if len(c.Any) > 0 {
		branches++
		for i := range c.Any {
			if err := c.Any[i].validate(); err != nil {
				return err
			}
		}
	}
	if c.Not != nil {
		branches++
		if err := c.Not.validate(); err != nil {
			return err
		}
	}
	if c.Attr != "" || c.Op != "" {
		branches++
		if c.Attr == "" {
			return fmt.Errorf("condition leaf missing attr")
		}
		switch c.Op {
		case OpEquals:
			if c.Value == nil {
				return fmt.Errorf("condition %q: eq requires value", c.Attr)
			}
		case OpIn, OpContainsAny, OpContainsAll:
			if len(c.Values) == 0 {
				return fmt.Errorf("condition %q: %s requires values", c.Attr, c.Op)
			}
		case OpRange:
			if c.Min == nil && c.Max == nil {
				return fmt.Errorf("condition %q: range requires min or max", c.Attr)
			}
		case OpIPIn:
			if len(c.Values) == 0 {
				return fmt.Errorf("condition %q: ip_in requires values", c.Attr)
			}
		default:
			return fmt.Errorf("condition %q: unknown operator %q", c.Attr, c.Op)
		}
	}
	if branches != 1 {
		return fmt.Errorf("condition must have exactly one of all/any/not/leaf, got %d", branches)
	}
	return nil
}

// MarshalDocument re-encodes the condition for storage. A nil condition
// serializes as null.
func (c *Condition) MarshalDocument() (json.RawMessage, error) {
	if c == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(c)
}

// attrFunc resolves an attribute name to its value within one context kind.
// The second return is false when the attribute is absent, which by contract
// fails the enclosing leaf.
type attrFunc func(name string) (any, bool)

// eval walks the tree against an attribute resolver. Malformed nodes evaluate
// to false rather than panicking; authoring-time validation is the real gate.
func (c *Condition) eval(attrs attrFunc) bool {
	if c == nil {
		return true
	}
	switch {
	case len(c.All) > 0:
		for i := range c.All {
			if !c.All[i].eval(attrs) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for i := range c.Any {
			if c.Any[i].eval(attrs) {
				return true
			}
		}
		return false
	case c.Not != nil:
		return !c.Not.eval(attrs)
	case c.Attr != "":
		return c.evalLeaf(attrs)
	}
	return false
}

func (c *Condition) evalLeaf(attrs attrFunc) bool {
	val, ok := attrs(c.Attr)
	if !ok || val == nil {
		return false
	}
	switch c.Op {
	case OpEquals:
		return valueEquals(val, c.Value)
	case OpIn:
		for _, candidate := range c.Values {
			if valueEquals(val, candidate) {
				return true
			}
		}
		return false
	case OpRange:
		return valueInRange(val, c.Min, c.Max)
	case OpContainsAny:
		held, ok := stringSlice(val)
		if !ok {
			return false
		}
		for _, candidate := range c.Values {
			want, ok := candidate.(string)
			if !ok {
				continue
			}
			for _, h := range held {
				if h == want {
					return true
				}
			}
		}
		return false
	case OpContainsAll:
		held, ok := stringSlice(val)
		if !ok {
			return false
		}
		for _, candidate := range c.Values {
			want, ok := candidate.(string)
			if !ok {
				return false
			}
			found := false
			for _, h := range held {
				if h == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case OpIPIn:
		ip, ok := val.(string)
		if !ok {
			return false
		}
		return ipInAllowList(ip, c.Values)
	}
	return false
}

// valueEquals compares a context value with a condition value. Numbers compare
// numerically regardless of concrete type; everything else compares as strings
// or exact values.
func valueEquals(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return false
}

// valueInRange checks min <= v <= max, numerically when both sides are
// numbers, lexically when both are strings. Nil bounds are open.
func valueInRange(v, min, max any) bool {
	if vf, ok := asFloat(v); ok {
		if min != nil {
			mf, ok := asFloat(min)
			if !ok || vf < mf {
				return false
			}
		}
		if max != nil {
			mf, ok := asFloat(max)
			if !ok || vf > mf {
				return false
			}
		}
		return true
	}
	vs, ok := v.(string)
	if !ok {
		return false
	}
	if min != nil {
		ms, ok := min.(string)
		if !ok || vs < ms {
			return false
		}
	}
	if max != nil {
		ms, ok := max.(string)
		if !ok || vs > ms {
			return false
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

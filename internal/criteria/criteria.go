// Package criteria expands declarative batch criteria specifications into
// ordered value lists and the per-value document edits that realize them.
// A criterion is one independent variable of a batch; a set of one or two
// criteria spans the space of concrete experiments.
package criteria

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swarmlab/sweeper/internal/expdef"
	"github.com/swarmlab/sweeper/internal/sanitize"
)

// Kind identifies how a criterion's value list is generated.
type Kind int

const (
	// KindLog generates powers of two from 1 up to the bound: Log8 -> 1,2,4,8.
	KindLog Kind = iota
	// KindLinear generates an even split up to the bound: Linear10.C5 -> 2,4,6,8,10.
	KindLinear
	// KindEnum enumerates explicit values: Enum[a,b,c].
	KindEnum
)

// String returns the kind name as it appears in spec strings.
func (k Kind) String() string {
	switch k {
	case KindLog:
		return "Log"
	case KindLinear:
		return "Linear"
	case KindEnum:
		return "Enum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BatchCriterion is one independent variable: a stable identifier, an ordered
// non-empty value list, and the mapping from a value to the document edits
// that apply it. Value order is significant; it defines axis order in
// downstream deliverables.
type BatchCriterion struct {
	// ID is the canonical path-safe identifier for the criterion, embedded
	// in the batch root path. For Log and Linear it equals the spec string,
	// e.g. "population_size.Log8"; for Enum the bracketed value list is
	// rendered with '-' separators, e.g. "strategy.Enum-greedy-random".
	// Stable across invocations.
	ID string

	// Name is the variable name portion of the spec, e.g. "population_size".
	Name string

	// Kind is the value-generation variant.
	Kind Kind

	// Values is the ordered list of concrete values, rendered as strings.
	Values []string

	// Path is the document path expression naming the mapping node the
	// criterion edits, e.g. "arena/swarm".
	Path string

	// Attr is the attribute key set under Path for each value.
	Attr string
}

// EditsFor returns the edit operations realizing value on a template
// document. Pure: same value, same ops.
func (c *BatchCriterion) EditsFor(value string) expdef.EditOpSet {
	return expdef.EditOpSet{{Kind: expdef.OpSetAttr, Path: c.Path, Key: c.Attr, Value: value}}
}

// MalformedCriteriaError reports a criteria spec string that could not be
// parsed, naming the offending token.
type MalformedCriteriaError struct {
	Spec   string
	Token  string
	Reason string
}

func (e *MalformedCriteriaError) Error() string {
	return fmt.Sprintf("malformed criteria spec %q: token %q: %s", e.Spec, e.Token, e.Reason)
}

// Expand parses a criteria spec string into a BatchCriterion targeting the
// given document path and attribute key. Supported forms:
//
//	<name>.Log<N>          powers of two 1..N (N itself a power of two)
//	<name>.Linear<N>.C<K>  K evenly spaced values N/K, 2N/K, ..., N
//	<name>.Enum[v1,v2,..]  explicit ordered values
//
// The resulting criterion id is a single clean path component: the spec
// string itself for Log and Linear, and "<name>.Enum-v1-v2" for Enum.
//
// Pure: no side effects, no I/O.
func Expand(spec, docPath, attr string) (*BatchCriterion, error) {
	name, rest, ok := strings.Cut(spec, ".")
	if !ok {
		return nil, &MalformedCriteriaError{Spec: spec, Token: spec, Reason: "missing '.<generator>' suffix"}
	}
	if !sanitize.IsCleanIdentifier(name) {
		return nil, &MalformedCriteriaError{Spec: spec, Token: name, Reason: "variable name contains unsafe characters"}
	}

	c := &BatchCriterion{ID: spec, Name: name, Path: docPath, Attr: attr}

	switch {
	case strings.HasPrefix(rest, "Log"):
		n, err := strconv.Atoi(rest[len("Log"):])
		if err != nil || n < 1 {
			return nil, &MalformedCriteriaError{Spec: spec, Token: rest, Reason: "Log bound must be a positive integer"}
		}
		if n&(n-1) != 0 {
			return nil, &MalformedCriteriaError{Spec: spec, Token: rest, Reason: "Log bound must be a power of two"}
		}
		c.Kind = KindLog
		for v := 1; v <= n; v *= 2 {
			c.Values = append(c.Values, strconv.Itoa(v))
		}

	case strings.HasPrefix(rest, "Linear"):
		bound, count, ok := strings.Cut(rest[len("Linear"):], ".C")
		if !ok {
			return nil, &MalformedCriteriaError{Spec: spec, Token: rest, Reason: "Linear requires a '.C<count>' suffix"}
		}
		n, err := strconv.Atoi(bound)
		if err != nil || n < 1 {
			return nil, &MalformedCriteriaError{Spec: spec, Token: bound, Reason: "Linear bound must be a positive integer"}
		}
		k, err := strconv.Atoi(count)
		if err != nil || k < 1 {
			return nil, &MalformedCriteriaError{Spec: spec, Token: count, Reason: "Linear count must be a positive integer"}
		}
		if n%k != 0 {
			return nil, &MalformedCriteriaError{Spec: spec, Token: rest, Reason: fmt.Sprintf("bound %d not divisible by count %d", n, k)}
		}
		c.Kind = KindLinear
		step := n / k
		for v := step; v <= n; v += step {
			c.Values = append(c.Values, strconv.Itoa(v))
		}

	case strings.HasPrefix(rest, "Enum[") && strings.HasSuffix(rest, "]"):
		body := rest[len("Enum[") : len(rest)-1]
		if body == "" {
			return nil, &MalformedCriteriaError{Spec: spec, Token: rest, Reason: "Enum value list is empty"}
		}
		c.Kind = KindEnum
		for _, v := range strings.Split(body, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				return nil, &MalformedCriteriaError{Spec: spec, Token: rest, Reason: "Enum contains an empty value"}
			}
			// Enum values participate in the criterion id, so they must be
			// path-safe, and '-' is reserved as the id's value separator.
			if strings.Contains(v, "-") || !sanitize.IsCleanIdentifier(v) {
				return nil, &MalformedCriteriaError{Spec: spec, Token: v,
					Reason: "Enum value must use letters, digits, '.' or '_'"}
			}
			c.Values = append(c.Values, v)
		}
		c.ID = name + ".Enum-" + strings.Join(c.Values, "-")

	default:
		return nil, &MalformedCriteriaError{Spec: spec, Token: rest, Reason: "unknown generator (want Log<N>, Linear<N>.C<K>, or Enum[...])"}
	}

	return c, nil
}

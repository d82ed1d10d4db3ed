package expdef

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// OpKind identifies the kind of a document edit operation.
type OpKind int

const (
	// OpSetAttr sets a scalar attribute under an existing mapping node.
	OpSetAttr OpKind = iota
	// OpAddNode adds an empty mapping node under an existing mapping node.
	OpAddNode
	// OpRemoveNode removes a child (and its subtree) from a mapping node.
	OpRemoveNode
)

// String returns the operation kind name.
func (k OpKind) String() string {
	switch k {
	case OpSetAttr:
		return "set-attr"
	case OpAddNode:
		return "add-node"
	case OpRemoveNode:
		return "remove-node"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// EditOp is one edit against a template document: an operation kind, the
// path expression naming the target mapping node, the key under that node,
// and (for OpSetAttr) the scalar value to set.
type EditOp struct {
	Kind  OpKind
	Path  string
	Key   string
	Value string
}

// EditOpSet is an ordered list of edit operations. Order matters: an
// OpAddNode may create the target of a later OpSetAttr.
type EditOpSet []EditOp

// Union returns a new set holding the receiver's ops followed by other's.
func (s EditOpSet) Union(other EditOpSet) EditOpSet {
	out := make(EditOpSet, 0, len(s)+len(other))
	out = append(out, s...)
	out = append(out, other...)
	return out
}

// EditApplicationError reports an edit operation that could not be applied,
// typically because its path expression names an absent node.
type EditApplicationError struct {
	Op     EditOp
	Reason string
}

func (e *EditApplicationError) Error() string {
	return fmt.Sprintf("cannot apply %s at %q key %q: %s", e.Op.Kind, e.Op.Path, e.Op.Key, e.Reason)
}

// Apply applies every operation in set to the document in order. The first
// failing operation aborts with an *EditApplicationError; earlier operations
// in the set remain applied, so callers wanting all-or-nothing semantics
// apply edits to a Clone and discard it on error.
func (d *Document) Apply(set EditOpSet) error {
	for _, op := range set {
		if err := d.apply(op); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) apply(op EditOp) error {
	target := d.resolve(op.Path)
	if target == nil {
		return &EditApplicationError{Op: op, Reason: "path does not name an existing mapping node"}
	}
	if op.Key == "" {
		return &EditApplicationError{Op: op, Reason: "empty key"}
	}

	switch op.Kind {
	case OpSetAttr:
		for i := 0; i+1 < len(target.Content); i += 2 {
			if target.Content[i].Value == op.Key {
				if target.Content[i+1].Kind != yaml.ScalarNode {
					return &EditApplicationError{Op: op, Reason: "existing key holds a non-scalar node"}
				}
				target.Content[i+1] = scalarNode(op.Value)
				return nil
			}
		}
		// Absent attribute keys are created in place.
		target.Content = append(target.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: op.Key},
			scalarNode(op.Value))
		return nil

	case OpAddNode:
		for i := 0; i+1 < len(target.Content); i += 2 {
			if target.Content[i].Value == op.Key {
				if target.Content[i+1].Kind == yaml.MappingNode {
					return nil // already present
				}
				return &EditApplicationError{Op: op, Reason: "key exists but is not a mapping node"}
			}
		}
		target.Content = append(target.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: op.Key},
			&yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
		return nil

	case OpRemoveNode:
		for i := 0; i+1 < len(target.Content); i += 2 {
			if target.Content[i].Value == op.Key {
				target.Content = append(target.Content[:i], target.Content[i+2:]...)
				return nil
			}
		}
		return &EditApplicationError{Op: op, Reason: "key not present under target node"}

	default:
		return &EditApplicationError{Op: op, Reason: "unknown operation kind"}
	}
}

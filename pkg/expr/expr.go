// Package expr provides the expression trees compiled by a projector.
//
// An expression is a tree of nodes paired with the output field it produces.
// Its canonical string form is stable and is what build fingerprints are
// derived from, so two structurally identical trees always render to the
// same string.
package expr

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Node is a single vertex of an expression tree.
type Node interface {
	fmt.Stringer

	// ReturnType returns the Arrow type the node evaluates to.
	ReturnType() arrow.DataType
}

// FieldNode references an input column by its schema field.
type FieldNode struct {
	field arrow.Field
}

var _ Node = (*FieldNode)(nil)

// NewField returns a node referencing the input column described by field.
func NewField(field arrow.Field) *FieldNode {
	return &FieldNode{field: field}
}

// Field returns the referenced schema field.
func (n *FieldNode) Field() arrow.Field { return n.field }

// ReturnType implements Node.
func (n *FieldNode) ReturnType() arrow.DataType { return n.field.Type }

// String implements Node.
func (n *FieldNode) String() string {
	return fmt.Sprintf("(%s) %s", n.field.Type.Name(), n.field.Name)
}

// LiteralNode holds a typed constant.
type LiteralNode struct {
	value any
	dt    arrow.DataType
}

var _ Node = (*LiteralNode)(nil)

// NewLiteral returns a node holding a constant of the given type. A nil
// value represents a typed null.
func NewLiteral(value any, dt arrow.DataType) *LiteralNode {
	return &LiteralNode{value: value, dt: dt}
}

// Value returns the constant value, or nil for a typed null.
func (n *LiteralNode) Value() any { return n.value }

// ReturnType implements Node.
func (n *LiteralNode) ReturnType() arrow.DataType { return n.dt }

// String implements Node.
func (n *LiteralNode) String() string {
	if n.value == nil {
		return fmt.Sprintf("(const %s) null", n.dt.Name())
	}
	return fmt.Sprintf("(const %s) %v", n.dt.Name(), n.value)
}

// FuncNode applies a named function to argument nodes.
type FuncNode struct {
	name    string
	args    []Node
	retType arrow.DataType
}

var _ Node = (*FuncNode)(nil)

// NewCall returns a node applying the named function to args, producing
// retType.
func NewCall(name string, args []Node, retType arrow.DataType) *FuncNode {
	return &FuncNode{name: name, args: args, retType: retType}
}

// Name returns the function name.
func (n *FuncNode) Name() string { return n.name }

// Args returns the argument nodes in declaration order.
func (n *FuncNode) Args() []Node { return n.args }

// ReturnType implements Node.
func (n *FuncNode) ReturnType() arrow.DataType { return n.retType }

// String implements Node.
func (n *FuncNode) String() string {
	out := fmt.Sprintf("%s %s(", n.retType.Name(), n.name)
	for i, arg := range n.args {
		if i > 0 {
			out += ", "
		}
		out += arg.String()
	}
	return out + ")"
}

// Expression pairs a root node with the output field its evaluation
// produces. The result field's type and name are known before compilation.
type Expression struct {
	root   Node
	result arrow.Field
}

// New returns an expression evaluating root into the given result field.
func New(root Node, result arrow.Field) *Expression {
	return &Expression{root: root, result: result}
}

// NewProjection returns an expression evaluating root into a nullable
// result field named name, typed after the root's return type.
func NewProjection(root Node, name string) *Expression {
	return New(root, arrow.Field{Name: name, Type: root.ReturnType(), Nullable: true})
}

// Root returns the root node of the tree.
func (e *Expression) Root() Node { return e.root }

// Result returns the output field descriptor.
func (e *Expression) Result() arrow.Field { return e.result }

// String returns the canonical form of the expression. Structurally equal
// expressions render identically, so the form is suitable as a fingerprint
// component.
func (e *Expression) String() string {
	return fmt.Sprintf("%s => %s", e.root, e.result.Name)
}

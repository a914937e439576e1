package backend

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/columnbase/projector/pkg/expr"
)

// Validator checks that expressions can be compiled against a schema and a
// backend's type system. It is consulted once per expression at build
// time, before any code generation happens.
type Validator struct {
	types  TypeSet
	schema *arrow.Schema
	fields map[string]arrow.Field
}

// NewValidator returns a validator for the given type system and bound
// schema.
func NewValidator(types TypeSet, schema *arrow.Schema) *Validator {
	fields := make(map[string]arrow.Field, schema.NumFields())
	for _, f := range schema.Fields() {
		fields[f.Name] = f
	}
	return &Validator{types: types, schema: schema, fields: fields}
}

// Validate reports whether the expression is compilable: every referenced
// field must exist in the schema with a matching type, and every node type
// must be supported by the backend.
func (v *Validator) Validate(e *expr.Expression) error {
	if e == nil {
		return errors.New("expression cannot be nil")
	}
	if !v.types.Supported(e.Result().Type) {
		return fmt.Errorf("result type %s of expression %s is not supported", e.Result().Type, e)
	}
	return v.validateNode(e.Root())
}

func (v *Validator) validateNode(n expr.Node) error {
	switch n := n.(type) {
	case *expr.FieldNode:
		field, ok := v.fields[n.Field().Name]
		if !ok {
			return fmt.Errorf("field %s not found in schema", n.Field().Name)
		}
		if !arrow.TypeEqual(field.Type, n.Field().Type) {
			return fmt.Errorf("field %s has type %s in schema, expression declares %s",
				n.Field().Name, field.Type, n.Field().Type)
		}
		if !v.types.Supported(field.Type) {
			return fmt.Errorf("type %s of field %s is not supported", field.Type, n.Field().Name)
		}
		return nil

	case *expr.LiteralNode:
		if !v.types.Supported(n.ReturnType()) {
			return fmt.Errorf("literal type %s is not supported", n.ReturnType())
		}
		return nil

	case *expr.FuncNode:
		if !v.types.Supported(n.ReturnType()) {
			return fmt.Errorf("return type %s of function %s is not supported", n.ReturnType(), n.Name())
		}
		for _, arg := range n.Args() {
			if err := v.validateNode(arg); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown expression node %T", n)
	}
}

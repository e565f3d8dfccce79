package main

import (
	"fmt"

	"github.com/kestrelre/manascope/model"
)

// formatValue renders a TypedValue the way a human operator reads it on
// a terminal: primitives inline, pointers and dictionaries by shape and
// address rather than a full recursive dump (read_data already bounds
// depth by path length; the CLI does not add its own recursion).
func formatValue(v model.TypedValue) string {
	switch v.Kind {
	case model.ValueNull:
		return "null"
	case model.ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case model.ValueInt32:
		return fmt.Sprintf("%d", v.Int32)
	case model.ValueInt64:
		return fmt.Sprintf("%d", v.Int64)
	case model.ValueUInt32:
		return fmt.Sprintf("%d", v.UInt32)
	case model.ValueUInt64:
		return fmt.Sprintf("%d", v.UInt64)
	case model.ValueFloat:
		return fmt.Sprintf("%g", v.Float32)
	case model.ValueDouble:
		return fmt.Sprintf("%g", v.Float64)
	case model.ValueString:
		return fmt.Sprintf("%q", v.Str)
	case model.ValuePointer:
		if v.Pointer.ClassName != "" {
			return fmt.Sprintf("-> %#x (%s)", v.Pointer.Address, v.Pointer.ClassName)
		}
		return fmt.Sprintf("-> %#x", v.Pointer.Address)
	case model.ValueArray:
		return fmt.Sprintf("array[%d]", len(v.Array))
	case model.ValueDictionary:
		return fmt.Sprintf("dictionary[%d entries]", len(v.Dict))
	case model.ValueObject:
		if v.Object == nil {
			return "object(nil)"
		}
		return fmt.Sprintf("object %s.%s @ %#x", v.Object.Namespace, v.Object.ClassName, v.Object.Address)
	default:
		return "?"
	}
}

// Package buildutil provides helpers for reading call attributes out of
// buildtools syntax trees.
package buildutil

import (
	"github.com/bazelbuild/buildtools/build"
)

// Attr returns the expression bound to a named argument of call, or nil.
func Attr(call *build.CallExpr, name string) build.Expr {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if lhs, ok := assign.LHS.(*build.Ident); ok && lhs.Name == name {
			return assign.RHS
		}
	}
	return nil
}

// String extracts a string attribute from a function call by name.
// If name is empty and the call has positional arguments, returns the first
// positional string argument.
// Returns empty string if the attribute is not found or not a string.
func String(call *build.CallExpr, name string) string {
	if s := StringExpr(call, name); s != nil {
		return s.Value
	}
	return ""
}

// StringExpr is like String but returns the literal node, so callers can
// see where it sits in the source.
func StringExpr(call *build.CallExpr, name string) *build.StringExpr {
	if name == "" {
		if len(call.List) == 0 {
			return nil
		}
		s, _ := call.List[0].(*build.StringExpr)
		return s
	}
	s, _ := Attr(call, name).(*build.StringExpr)
	return s
}

// Bool extracts a boolean attribute from a function call by name.
// Returns false if the attribute is not found or not True.
func Bool(call *build.CallExpr, name string) bool {
	ident, ok := Attr(call, name).(*build.Ident)
	return ok && ident.Name == "True"
}

// FuncName returns the function name from a CallExpr.
// Returns empty string if the call is not a simple function call
// (e.g., method calls like foo.bar()).
func FuncName(call *build.CallExpr) string {
	if ident, ok := call.X.(*build.Ident); ok {
		return ident.Name
	}
	return ""
}

// Calls returns the top-level calls to the named function, in file order.
func Calls(f *build.File, name string) []*build.CallExpr {
	var out []*build.CallExpr
	for _, stmt := range f.Stmt {
		if call, ok := stmt.(*build.CallExpr); ok && FuncName(call) == name {
			out = append(out, call)
		}
	}
	return out
}

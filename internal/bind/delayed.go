package bind

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// DelayedFieldResolver evaluates fields that reference bind.* variables now
// that the variable cache is complete.
type DelayedFieldResolver struct{ stageInfo }

func NewDelayedFieldResolver() *DelayedFieldResolver {
	return &DelayedFieldResolver{stageInfo{
		name:   "delayed-field-resolver",
		access: Access{Reads: []Slot{SlotIntermediate, SlotVariables}, Writes: []Slot{SlotIntermediate}},
	}}
}

func (s *DelayedFieldResolver) Applies(st *State) bool {
	return len(st.Intermediate.DelayedFields) > 0
}

func (s *DelayedFieldResolver) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	resolved := 0

	for _, df := range st.Intermediate.DelayedFields {
		rec := st.Section.Find(df.RecordType, df.RecordID)
		if rec == nil {
			ds.Errorf(diag.CodeUnresolvedDelayedField, df.Source, "delayed field %s of %s/%s has no record", df.Field, df.RecordType, df.RecordID)
			continue
		}
		value, fieldDiags := EvalDelayed(df, st.Variables)
		if len(fieldDiags) > 0 {
			ds = append(ds, fieldDiags...)
			continue
		}
		rec.Set(df.Field, value)
		resolved++
	}
	ctxlog.FromContext(ctx).Debug("Resolved delayed fields.", "resolved", resolved, "total", len(st.Intermediate.DelayedFields))
	return ds
}

// EvalDelayed evaluates the expression of df against the variable cache.
// Variable lookups ignore case; the expression sees the names as written.
func EvalDelayed(df ir.DelayedField, vars VariableCache) (string, diag.Diagnostics) {
	var ds diag.Diagnostics

	expr, hd := hclsyntax.ParseExpression([]byte(df.Expression), df.Source, hcl.InitialPos)
	if hd.HasErrors() {
		ds.Errorf(diag.CodeUnresolvedDelayedField, df.Source, "cannot parse %q: %s", df.Expression, hd.Error())
		return "", ds
	}

	root := map[string]any{}
	for _, traversal := range expr.Variables() {
		if traversal.RootName() != ir.BindRoot {
			ds.Errorf(diag.CodeUnknownBindVariable, df.Source, "unknown variable %q in %q", traversal.RootName(), df.Expression)
			continue
		}
		path, err := traversalPath(traversal)
		if err != nil {
			ds.Errorf(diag.CodeUnresolvedDelayedField, df.Source, "%v", err)
			continue
		}
		value, ok := vars.Get(strings.Join(path, "."))
		if !ok {
			ds.Errorf(diag.CodeUnknownBindVariable, df.Source, "bind variable %q is not defined", strings.Join(path, "."))
			continue
		}
		if err := insertPath(root, path, value); err != nil {
			ds.Errorf(diag.CodeUnresolvedDelayedField, df.Source, "%v", err)
		}
	}
	if len(ds) > 0 {
		return "", ds
	}

	evalCtx := &hcl.EvalContext{Variables: map[string]cty.Value{ir.BindRoot: objectOf(root)}}
	val, hd := expr.Value(evalCtx)
	if hd.HasErrors() {
		ds.Errorf(diag.CodeUnresolvedDelayedField, df.Source, "cannot evaluate %q: %s", df.Expression, hd.Error())
		return "", ds
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil || str.IsNull() {
		ds.Errorf(diag.CodeUnresolvedDelayedField, df.Source, "%q does not evaluate to a string", df.Expression)
		return "", ds
	}
	return str.AsString(), nil
}

// traversalPath returns the names after the root of a bind.* traversal.
func traversalPath(t hcl.Traversal) ([]string, error) {
	var path []string
	for _, step := range t[1:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			path = append(path, s.Name)
		case hcl.TraverseIndex:
			if s.Key.Type() != cty.String {
				return nil, fmt.Errorf("bind variables are indexed by name, got %s", s.Key.Type().FriendlyName())
			}
			path = append(path, s.Key.AsString())
		default:
			return nil, fmt.Errorf("unsupported traversal of bind variables")
		}
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("bind must be followed by a variable name")
	}
	return path, nil
}

func insertPath(node map[string]any, path []string, value string) error {
	for i, name := range path {
		if i == len(path)-1 {
			if _, isObj := node[name].(map[string]any); isObj {
				return fmt.Errorf("bind variable %s is used both as a value and as a prefix", strings.Join(path, "."))
			}
			node[name] = value
			return nil
		}
		child, ok := node[name]
		if !ok {
			next := map[string]any{}
			node[name] = next
			node = next
			continue
		}
		next, isObj := child.(map[string]any)
		if !isObj {
			return fmt.Errorf("bind variable %s is used both as a value and as a prefix", strings.Join(path[:i+1], "."))
		}
		node = next
	}
	return nil
}

func objectOf(node map[string]any) cty.Value {
	attrs := make(map[string]cty.Value, len(node))
	for k, v := range node {
		switch v := v.(type) {
		case string:
			attrs[k] = cty.StringVal(v)
		case map[string]any:
			attrs[k] = objectOf(v)
		}
	}
	return cty.ObjectVal(attrs)
}

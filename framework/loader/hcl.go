package loader

import (
	"fmt"
	"log/slog"
	"math/big"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// NewHCLLoader returns the loader for .hcl files. Top-level attributes form
// the document; expressions may use the project_dir variable, env("NAME")
// and a handful of string functions.
//
//	deptrac = {
//	  paths      = ["${project_dir}/src"]
//	  cache_file = env("DEPTRAC_CACHE")
//	}
func NewHCLLoader(locator *FileLocator, logger *slog.Logger) *FileLoader {
	return NewFileLoader("hcl", []string{"hcl"}, decodeHCL, locator, logger)
}

func decodeHCL(data []byte, file string) (map[string]any, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(data, file)
	if diags.HasErrors() {
		return nil, diags
	}

	attrs, diags := f.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	ctx := evalContext(filepath.Dir(file))
	doc := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return nil, diags
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("in attribute '%s': %w", name, err)
		}
		doc[name] = native
	}
	return doc, nil
}

func evalContext(projectDir string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project_dir": cty.StringVal(projectDir),
		},
		Functions: map[string]function.Function{
			"env":     envFunc,
			"upper":   stdlib.UpperFunc,
			"lower":   stdlib.LowerFunc,
			"join":    stdlib.JoinFunc,
			"format":  stdlib.FormatFunc,
			"concat":  stdlib.ConcatFunc,
			"replace": stdlib.ReplaceFunc,
		},
	}
}

// envFunc defers to the container's env placeholders, so variables are read
// when the container compiles rather than while the file is parsed.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "name", Type: cty.String}},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal("%env(" + args[0].AsString() + ")%"), nil
	},
})

// ctyToNative recursively converts a cty.Value to its most natural Go
// counterpart. Integral numbers become int so they read like YAML integers.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert cty.Number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, val := it.Element()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nativeVal)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, val := it.Element()
			keyStr := key.AsString()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			goMap[keyStr] = nativeVal
		}
		return goMap, nil

	default:
		return nil, fmt.Errorf("unsupported cty type for conversion: %s", ty.FriendlyName())
	}
}

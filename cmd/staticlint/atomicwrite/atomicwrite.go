// Package atomicwrite defines an analyzer that reports writes which replace a
// file in place. A reader running concurrently with such a write can observe a
// truncated file, so data files are written to a temporary file in the same
// directory and renamed over the target instead.
package atomicwrite

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer reports calls to os.WriteFile, os.Create and os.OpenFile with O_TRUNC
// outside of test files.
var Analyzer = &analysis.Analyzer{
	Name: "atomicwrite",
	Doc:  "reports in-place file rewrites; write a temp file and rename it instead",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) || strings.HasSuffix(filename, "_test.go") {
			continue
		}

		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}

			name, ok := osFunc(pass, call)
			if !ok {
				return true
			}

			switch name {
			case "WriteFile", "Create":
				pass.Reportf(call.Pos(), "os.%s rewrites the file in place; write a temp file and rename it", name)
			case "OpenFile":
				if len(call.Args) > 1 && mentionsTrunc(pass, call.Args[1]) {
					pass.Reportf(call.Pos(), "os.OpenFile with O_TRUNC rewrites the file in place; write a temp file and rename it")
				}
			}

			return true
		})
	}
	return nil, nil
}

// osFunc returns the name of the function called when call is a call of a
// package-level function of "os".
func osFunc(pass *analysis.Pass, call *ast.CallExpr) (string, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}

	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return "", false
	}

	pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	if !ok || pkgName.Imported().Path() != "os" {
		return "", false
	}

	return sel.Sel.Name, true
}

func mentionsTrunc(pass *analysis.Pass, expr ast.Expr) bool {
	found := false
	ast.Inspect(expr, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "O_TRUNC" {
			return true
		}
		if ident, ok := sel.X.(*ast.Ident); ok {
			if pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName); ok && pkgName.Imported().Path() == "os" {
				found = true
			}
		}
		return !found
	})
	return found
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/")
}

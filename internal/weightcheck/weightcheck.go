// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package weightcheck finds multiplications that involve a provider
// weight. Provider authority weights may only be applied by the ranking
// stage; running Check over the adapter and boost packages must report
// nothing.
//
// An operand counts as a weight when any identifier or field name inside
// it contains "weight" (case-insensitive), so p.Weight, providerWeight
// and cfg.Weights[name] are all caught.
package weightcheck

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Violation is one offending expression.
type Violation struct {
	Pos  token.Position
	Expr string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: weight multiplication: %s", v.Pos, v.Expr)
}

// Check parses the non-test Go files of each directory and reports every
// multiplication with a weight operand, sorted by position.
func Check(dirs ...string) ([]Violation, error) {
	fset := token.NewFileSet()
	var out []Violation
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			path := filepath.Join(dir, name)
			f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			out = append(out, checkFile(fset, f)...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Filename != out[j].Pos.Filename {
			return out[i].Pos.Filename < out[j].Pos.Filename
		}
		return out[i].Pos.Offset < out[j].Pos.Offset
	})
	return out, nil
}

// CheckSource checks a single file's source text.
func CheckSource(filename string, src []byte) ([]Violation, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return checkFile(fset, f), nil
}

func checkFile(fset *token.FileSet, f *ast.File) []Violation {
	var out []Violation
	ast.Inspect(f, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.BinaryExpr:
			if x.Op == token.MUL && (mentionsWeight(x.X) || mentionsWeight(x.Y)) {
				out = append(out, violation(fset, x))
				return false
			}
		case *ast.AssignStmt:
			if x.Tok != token.MUL_ASSIGN {
				return true
			}
			for _, e := range append(append([]ast.Expr{}, x.Lhs...), x.Rhs...) {
				if mentionsWeight(e) {
					out = append(out, violation(fset, x))
					return false
				}
			}
		}
		return true
	})
	return out
}

func mentionsWeight(e ast.Expr) bool {
	found := false
	ast.Inspect(e, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && strings.Contains(strings.ToLower(id.Name), "weight") {
			found = true
		}
		return !found
	})
	return found
}

func violation(fset *token.FileSet, n ast.Node) Violation {
	return Violation{Pos: fset.Position(n.Pos()), Expr: render(n)}
}

// render prints a compact form of the expression for the report.
func render(n ast.Node) string {
	switch x := n.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.BasicLit:
		return x.Value
	case *ast.SelectorExpr:
		return render(x.X) + "." + x.Sel.Name
	case *ast.BinaryExpr:
		return render(x.X) + " " + x.Op.String() + " " + render(x.Y)
	case *ast.ParenExpr:
		return "(" + render(x.X) + ")"
	case *ast.IndexExpr:
		return render(x.X) + "[" + render(x.Index) + "]"
	case *ast.CallExpr:
		return render(x.Fun) + "(...)"
	case *ast.UnaryExpr:
		return x.Op.String() + render(x.X)
	case *ast.StarExpr:
		return "*" + render(x.X)
	case *ast.AssignStmt:
		if len(x.Lhs) == 1 && len(x.Rhs) == 1 {
			return render(x.Lhs[0]) + " " + x.Tok.String() + " " + render(x.Rhs[0])
		}
		return x.Tok.String()
	default:
		return fmt.Sprintf("%T", n)
	}
}

package compiler

import (
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/parser"
)

// Summary is a serialisable overview of a compiled model.
type Summary struct {
	Class      string         `json:"class"`
	Variables  []VariableInfo `json:"variables"`
	Datasets   []string       `json:"datasets"`
	Complexity ast.Complexity `json:"complexity"`
	Score      int            `json:"complexity_score"`
	Level      string         `json:"complexity_level"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// VariableInfo describes one decision variable.
type VariableInfo struct {
	Name     string   `json:"name"`
	Indices  []string `json:"indices,omitempty"`
	Domain   string   `json:"domain"`
	Declared bool     `json:"declared"`
}

// Summary builds the model overview.
func (m *CompiledModel) Summary() Summary {
	s := summarize(m.result)
	for _, w := range m.Warnings() {
		s.Warnings = append(s.Warnings, w.String())
	}
	return s
}

// Analyze summarises source without binding data. A single line that is
// not a model is analysed as a standalone expression, optionally followed
// by "for" clauses.
func Analyze(source string) (Summary, error) {
	res, err := ast.Parse(source)
	if err != nil {
		if strings.ContainsAny(strings.TrimSpace(source), "\r\n") {
			return Summary{}, err
		}
		tree, exprErr := parser.ParseExpression(source)
		if exprErr != nil {
			return Summary{}, err
		}
		if res, exprErr = ast.Transform(tree); exprErr != nil {
			return Summary{}, exprErr
		}
	}
	return summarize(res), nil
}

func summarize(res *ast.Result) Summary {
	s := Summary{
		Class:      string(ast.Classify(res.Model)),
		Variables:  []VariableInfo{},
		Datasets:   []string{},
		Complexity: res.Complexity,
		Score:      res.Complexity.Total(),
		Level:      string(res.Complexity.Level()),
	}
	for _, v := range res.Variables {
		s.Variables = append(s.Variables, VariableInfo{
			Name:     v.Name,
			Indices:  append([]string(nil), v.Indices...),
			Domain:   string(v.Domain),
			Declared: v.Declared,
		})
	}
	for _, d := range res.Datasets {
		s.Datasets = append(s.Datasets, d.String())
	}
	return s
}

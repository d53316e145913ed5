package lint

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/token"
)

// Severity indicates the importance of a diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError indicates a model that will not compile or solve.
	SeverityError Severity = iota
	// SeverityWarning indicates a likely mistake.
	SeverityWarning
	// SeverityInfo indicates informational feedback.
	SeverityInfo
	// SeverityHint indicates a suggestion for improvement.
	SeverityHint
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	case "hint":
		return SeverityHint, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Input is what rules inspect. Model-level fields are nil when the
// source does not parse.
type Input struct {
	Source string
	Tokens []token.Token
	// Result is the transformed model, nil when parsing failed.
	Result *ast.Result
	// Usage is the name usage of the model, nil when parsing failed.
	Usage *ast.Usage
	// ParseErr is the syntax error, if any.
	ParseErr error
}

// Model returns the parsed model or nil.
func (in *Input) Model() *ast.Model {
	if in.Result == nil {
		return nil
	}
	return in.Result.Model
}

// RuleDef is a data-driven rule definition. Rules are stateless: all
// context comes through the Check parameters.
type RuleDef struct {
	ID          string   // Unique identifier, e.g. "OB01"
	Name        string   // Human-readable name, e.g. "objective.missing"
	Group       string   // Category, e.g. "objective"
	Description string   // Human-readable description
	Severity    Severity // Default severity
	// Source marks rules that only need the token stream; they run even
	// when the model does not parse.
	Source     bool
	ConfigKeys []string // Rule options accepted from configuration
	Check      CheckFunc
}

// CheckFunc analyzes a model and returns diagnostics. RuleID and Severity
// are filled in by the analyzer.
type CheckFunc func(in *Input, opts map[string]any) []Diagnostic

// Diagnostic represents a lint finding.
type Diagnostic struct {
	RuleID   string         `json:"rule"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Pos      token.Position `json:"position"`
}

// String renders "line:col severity RULE message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d %s %s %s", d.Pos.Line, d.Pos.Column, d.Severity, d.RuleID, d.Message)
}

// RuleInfo provides metadata about a rule for documentation and tooling.
type RuleInfo struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Group           string   `json:"group"`
	Description     string   `json:"description"`
	DefaultSeverity Severity `json:"default_severity"`
	ConfigKeys      []string `json:"config_keys,omitempty"`
}

// Info extracts the metadata of a rule.
func (r RuleDef) Info() RuleInfo {
	return RuleInfo{
		ID:              r.ID,
		Name:            r.Name,
		Group:           r.Group,
		Description:     r.Description,
		DefaultSeverity: r.Severity,
		ConfigKeys:      r.ConfigKeys,
	}
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

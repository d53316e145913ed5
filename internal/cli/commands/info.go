package commands

import (
	"strings"

	"github.com/leapstack-labs/leapopt/internal/adapter"
	"github.com/leapstack-labs/leapopt/internal/cli/output"
	"github.com/leapstack-labs/leapopt/pkg/ast"
	"github.com/leapstack-labs/leapopt/pkg/codegen"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/solver"
	"github.com/leapstack-labs/leapopt/pkg/token"
	"github.com/spf13/cobra"
)

// languageInfo is the JSON shape of the info command.
type languageInfo struct {
	Keywords  map[string][]string `json:"keywords"`
	Words     map[string][]string `json:"contextual_words"`
	Domains   []string            `json:"domains"`
	Functions []string            `json:"functions"`
	Backends  []string            `json:"backends"`
	Sources   []string            `json:"source_types"`
	Rules     []lint.RuleInfo     `json:"lint_rules"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the language reference",
		Long: `List the keywords and their aliases, variable domains, functions,
solver backends, data source types and lint rules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderInfo(NewCommandContext(cmd).Renderer, collectInfo())
		},
	}
}

func collectInfo() languageInfo {
	info := languageInfo{
		Keywords:  make(map[string][]string),
		Words:     make(map[string][]string),
		Domains:   []string{string(ast.Continuous), string(ast.Integer), string(ast.Binary)},
		Functions: codegen.Functions(),
		Backends:  solver.List(),
		Sources:   adapter.ListAdapters(),
	}
	for _, a := range token.Aliases() {
		if a.Reserved {
			info.Keywords[a.Canonical] = append(info.Keywords[a.Canonical], a.Word)
		} else {
			info.Words[a.Canonical] = append(info.Words[a.Canonical], a.Word)
		}
	}
	for _, rule := range lint.GetAll() {
		info.Rules = append(info.Rules, rule.Info())
	}
	return info
}

func renderInfo(r *output.Renderer, info languageInfo) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	r.Header(1, "Language reference")
	r.Header(2, "Keywords")
	r.Table([]string{"Keyword", "Accepted words"}, aliasRows(info.Keywords))
	r.Header(2, "Contextual words")
	r.Table([]string{"Meaning", "Accepted words"}, aliasRows(info.Words))

	r.Header(2, "Reference")
	r.Println(output.FormatKeyValue("Domains", strings.Join(info.Domains, ", ")))
	r.Println(output.FormatKeyValue("Functions", strings.Join(info.Functions, ", ")))
	r.Println(output.FormatKeyValue("Solver backends", strings.Join(info.Backends, ", ")))
	r.Println(output.FormatKeyValue("Source types", strings.Join(info.Sources, ", ")))
	r.Println()

	r.Header(2, "Lint rules")
	rows := make([][]string, len(info.Rules))
	for i, rule := range info.Rules {
		rows[i] = []string{rule.ID, rule.Name, rule.DefaultSeverity.String(), rule.Description}
	}
	r.Table([]string{"ID", "Name", "Severity", "Description"}, rows)
	return nil
}

func aliasRows(aliases map[string][]string) [][]string {
	names := sortedNames(aliases)
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, strings.Join(aliases[name], ", ")}
	}
	return rows
}

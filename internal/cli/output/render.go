package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/leapopt/internal/engine"
	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/solver"
)

// SolveOutput is the JSON shape of a solve.
type SolveOutput struct {
	Name     string           `json:"name,omitempty"`
	Summary  compiler.Summary `json:"summary"`
	Result   *solver.Result   `json:"result"`
	RecordID string           `json:"record_id,omitempty"`
}

// LintDiagnostic is one diagnostic in JSON output.
type LintDiagnostic struct {
	RuleID   string `json:"rule_id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// LintFileResult groups the diagnostics of one file.
type LintFileResult struct {
	Path        string           `json:"path"`
	Diagnostics []LintDiagnostic `json:"diagnostics"`
}

// LintSummary counts diagnostics by severity.
type LintSummary struct {
	FilesAnalyzed int `json:"files_analyzed"`
	TotalIssues   int `json:"total_issues"`
	Errors        int `json:"errors"`
	Warnings      int `json:"warnings"`
	Info          int `json:"info"`
	Hints         int `json:"hints"`
}

// LintOutput is the JSON shape of a lint run.
type LintOutput struct {
	Summary LintSummary      `json:"summary"`
	Files   []LintFileResult `json:"files"`
}

// BatchFile is one model of a batch in JSON output.
type BatchFile struct {
	Path      string   `json:"path"`
	OK        bool     `json:"ok"`
	Class     string   `json:"class,omitempty"`
	Status    string   `json:"status,omitempty"`
	Objective *float64 `json:"objective,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// BatchOutput is the JSON shape of a batch.
type BatchOutput struct {
	ID        string      `json:"id"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Duration  string      `json:"duration"`
	Files     []BatchFile `json:"files"`
}

// ModelSummary renders the overview of a compiled model.
func (r *Renderer) ModelSummary(name string, s compiler.Summary) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(s)
	}

	title := "Model"
	if name != "" {
		title = "Model " + name
	}
	r.Header(1, title)

	vars := make([]string, 0, len(s.Variables))
	for _, v := range s.Variables {
		key := v.Name
		if len(v.Indices) > 0 {
			key += "[" + strings.Join(v.Indices, ",") + "]"
		}
		if !v.Declared {
			key += " (undeclared)"
		}
		vars = append(vars, key)
	}
	r.keyValue("Class", s.Class)
	r.keyValue("Variables", listOrNone(vars))
	r.keyValue("Datasets", listOrNone(s.Datasets))
	r.keyValue("Complexity", fmt.Sprintf("%d (%s)", s.Score, s.Level))
	for _, w := range s.Warnings {
		r.Warning(w)
	}
	return nil
}

// SolveResult renders a solver result. With nonZero, variables at zero are
// left out.
func (r *Renderer) SolveResult(out SolveOutput, nonZero bool) error {
	res := out.Result
	if r.EffectiveMode() == ModeJSON {
		if nonZero {
			trimmed := *res
			trimmed.Variables = res.NonZeroVariables()
			out.Result = &trimmed
		}
		return r.JSON(out)
	}

	r.Header(1, "Result")
	status := string(res.Status)
	if res.IsOptimal() {
		status = r.styles.Success.Render(status)
	} else {
		status = r.styles.Warning.Render(status)
	}
	r.keyValue("Status", status)
	if res.Objective != nil {
		r.keyValue("Objective", formatFloat(*res.Objective))
	}
	r.keyValue("Solver", res.Solver)
	r.keyValue("Elapsed", res.Elapsed.Round(time.Microsecond).String())
	if res.Message != "" {
		r.keyValue("Message", res.Message)
	}
	if out.RecordID != "" {
		r.keyValue("Record", out.RecordID)
	}

	vars := res.Variables
	if nonZero {
		vars = res.NonZeroVariables()
	}
	if len(vars) == 0 {
		return nil
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, formatFloat(vars[name])}
	}
	r.Println()
	r.Table([]string{"Variable", "Value"}, rows)
	return nil
}

// Diagnostics renders lint results and reports whether there were any.
func (r *Renderer) Diagnostics(results []LintFileResult) (bool, error) {
	summary := LintSummary{FilesAnalyzed: len(results)}
	var withIssues []LintFileResult
	for _, res := range results {
		if len(res.Diagnostics) > 0 {
			withIssues = append(withIssues, res)
		}
		summary.TotalIssues += len(res.Diagnostics)
		for _, d := range res.Diagnostics {
			switch d.Severity {
			case lint.SeverityError.String():
				summary.Errors++
			case lint.SeverityWarning.String():
				summary.Warnings++
			case lint.SeverityInfo.String():
				summary.Info++
			case lint.SeverityHint.String():
				summary.Hints++
			}
		}
	}

	if r.EffectiveMode() == ModeJSON {
		if withIssues == nil {
			withIssues = []LintFileResult{}
		}
		return summary.TotalIssues > 0, r.JSON(LintOutput{Summary: summary, Files: withIssues})
	}
	if summary.TotalIssues == 0 {
		r.Success("No lint issues found")
		return false, nil
	}

	for _, res := range withIssues {
		r.Println(r.styles.ModelPath.Render(res.Path))
		for _, d := range res.Diagnostics {
			loc := fmt.Sprintf("%d:%d", d.Line, d.Column)
			if d.Line == 0 {
				loc = "-"
			}
			r.Printf("  %s  %s  %s  %s\n",
				r.styles.Muted.Render(fmt.Sprintf("%-5s", loc)),
				r.severity(d.Severity),
				r.styles.Bold.Render(d.RuleID),
				d.Message,
			)
		}
		r.Println()
	}

	parts := []string{fmt.Sprintf("%d issues", summary.TotalIssues)}
	if summary.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", summary.Errors))
	}
	if summary.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", summary.Warnings))
	}
	if summary.Info > 0 {
		parts = append(parts, fmt.Sprintf("%d info", summary.Info))
	}
	if summary.Hints > 0 {
		parts = append(parts, fmt.Sprintf("%d hints", summary.Hints))
	}
	r.Printf("Summary: %s in %d files\n", strings.Join(parts, ", "), summary.FilesAnalyzed)
	return true, nil
}

// ToLintFileResult converts analyzer diagnostics.
func ToLintFileResult(path string, diags []lint.Diagnostic) LintFileResult {
	res := LintFileResult{Path: path, Diagnostics: []LintDiagnostic{}}
	for _, d := range diags {
		res.Diagnostics = append(res.Diagnostics, LintDiagnostic{
			RuleID:   d.RuleID,
			Severity: d.Severity.String(),
			Message:  d.Message,
			Line:     d.Pos.Line,
			Column:   d.Pos.Column,
		})
	}
	return res
}

func (r *Renderer) severity(sev string) string {
	switch sev {
	case "error":
		return r.styles.Error.Render("error  ")
	case "warning":
		return r.styles.Warning.Render("warning")
	case "info":
		return r.styles.Info.Render("info   ")
	case "hint":
		return r.styles.Muted.Render("hint   ")
	default:
		return r.styles.Muted.Render("unknown")
	}
}

// Batch renders a batch result.
func (r *Renderer) Batch(b *engine.BatchResult) error {
	out := BatchOutput{
		ID:        b.ID,
		Total:     len(b.Files),
		Succeeded: b.Succeeded(),
		Failed:    b.Failed(),
		Duration:  b.Duration.Round(time.Millisecond).String(),
		Files:     []BatchFile{},
	}
	for _, f := range b.Files {
		bf := BatchFile{Path: f.Path, OK: f.OK()}
		if f.Model != nil {
			bf.Class = string(f.Model.Class())
		}
		if f.Result != nil {
			bf.Status = string(f.Result.Status)
			bf.Objective = f.Result.Objective
			if !f.OK() {
				bf.Error = f.Result.Message
			}
		}
		if f.Err != nil {
			bf.Error = f.Err.Error()
		}
		out.Files = append(out.Files, bf)
	}

	if r.EffectiveMode() == ModeJSON {
		return r.JSON(out)
	}

	for _, f := range out.Files {
		detail := f.Class
		if f.Status != "" {
			detail += " " + f.Status
		}
		if f.Objective != nil {
			detail += " " + formatFloat(*f.Objective)
		}
		if f.OK {
			r.StatusLine(f.Path, "success", strings.TrimSpace(detail))
			continue
		}
		r.StatusLine(f.Path, "failed", "")
		for _, line := range strings.Split(f.Error, "\n") {
			r.Printf("    %s\n", r.styles.Error.Render(line))
		}
	}
	r.Println()
	r.Println(b.Summary())
	return nil
}

// History renders history records.
func (r *Renderer) History(records []*state.Record) error {
	if r.EffectiveMode() == ModeJSON {
		if records == nil {
			records = []*state.Record{}
		}
		return r.JSON(records)
	}
	if len(records) == 0 {
		r.Muted("No history recorded")
		return nil
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		objective := ""
		if rec.Objective != nil {
			objective = formatFloat(*rec.Objective)
		}
		valid := "yes"
		if !rec.Valid {
			valid = "no"
		}
		rows[i] = []string{
			shortID(rec.ID),
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Name,
			rec.Class,
			valid,
			rec.Status,
			objective,
		}
	}
	r.Table([]string{"ID", "Created", "Name", "Class", "Valid", "Status", "Objective"}, rows)
	return nil
}

// Record renders one history record in full.
func (r *Renderer) Record(rec *state.Record) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(rec)
	}
	r.Header(1, "Record "+rec.ID)
	r.keyValue("Created", rec.CreatedAt.Local().Format(time.RFC3339))
	if rec.Name != "" {
		r.keyValue("Name", rec.Name)
	}
	r.keyValue("Valid", fmt.Sprintf("%t", rec.Valid))
	if rec.Class != "" {
		r.keyValue("Class", rec.Class)
	}
	r.keyValue("Variables", fmt.Sprintf("%d", rec.VariableCount))
	r.keyValue("Complexity", fmt.Sprintf("%d", rec.Complexity))
	if rec.Status != "" {
		r.keyValue("Status", rec.Status)
	}
	if rec.Objective != nil {
		r.keyValue("Objective", formatFloat(*rec.Objective))
	}
	for _, e := range rec.Errors {
		r.keyValue("Error", e)
	}
	r.Println()
	r.codeBlock("Source", rec.Source)
	if rec.Program != "" {
		r.codeBlock("Program", rec.Program)
	}
	return nil
}

// Stats renders history statistics.
func (r *Renderer) Stats(st *state.Stats) error {
	if r.EffectiveMode() == ModeJSON {
		return r.JSON(st)
	}
	r.Header(1, "History")
	r.keyValue("Records", fmt.Sprintf("%d", st.Total))
	r.keyValue("Valid", fmt.Sprintf("%d", st.Valid))
	r.keyValue("Invalid", fmt.Sprintf("%d", st.Invalid))
	r.keyValue("Average complexity", formatFloat(st.AverageComplexity))

	rows := [][]string{}
	for _, k := range sortedKeys(st.ByClass) {
		rows = append(rows, []string{"class", k, fmt.Sprintf("%d", st.ByClass[k])})
	}
	for _, k := range sortedKeys(st.ByStatus) {
		rows = append(rows, []string{"status", k, fmt.Sprintf("%d", st.ByStatus[k])})
	}
	if len(rows) > 0 {
		r.Println()
		r.Table([]string{"Group", "Value", "Count"}, rows)
	}
	return nil
}

func (r *Renderer) keyValue(key, value string) {
	if r.EffectiveMode() == ModeText {
		r.Printf("%s %s\n", r.styles.Bold.Render(key+":"), value)
		return
	}
	r.Println(FormatKeyValue(key, value))
}

func (r *Renderer) codeBlock(title, body string) {
	if r.EffectiveMode() == ModeText {
		r.Println(r.styles.Header.Render(title))
		r.Println(strings.TrimRight(body, "\n"))
		r.Println()
		return
	}
	r.Println(FormatHeader(2, title))
	r.Println()
	r.Println("```")
	r.Println(strings.TrimRight(body, "\n"))
	r.Println("```")
	r.Println()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package solver

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// maxLineWidth keeps LP files under the 255 character line limit of the
// format.
const maxLineWidth = 200

// WriteLP writes p in CPLEX LP format.
func WriteLP(w io.Writer, p *Problem) error {
	bw := bufio.NewWriter(w)
	vars := p.Variables()

	fmt.Fprintf(bw, "\\ Problem: %s\n", p.Name)
	if p.Sense == Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	obj := lpTerms(p.Objective)
	if len(p.Objective.terms) == 0 && len(vars) > 0 {
		obj = "0 " + LPName(vars[0].Name)
	}
	if c := p.Objective.Constant; c != 0 {
		obj = strings.TrimSpace(obj + " " + signed(c))
	}
	writeWrapped(bw, " obj: "+obj)

	bw.WriteString("Subject To\n")
	for _, c := range p.Constraints {
		lhs := lpTerms(c.Expr)
		if lhs == "" {
			if len(vars) == 0 {
				fmt.Fprintf(bw, "\\ %s: constant constraint omitted\n", LPName(c.Name))
				continue
			}
			lhs = "0 " + LPName(vars[0].Name)
		}
		op := "<="
		switch c.Relation {
		case GE:
			op = ">="
		case EQ:
			op = "="
		}
		writeWrapped(bw, fmt.Sprintf(" %s: %s %s %s", LPName(c.Name), lhs, op, formatFloat(-c.Expr.Constant)))
	}

	var bounds, general, binary []string
	for _, v := range vars {
		name := LPName(v.Name)
		switch v.Category {
		case Binary:
			binary = append(binary, name)
			if v.Lower == 0 && v.Upper == 1 {
				continue
			}
		case Integer:
			general = append(general, name)
		}
		if b := lpBound(name, v.Lower, v.Upper); b != "" {
			bounds = append(bounds, b)
		}
	}
	if len(bounds) > 0 {
		bw.WriteString("Bounds\n")
		for _, b := range bounds {
			bw.WriteString(" " + b + "\n")
		}
	}
	if len(general) > 0 {
		bw.WriteString("General\n")
		writeWrapped(bw, " "+strings.Join(general, " "))
	}
	if len(binary) > 0 {
		bw.WriteString("Binary\n")
		writeWrapped(bw, " "+strings.Join(binary, " "))
	}
	bw.WriteString("End\n")
	return bw.Flush()
}

// lpBound renders a bounds line, or "" for the default [0, +inf).
func lpBound(name string, lo, up float64) string {
	switch {
	case math.IsInf(lo, -1) && math.IsInf(up, 1):
		return name + " free"
	case lo == up:
		return fmt.Sprintf("%s = %s", name, formatFloat(lo))
	case lo == 0 && math.IsInf(up, 1):
		return ""
	}
	return fmt.Sprintf("%s <= %s <= %s", lpNumber(lo), name, lpNumber(up))
}

func lpNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return formatFloat(f)
}

func lpTerms(e *Expr) string {
	var parts []string
	for i, t := range e.Terms() {
		coef := formatFloat(math.Abs(t.Coef))
		switch {
		case t.Coef < 0:
			parts = append(parts, "- "+coef+" "+LPName(t.Var.Name))
		case i == 0:
			parts = append(parts, coef+" "+LPName(t.Var.Name))
		default:
			parts = append(parts, "+ "+coef+" "+LPName(t.Var.Name))
		}
	}
	return strings.Join(parts, " ")
}

func signed(c float64) string {
	if c < 0 {
		return "- " + formatFloat(-c)
	}
	return "+ " + formatFloat(c)
}

// writeWrapped writes one logical line, breaking it at spaces so no
// physical line exceeds maxLineWidth.
func writeWrapped(w *bufio.Writer, line string) {
	for len(line) > maxLineWidth {
		cut := strings.LastIndexByte(line[:maxLineWidth], ' ')
		if cut <= 0 {
			break
		}
		w.WriteString(line[:cut] + "\n")
		line = " " + strings.TrimLeft(line[cut:], " ")
	}
	w.WriteString(line + "\n")
}

// LPName makes a name acceptable to LP readers: characters outside the
// format's name alphabet become underscores and names may not start with a
// digit or period.
func LPName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("!\"#$%&()/,.;?@_`'{}|~", r):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') || s[0] == '.' {
		s = "_" + s
	}
	return s
}

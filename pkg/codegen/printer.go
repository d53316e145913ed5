package codegen

import (
	"bytes"
	"strings"
)

const indentSize = 4

// printer writes indented program lines.
type printer struct {
	output *bytes.Buffer
	depth  int
}

func newPrinter() *printer {
	return &printer{output: &bytes.Buffer{}}
}

// String returns the program text with a single trailing newline.
func (p *printer) String() string {
	return strings.TrimRight(p.output.String(), "\n") + "\n"
}

// line writes one indented line.
func (p *printer) line(s string) {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.output.WriteString(s)
	p.output.WriteByte('\n')
}

// blank writes an empty line, collapsing repeated blank lines.
func (p *printer) blank() {
	b := p.output.Bytes()
	if len(b) == 0 || bytes.HasSuffix(b, []byte("\n\n")) {
		return
	}
	p.output.WriteByte('\n')
}

func (p *printer) indent() {
	p.depth++
}

func (p *printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

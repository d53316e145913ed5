package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "leapopt> "
	replContinuePrompt = "     ... "
)

// lineReader is the part of readline the REPL loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var data []string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively compile and analyse models",
		Long: `Start an interactive session.

Type a model or an expression over one or more lines and submit it with an
empty line. Each entry is compiled and summarised; entries that are only
an expression are analysed without compiling.

Commands:
  :solve     Solve the last compiled model
  :program   Print the program of the last compiled model
  :clear     Discard the current entry
  :help      Show this help
  :quit      Leave the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          replPrompt,
				HistoryFile:     filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history"),
				AutoComplete:    newREPLCompleter(),
				InterruptPrompt: "^C",
				EOFPrompt:       ":quit",
				Stdout:          cmd.OutOrStdout(),
				Stderr:          cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("failed to initialize REPL: %w", err)
			}
			defer func() { _ = rl.Close() }()

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "leapopt interactive session")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Submit an entry with an empty line. Type :help for commands, :quit to exit")
			_, _ = fmt.Fprintln(cmd.OutOrStdout())

			return newREPLSession(cmdCtx, data).run(cmd.Context(), rl)
		},
	}
	cmd.Flags().StringSliceVarP(&data, "data", "d", nil, "Data files bound into every entry (repeatable)")
	return cmd
}

func newREPLCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(":solve"),
		readline.PcItem(":program"),
		readline.PcItem(":clear"),
		readline.PcItem(":help"),
		readline.PcItem(":quit"),
	)
}

type replSession struct {
	cmdCtx *CommandContext
	data   []string
	entry  strings.Builder
	last   *compiler.CompiledModel
}

func newREPLSession(cmdCtx *CommandContext, data []string) *replSession {
	return &replSession{cmdCtx: cmdCtx, data: data}
}

func (s *replSession) run(ctx context.Context, rl lineReader) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.entry.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ":") && s.entry.Len() == 0 {
			if quit := s.command(ctx, trimmed); quit {
				return nil
			}
			continue
		}
		if trimmed == "" {
			if s.entry.Len() > 0 {
				s.submit(ctx, s.entry.String())
				s.entry.Reset()
			}
			rl.SetPrompt(replPrompt)
			continue
		}

		s.entry.WriteString(line)
		s.entry.WriteString("\n")
		rl.SetPrompt(replContinuePrompt)
	}
}

// command runs a colon command and reports whether the session ends.
func (s *replSession) command(ctx context.Context, line string) bool {
	r := s.cmdCtx.Renderer
	switch strings.Fields(line)[0] {
	case ":quit", ":exit", ":q":
		return true
	case ":help":
		r.Println(":solve  :program  :clear  :help  :quit")
	case ":clear":
		s.entry.Reset()
	case ":program":
		if s.last == nil {
			r.Error("nothing compiled yet")
			return false
		}
		_ = writeArtifact(r, "program", s.last.Program())
	case ":solve":
		if s.last == nil {
			r.Error("nothing compiled yet")
			return false
		}
		res := s.last.Solve(ctx, s.cmdCtx.SolveOptions())
		if err := r.SolveResult(outputFor(s.last, res), true); err != nil {
			r.Error(err.Error())
		}
	default:
		r.Error(fmt.Sprintf("unknown command %s (type :help for commands)", line))
	}
	return false
}

// submit compiles an entry, falling back to expression analysis.
func (s *replSession) submit(ctx context.Context, text string) {
	r := s.cmdCtx.Renderer
	m, err := s.cmdCtx.Compile(ctx, modelInput{Source: text}, s.data)
	if err == nil {
		s.last = m
		if err := r.ModelSummary("", m.Summary()); err != nil {
			r.Error(err.Error())
		}
		return
	}

	summary, analyzeErr := compiler.Analyze(text)
	if analyzeErr != nil {
		for _, line := range splitLines(err.Error()) {
			r.Error(line)
		}
		return
	}
	if err := r.ModelSummary("", summary); err != nil {
		r.Error(err.Error())
	}
}

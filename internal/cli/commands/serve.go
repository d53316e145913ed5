package commands

import (
	"github.com/leapstack-labs/leapopt/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compile and solve API over HTTP",
		Long: `Start an HTTP server exposing compile, solve, lint and history.

Endpoints:
  POST /v1/compile       compile a model, return program and summary
  POST /v1/solve         compile and solve a model
  POST /v1/lint          lint a model
  GET  /v1/history       list recorded runs (?limit=, ?class=)
  GET  /v1/history/{id}  one recorded run
  GET  /healthz          liveness

The server stops gracefully on interrupt.`,
		Example: `  leapopt serve --addr 127.0.0.1:8420
  curl -s localhost:8420/v1/solve -d '{"source": "var x >= 0\nmaximize: x\nst: x <= 4"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			lintCfg, err := cmdCtx.Cfg.LintConfig()
			if err != nil {
				return err
			}
			store, cleanup, err := cmdCtx.OpenStore()
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.New(server.Config{
				Addr:     cmdCtx.Cfg.Server.Addr,
				Compiler: cmdCtx.CompilerOptions(),
				Solve:    cmdCtx.SolveOptions(),
				Lint:     lintCfg,
				Store:    store,
				Logger:   cmdCtx.Logger,
			})
			cmdCtx.Renderer.Success("Listening on http://" + srv.Addr())
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

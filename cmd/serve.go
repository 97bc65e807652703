package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/numbersense/internal/httpapi"
	"github.com/abhisek/numbersense/internal/mcptools"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP or MCP",
	}

	httpCmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the JSON API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := setup(cmd, setupOpts{narrate: true})
			if err != nil {
				return err
			}
			defer d.Close()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = d.rt.HTTPAddr
			}
			debug, _ := cmd.Flags().GetBool("verbose")
			router := httpapi.NewRouter(httpapi.RouterConfig{
				Service: d.svc,
				Logger:  d.log,
				Debug:   debug,
			})
			return httpapi.Serve(ctx, addr, router, d.log)
		},
	}
	httpCmd.Flags().String("addr", "", "Listen address (overrides NUMBERSENSE_HTTP_ADDR, default :8080)")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cmd, setupOpts{narrate: true})
			if err != nil {
				return err
			}
			defer d.Close()

			return mcptools.ServeStdio(mcptools.NewServer(d.svc, version))
		},
	}

	cmd.AddCommand(httpCmd, mcpCmd)
	return cmd
}

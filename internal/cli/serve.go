package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/safeguard/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes the safety gate over HTTP:

  POST /api/evaluate  {"content": "...", "userContext": {...}}
  POST /api/chat      {"message": "..."}
  GET  /health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveAddr != "" {
			appConfig.Server.Addr = serveAddr
		}

		p, shutdown, err := newPipeline(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		srv, err := server.New(p, appConfig.Server, nil)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

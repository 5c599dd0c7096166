package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/blockedit/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the editing server",
	Long: `Serve the editor page and websocket editing sessions. Every browser
tab gets its own editor; edits are normalized on the server and sent back.

Examples:
  blockedit serve                   # Serve on localhost:7331
  blockedit serve -p 8080           # Serve on a different port
  blockedit serve --host 0.0.0.0    # Listen on all interfaces`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 7331, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger, nil)
	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("blockedit serving on http://"+srv.Addr()))
	return srv.Start(ctx)
}

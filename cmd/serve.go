package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadscope/leadscope/internal/server"
	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/dispatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the leadscope HTTP API",
	Long:  `Serve the lead collection as a JSON API, including a chat endpoint backed by the same dispatcher as 'leadscope chat'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.close()

		backend, err := chatBackend(ctx)
		if err != nil {
			return err
		}
		d, err := dispatch.New(dispatch.Config{
			Manager:       ws.mgr,
			Backend:       backend,
			Timeout:       viper.GetDuration("ai.timeout"),
			SnapshotLimit: viper.GetInt("ai.snapshot_limit"),
			Log:           utils.Log,
			OnTurn: func(s *conversation.Session, t conversation.Turn) {
				ws.recordTurn(context.Background(), s, t)
			},
		})
		if err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("bind")
		srv := server.New(ws.mgr, d, viper.GetString("server.username"), viper.GetString("server.password"))
		srv.Persist = ws.save
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", ":9999", "Address to bind the server to")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")
	viper.BindPFlag("server.username", serveCmd.Flags().Lookup("username"))
	viper.BindPFlag("server.password", serveCmd.Flags().Lookup("password"))
}

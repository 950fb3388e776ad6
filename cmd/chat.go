package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/dispatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session over the lead collection",
	Long: `Start an interactive session. Structured questions ("how many qualified leads",
"top 5 leads", "show lead 3", "edit lead 3 budget=50000") are answered locally;
anything else is sent to the configured AI assistant together with the leads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
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

		err = runChat(ctx, d, ws)
		// save even when interrupted
		if serr := ws.save(context.Background()); serr != nil {
			return serr
		}
		return err
	},
}

func runChat(ctx context.Context, d *dispatch.Dispatcher, ws *workspace) error {
	fmt.Printf("leadscope chat - %d leads loaded. Type 'help' for commands, 'exit' to leave.\n", ws.mgr.Len())

	session := conversation.NewSession()
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Println()
			return nil
		}

		reply := d.Handle(ctx, session, line)
		if reply.Ignored {
			continue
		}
		fmt.Println(reply.Text)

		if reply.Route == conversation.RouteLocal {
			if err := ws.save(ctx); err != nil {
				utils.Log.Errorf("%v", err)
			}
		}
		if reply.Exit {
			return nil
		}
		if reply.Reset {
			session = conversation.NewSession()
		}
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

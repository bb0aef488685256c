package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/they4kman/sweeprelay/game"
	"github.com/they4kman/sweeprelay/relay"
	"github.com/they4kman/sweeprelay/session"
)

var embedBroker = false

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Play a game from JSON commands read on stdin",
	Long: `drive reads one JSON command per line from stdin, for example

	{"name": "start_new_game", "arguments": {"rows": 9, "cols": 9, "mines": 10}}
	{"name": "click_cell", "arguments": {"row": 4, "col": 4}}

and writes each result to stdout. Every change is published to the broker.
Use --embed to run the broker inside this process instead of connecting to one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		policy, err := cfg.Policy()
		if err != nil {
			return err
		}

		var holder *session.Holder
		var publisher session.Publisher
		ready := make(chan struct{})
		if embedBroker {
			broker := newBroker()
			go func() {
				if err := listenAndServe(ctx, broker); err != nil {
					logger.WithError(err).Error("embedded broker stopped")
				}
			}()
			publisher = broker
		} else {
			link := relay.NewLink(ctx, relay.LinkConfig{
				URL:        cfg.DriverURL(),
				RetryDelay: cfg.RetryDelay,
				Logger:     logger,
				OnConnect: func() {
					// A restarted broker has forgotten the game
					<-ready
					holder.Republish()
				},
			})
			defer link.Close()
			publisher = link
		}

		holder = session.NewHolder(game.NewEngine(cfg.Seed, policy), publisher, session.Config{
			Rows:         cfg.Rows,
			Cols:         cfg.Cols,
			Mines:        cfg.Mines,
			SnapshotsDir: cfg.SnapshotsDir,
			Logger:       logger,
		})
		close(ready)

		return runCommands(ctx, holder, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// runCommands dispatches each line of in to holder until in is exhausted or
// ctx is done
func runCommands(ctx context.Context, holder *session.Holder, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var command session.Command
			var result session.Result
			if err := json.Unmarshal([]byte(line), &command); err != nil {
				result = session.Result{Message: fmt.Sprintf("Invalid command: %v", err)}
			} else {
				result = holder.Dispatch(command)
			}
			if _, err := fmt.Fprintln(out, result.Text()); err != nil {
				return err
			}
		}
	}
}

func init() {
	addGameFlags(driveCmd.Flags())
	addLinkFlags(driveCmd.Flags())
	addBrokerFlags(driveCmd.Flags())
	driveCmd.Flags().BoolVarP(&embedBroker, "embed", "e", false, "Run the broker in this process")
}

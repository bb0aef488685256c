package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/they4kman/sweeprelay/game"
	"github.com/they4kman/sweeprelay/relay"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Print the game as it is played",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		view := newTextView(cmd.OutOrStdout())
		link := relay.NewLink(ctx, relay.LinkConfig{
			URL:        cfg.ObserverURL(),
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
			OnState:    view.showState,
			OnAction:   view.showAction,
		})
		defer link.Close()

		<-ctx.Done()
		return nil
	},
}

// textView renders received states and actions as plain text
type textView struct {
	mu  sync.Mutex
	out io.Writer
}

func newTextView(out io.Writer) *textView {
	return &textView{out: out}
}

func (view *textView) showState(state *game.GameState) {
	view.mu.Lock()
	defer view.mu.Unlock()
	fmt.Fprintf(view.out, "%s\n\n", state)
}

func (view *textView) showAction(action relay.Action) {
	logger.WithFields(logrus.Fields(action.Data)).Infof("driver: %s", action.Name)

	view.mu.Lock()
	defer view.mu.Unlock()
	fmt.Fprintf(view.out, "> %s %v\n", action.Name, action.Data)
}

func init() {
	addLinkFlags(observeCmd.Flags())
}

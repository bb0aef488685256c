package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/they4kman/sweeprelay/relay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay broker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker := newBroker()
		return listenAndServe(ctx, broker)
	},
}

func newBroker() *relay.Broker {
	return relay.NewBroker(relay.BrokerConfig{
		DriverPaths:       []string{cfg.DriverPath},
		HeartbeatInterval: cfg.HeartbeatInterval,
		Logger:            logger,
	})
}

// listenAndServe serves broker on cfg.Addr until ctx is done
func listenAndServe(ctx context.Context, broker *relay.Broker) error {
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           broker.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", cfg.Addr).Info("broker listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	addBrokerFlags(serveCmd.Flags())
}

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/they4kman/sweeprelay/config"
	"github.com/they4kman/sweeprelay/game"
)

var cfg = config.NewConfig()
var configPath string
var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "sweeprelay",
	Short: "Minesweeper for agents, relayed live to observers",
	Long: `sweeprelay runs a Minesweeper session driven by an agent and relays
every move to any number of observers over websockets.

Run the relay broker
	sweeprelay serve

Drive a game from JSON commands on stdin
	sweeprelay drive

Watch the game being played
	sweeprelay observe
`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// loadConfig overlays the config file on the defaults, then reapplies any
// flags given on the command line so they win over the file.
func loadConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		overrides := map[string]string{}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			overrides[flag.Name] = flag.Value.String()
		})

		fileConfig, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = fileConfig

		for name, value := range overrides {
			if err := cmd.Flags().Set(name, value); err != nil {
				return err
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger = cfg.Logger()
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flagPolicyValue string

func newFlagPolicyValue(p *string) *flagPolicyValue {
	return (*flagPolicyValue)(p)
}

func (policyVal *flagPolicyValue) String() string {
	return string(*policyVal)
}

func (policyVal *flagPolicyValue) Set(value string) error {
	if _, err := game.ParseFlagPolicy(value); err != nil {
		return err
	}
	*policyVal = flagPolicyValue(value)
	return nil
}

func (policyVal *flagPolicyValue) Type() string {
	return "game.FlagPolicy"
}

// addGameFlags registers the flags shared by every command that runs games
func addGameFlags(flags *pflag.FlagSet) {
	flags.IntVarP(&cfg.Rows, "rows", "r", cfg.Rows, "Default board height, in cells")
	flags.IntVarP(&cfg.Cols, "cols", "c", cfg.Cols, "Default board width, in cells")
	flags.IntVarP(&cfg.Mines, "mines", "m", cfg.Mines, "Default number of mines")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for mine placement (0 seeds from the clock)")
	flags.Var(newFlagPolicyValue(&cfg.FlagPolicy), "flag-policy", `Whether flags may change after the game ends.
locked: flags are frozen once the game is won or lost
always: flags may be toggled at any time`)
	flags.StringVar(&cfg.SnapshotsDir, "snapshots", cfg.SnapshotsDir, "Directory to save finished boards in")
}

func addBrokerFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "Address the broker listens on")
	flags.StringVar(&cfg.DriverPath, "driver-path", cfg.DriverPath, "Connection path used by the driver")
	flags.DurationVar(&cfg.HeartbeatInterval, "heartbeat", cfg.HeartbeatInterval, "Interval between pings to clients")
}

func addLinkFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.BrokerURL, "broker", cfg.BrokerURL, "Base websocket URL of the broker")
	flags.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Delay between reconnection attempts")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.ObserverPath, "observer-path", cfg.ObserverPath, "Connection path used by observers")

	rootCmd.AddCommand(serveCmd, driveCmd, observeCmd)
}

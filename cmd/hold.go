package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scienceol/caffeine/internal/power"
)

var holdOpts struct {
	app      string
	reason   string
	duration uint64
}

func init() {
	f := holdCmd.Flags()
	f.StringVar(&holdOpts.app, "app", "caffeine", "application name sent with Inhibit")
	f.StringVar(&holdOpts.reason, "reason", "", "reason sent with Inhibit")
	f.Uint64Var(&holdOpts.duration, "duration", 0, "lift the inhibition after this many seconds")
	rootCmd.AddCommand(holdCmd)
}

// holdCmd owns the session bus connection of a screensaver inhibition.
// It prints the cookie on stdout and keeps the inhibition until it is
// terminated or the duration runs out.
var holdCmd = &cobra.Command{
	Use:    power.HoldCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		log := helperLogger("holder")

		svc, err := power.ConnectScreenSaver()
		if err != nil {
			log.Error("session bus unavailable", "err", err)
			fmt.Fprintf(out, "error %v\n", err)
			return err
		}
		defer svc.Close()

		var duration *uint64
		if cmd.Flags().Changed("duration") {
			duration = &holdOpts.duration
		}

		signal.Ignore(syscall.SIGHUP)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("holding screensaver inhibition", "app", holdOpts.app)
		if err := power.Hold(ctx, svc, out, holdOpts.app, holdOpts.reason, duration); err != nil {
			log.Error("hold failed", "err", err)
			return err
		}
		log.Info("inhibition lifted")
		return nil
	},
}
